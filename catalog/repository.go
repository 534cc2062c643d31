// Package catalog reads the relational inventory of pharmacies, medications
// and stock listings, and maintains the bot's user records.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("catalog: not found")

// ErrBadDistrict is returned when a district selector is neither the
// all-districts sentinel nor a numeric identifier.
var ErrBadDistrict = errors.New("catalog: invalid district selector")

func districtID(district string) (int64, error) {
	id, err := strconv.ParseInt(district, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDistrict, district)
	}
	return id, nil
}

// Repository executes catalog queries over a sqlx connection pool.
type Repository struct {
	db *sqlx.DB
}

// New constructs a Repository.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const medicationColumns = `
	m.id,
	m.name,
	COALESCE(m.dosage, 0)   AS dosage,
	COALESCE(m.units, '')   AS units,
	COALESCE(m.quantity, 0) AS quantity,
	COALESCE(m.form, '')    AS form`

// ListDistricts returns all districts ordered by name.
func (r *Repository) ListDistricts(ctx context.Context) ([]District, error) {
	var districts []District
	err := r.db.SelectContext(ctx, &districts, `SELECT id, name FROM districts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	return districts, nil
}

// SearchMedications finds distinct medications whose name contains the
// query substring. A concrete district joins through stock so only
// medications actually listed there are offered.
func (r *Repository) SearchMedications(ctx context.Context, query, district string) ([]Medication, error) {
	var medications []Medication
	var err error
	if district == AllDistricts {
		err = r.db.SelectContext(ctx, &medications, `
			SELECT`+medicationColumns+`
			FROM medications m
			WHERE m.name ILIKE '%' || $1 || '%'
			ORDER BY m.name, m.dosage`, query)
	} else {
		id, derr := districtID(district)
		if derr != nil {
			return nil, derr
		}
		err = r.db.SelectContext(ctx, &medications, `
			SELECT DISTINCT`+medicationColumns+`
			FROM medications m
			JOIN pharmacy_stocks s ON s.medication_id = m.id
			JOIN pharmacies p ON p.id = s.pharmacy_id
			WHERE m.name ILIKE '%' || $1 || '%' AND p.district_id = $2
			ORDER BY m.name, m.dosage`, query, id)
	}
	if err != nil {
		return nil, fmt.Errorf("search medications %q: %w", query, err)
	}
	return medications, nil
}

// MedicationByID fetches a single medication.
func (r *Repository) MedicationByID(ctx context.Context, id int64) (*Medication, error) {
	var m Medication
	err := r.db.GetContext(ctx, &m, `
		SELECT`+medicationColumns+`
		FROM medications m WHERE m.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("medication %d: %w", id, err)
	}
	return &m, nil
}

// MedicationsByName finds medications by exact name, for re-matching a
// user's button reply when the embedded identifier is missing.
func (r *Repository) MedicationsByName(ctx context.Context, name, district string) ([]Medication, error) {
	var medications []Medication
	var err error
	if district == AllDistricts {
		err = r.db.SelectContext(ctx, &medications, `
			SELECT`+medicationColumns+`
			FROM medications m
			WHERE m.name = $1
			ORDER BY m.dosage`, name)
	} else {
		id, derr := districtID(district)
		if derr != nil {
			return nil, derr
		}
		err = r.db.SelectContext(ctx, &medications, `
			SELECT DISTINCT`+medicationColumns+`
			FROM medications m
			JOIN pharmacy_stocks s ON s.medication_id = m.id
			JOIN pharmacies p ON p.id = s.pharmacy_id
			WHERE m.name = $1 AND p.district_id = $2
			ORDER BY m.dosage`, name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("medications by name %q: %w", name, err)
	}
	return medications, nil
}

// StockIDs returns the ordered identifier set of every listing of the
// medication, cheapest first, optionally filtered by district.
func (r *Repository) StockIDs(ctx context.Context, medicationID int64, district string) ([]int64, error) {
	var ids []int64
	var err error
	if district == AllDistricts {
		err = r.db.SelectContext(ctx, &ids, `
			SELECT s.id FROM pharmacy_stocks s
			WHERE s.medication_id = $1
			ORDER BY s.price`, medicationID)
	} else {
		id, derr := districtID(district)
		if derr != nil {
			return nil, derr
		}
		err = r.db.SelectContext(ctx, &ids, `
			SELECT s.id FROM pharmacy_stocks s
			JOIN pharmacies p ON p.id = s.pharmacy_id
			WHERE s.medication_id = $1 AND p.district_id = $2
			ORDER BY s.price`, medicationID, id)
	}
	if err != nil {
		return nil, fmt.Errorf("stock ids for medication %d: %w", medicationID, err)
	}
	return ids, nil
}

// ChainOffers returns one representative listing per chain (the cheapest
// within that chain), ordered most-expensive-first for presentation.
func (r *Repository) ChainOffers(ctx context.Context, medicationID int64, district string) ([]ChainOffer, error) {
	districtCond := ""
	args := []any{medicationID}
	if district != AllDistricts {
		id, derr := districtID(district)
		if derr != nil {
			return nil, derr
		}
		districtCond = "AND p.district_id = $2"
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT chain_id, chain_name, med_name, dosage, units, quantity, form, price FROM (
			SELECT DISTINCT ON (c.name)
				c.id AS chain_id,
				c.name AS chain_name,
				m.name AS med_name,
				COALESCE(m.dosage, 0)   AS dosage,
				COALESCE(m.units, '')   AS units,
				COALESCE(m.quantity, 0) AS quantity,
				COALESCE(m.form, '')    AS form,
				s.price
			FROM pharmacy_stocks s
			JOIN pharmacies p ON p.id = s.pharmacy_id
			JOIN chains c ON c.id = p.chain_id
			JOIN medications m ON m.id = s.medication_id
			WHERE s.medication_id = $1 %s
			ORDER BY c.name, s.price ASC
		) offers
		ORDER BY price DESC`, districtCond)

	var offers []ChainOffer
	if err := r.db.SelectContext(ctx, &offers, query, args...); err != nil {
		return nil, fmt.Errorf("chain offers for medication %d: %w", medicationID, err)
	}
	return offers, nil
}

// StocksByIDs resolves the cached stock identifier set intersected with a
// chain and district into full pharmacy listings, cheapest first.
func (r *Repository) StocksByIDs(ctx context.Context, ids []int64, chainID int64, district string) ([]StockDetail, error) {
	districtCond := ""
	args := []any{pq.Array(ids), chainID}
	if district != AllDistricts {
		id, derr := districtID(district)
		if derr != nil {
			return nil, derr
		}
		districtCond = "AND p.district_id = $3"
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT
			s.id,
			m.name AS med_name,
			COALESCE(m.dosage, 0)   AS dosage,
			COALESCE(m.units, '')   AS units,
			COALESCE(m.quantity, 0) AS quantity,
			COALESCE(m.form, '')    AS form,
			s.price,
			c.name AS chain_name,
			a.name AS address,
			COALESCE(array_agg(ph.number ORDER BY ph.number) FILTER (WHERE ph.number IS NOT NULL), '{}') AS phones
		FROM pharmacy_stocks s
		JOIN pharmacies p ON p.id = s.pharmacy_id
		JOIN chains c ON c.id = p.chain_id
		JOIN addresses a ON a.id = p.address_id
		JOIN medications m ON m.id = s.medication_id
		LEFT JOIN pharmacy_phones pp ON pp.pharmacy_id = p.id
		LEFT JOIN phones ph ON ph.id = pp.phone_id
		WHERE s.id = ANY($1) AND c.id = $2 %s
		GROUP BY s.id, m.name, m.dosage, m.units, m.quantity, m.form, s.price, c.name, a.name
		ORDER BY s.price`, districtCond)

	var stocks []StockDetail
	if err := r.db.SelectContext(ctx, &stocks, query, args...); err != nil {
		return nil, fmt.Errorf("stocks by ids: %w", err)
	}
	return stocks, nil
}

// PromotedProducts lists products of the day ordered by price descending.
func (r *Repository) PromotedProducts(ctx context.Context) ([]StockDetail, error) {
	var stocks []StockDetail
	err := r.db.SelectContext(ctx, &stocks, `
		SELECT
			d.id,
			m.name AS med_name,
			COALESCE(m.dosage, 0)   AS dosage,
			COALESCE(m.units, '')   AS units,
			COALESCE(m.quantity, 0) AS quantity,
			COALESCE(m.form, '')    AS form,
			d.price,
			c.name AS chain_name,
			a.name AS address,
			COALESCE(array_agg(ph.number ORDER BY ph.number) FILTER (WHERE ph.number IS NOT NULL), '{}') AS phones
		FROM products_of_the_day d
		JOIN pharmacies p ON p.id = d.pharmacy_id
		JOIN chains c ON c.id = p.chain_id
		JOIN addresses a ON a.id = p.address_id
		JOIN medications m ON m.id = d.medication_id
		LEFT JOIN pharmacy_phones pp ON pp.pharmacy_id = p.id
		LEFT JOIN phones ph ON ph.id = pp.phone_id
		GROUP BY d.id, m.name, m.dosage, m.units, m.quantity, m.form, d.price, c.name, a.name
		ORDER BY d.price DESC`)
	if err != nil {
		return nil, fmt.Errorf("promoted products: %w", err)
	}
	return stocks, nil
}

// UpsertUser inserts or refreshes a user row keyed by the Telegram id.
func (r *Repository) UpsertUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, last_name, is_bot)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
		ON CONFLICT (id) DO UPDATE SET
			username   = NULLIF(EXCLUDED.username, ''),
			first_name = NULLIF(EXCLUDED.first_name, ''),
			last_name  = NULLIF(EXCLUDED.last_name, ''),
			updated    = now()`,
		u.ID, u.Username, u.FirstName, u.LastName, u.IsBot)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// ListActiveUserIDs returns ids of users still subscribed to broadcasts.
func (r *Repository) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users WHERE NOT is_deleted ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return ids, nil
}
