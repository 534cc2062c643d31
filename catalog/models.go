package catalog

import "github.com/lib/pq"

// AllDistricts is the sentinel district selector meaning no district filter.
// It is also the value stored in the conversation cache when the user picks
// the "all districts" button.
const AllDistricts = "all"

// User mirrors a Telegram account known to the bot.
type User struct {
	ID        int64  `db:"id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	IsBot     bool   `db:"is_bot"`
	IsDeleted bool   `db:"is_deleted"`
}

// District is a city district pharmacies belong to.
type District struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Medication is a catalog item. Dosage, units, quantity and form are
// optional; zero values mean the attribute is absent.
type Medication struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Dosage   int64  `db:"dosage"`
	Units    string `db:"units"`
	Quantity int64  `db:"quantity"`
	Form     string `db:"form"`
}

// ChainOffer is the cheapest listing of a medication within one pharmacy
// chain. Offers are returned most-expensive-first for presentation.
type ChainOffer struct {
	ChainID   int64   `db:"chain_id"`
	ChainName string  `db:"chain_name"`
	MedName   string  `db:"med_name"`
	Dosage    int64   `db:"dosage"`
	Units     string  `db:"units"`
	Quantity  int64   `db:"quantity"`
	Form      string  `db:"form"`
	Price     float64 `db:"price"`
}

// StockDetail is a priced medication-at-pharmacy listing with the pharmacy
// display attributes needed for result formatting.
type StockDetail struct {
	ID        int64    `db:"id"`
	MedName   string   `db:"med_name"`
	Dosage    int64    `db:"dosage"`
	Units     string   `db:"units"`
	Quantity  int64    `db:"quantity"`
	Form      string   `db:"form"`
	Price     float64  `db:"price"`
	ChainName string   `db:"chain_name"`
	Address   string   `db:"address"`
	Phones    pq.StringArray `db:"phones"`
}
