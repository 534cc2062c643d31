// Package tasks implements the background operations scheduled by the
// funnel. Each task re-reads the conversation state it depends on, so a
// user who waited past the state TTL gets a quiet skip instead of answers
// built on expired context.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/romnatson3/pharmacy/bot/format"
	"github.com/romnatson3/pharmacy/bot/funnel"
	"github.com/romnatson3/pharmacy/bot/texts"
	"github.com/romnatson3/pharmacy/catalog"
	"github.com/romnatson3/pharmacy/core/logger"
	"github.com/romnatson3/pharmacy/core/telegram"
)

// Catalog is the slice of the repository the tasks consume.
type Catalog interface {
	ListDistricts(ctx context.Context) ([]catalog.District, error)
	SearchMedications(ctx context.Context, query, district string) ([]catalog.Medication, error)
	MedicationByID(ctx context.Context, id int64) (*catalog.Medication, error)
	MedicationsByName(ctx context.Context, name, district string) ([]catalog.Medication, error)
	StockIDs(ctx context.Context, medicationID int64, district string) ([]int64, error)
	ChainOffers(ctx context.Context, medicationID int64, district string) ([]catalog.ChainOffer, error)
	StocksByIDs(ctx context.Context, ids []int64, chainID int64, district string) ([]catalog.StockDetail, error)
	PromotedProducts(ctx context.Context) ([]catalog.StockDetail, error)
	UpsertUser(ctx context.Context, u catalog.User) error
}

// Tasks bundles the capabilities the background operations need.
type Tasks struct {
	catalog Catalog
	sender  telegram.Sender
	state   *funnel.State
}

// New constructs the task set.
func New(c Catalog, sender telegram.Sender, state *funnel.State) *Tasks {
	return &Tasks{catalog: c, sender: sender, state: state}
}

// Welcome registers the user and shows the main menu.
func (t *Tasks) Welcome(ctx context.Context, user catalog.User, chatID int64) error {
	if err := t.catalog.UpsertUser(ctx, user); err != nil {
		return err
	}
	return t.sender.SendMessage(ctx, chatID, texts.Start, format.MainMenuKeyboard())
}

// Districts sends the district picker.
func (t *Tasks) Districts(ctx context.Context, chatID int64) error {
	districts, err := t.catalog.ListDistricts(ctx)
	if err != nil {
		return err
	}
	return t.sender.SendMessage(ctx, chatID, texts.District, format.DistrictKeyboard(districts))
}

// SearchPrompt asks the user to type a medication name.
func (t *Tasks) SearchPrompt(ctx context.Context, chatID int64) error {
	return t.sender.SendMessage(ctx, chatID, texts.Search, nil)
}

// TypeMore tells the user the query was too short.
func (t *Tasks) TypeMore(ctx context.Context, chatID int64) error {
	return t.sender.SendMessage(ctx, chatID, texts.TypeMore, nil)
}

// StartOver points a user without active state back to the menu.
func (t *Tasks) StartOver(ctx context.Context, chatID int64) error {
	return t.sender.SendMessage(ctx, chatID, texts.StartOver, format.MainMenuKeyboard())
}

// MedicationChoices looks the query up in the chosen district and offers
// the matching medications as a reply keyboard.
func (t *Tasks) MedicationChoices(ctx context.Context, userID, chatID int64, query string) error {
	district, err := t.state.District(ctx, userID)
	if err != nil {
		return t.skipStale(ctx, err)
	}
	medications, err := t.catalog.SearchMedications(ctx, query, district)
	if err != nil {
		return err
	}
	if len(medications) == 0 {
		return t.sender.SendMessage(ctx, chatID, texts.NotFound, nil)
	}
	return t.sender.SendMessage(ctx, chatID, texts.ChooseMedication, format.MedicationChoiceKeyboard(medications))
}

// SearchResult resolves a picked medication into per-chain offers, caches
// the listing set, and sends one message per chain, priciest first.
func (t *Tasks) SearchResult(ctx context.Context, userID, chatID int64, choice string) error {
	district, err := t.state.District(ctx, userID)
	if err != nil {
		return t.skipStale(ctx, err)
	}
	medication, err := t.medicationByChoice(ctx, choice, district)
	if err != nil {
		return err
	}
	if medication == nil {
		return t.sender.SendMessage(ctx, chatID, texts.NotFound, nil)
	}

	ids, err := t.catalog.StockIDs(ctx, medication.ID, district)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return t.sender.SendMessage(ctx, chatID, texts.NotFound, nil)
	}
	if err := t.state.SetStockIDs(ctx, userID, ids); err != nil {
		return err
	}

	offers, err := t.catalog.ChainOffers(ctx, medication.ID, district)
	if err != nil {
		return err
	}
	for _, offer := range offers {
		err := t.sender.SendMessage(ctx, chatID, format.ChainOfferText(offer), format.ChainOfferKeyboard(offer.ChainID))
		if err != nil {
			return err
		}
	}
	return t.sender.SendMessage(ctx, chatID, texts.ChooseChain, nil)
}

// ChainStocks expands the cached listing set into the chosen chain's
// pharmacies within the user's district.
func (t *Tasks) ChainStocks(ctx context.Context, userID, chatID, chainID int64) error {
	district, err := t.state.District(ctx, userID)
	if err != nil {
		return t.skipStale(ctx, err)
	}
	ids, err := t.state.StockIDs(ctx, userID)
	if err != nil {
		return t.skipStale(ctx, err)
	}
	stocks, err := t.catalog.StocksByIDs(ctx, ids, chainID, district)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return t.sender.SendMessage(ctx, chatID, texts.NotFound, nil)
	}
	return t.sender.SendMessage(ctx, chatID, format.StockListText(stocks), nil)
}

// ProductOfTheDay sends the promoted listings, priciest first.
func (t *Tasks) ProductOfTheDay(ctx context.Context, chatID int64) error {
	stocks, err := t.catalog.PromotedProducts(ctx)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return t.sender.SendMessage(ctx, chatID, texts.NotFound, nil)
	}
	text := texts.ProductOfTheDay + "\n\n" + format.StockListText(stocks)
	return t.sender.SendMessage(ctx, chatID, text, nil)
}

// medicationByChoice resolves a reply-keyboard tap to a catalog row. The
// zero-width marker carries the id; when it is missing or points at a
// deleted row, the visible display name is re-matched against the catalog.
func (t *Tasks) medicationByChoice(ctx context.Context, choice, district string) (*catalog.Medication, error) {
	id, visible, ok := format.DecodeChoiceID(choice)
	if ok {
		medication, err := t.catalog.MedicationByID(ctx, id)
		if err == nil {
			return medication, nil
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return nil, err
		}
	}

	name := strings.TrimSpace(visible)
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return nil, nil
	}
	candidates, err := t.catalog.MedicationsByName(ctx, name, district)
	if err != nil {
		return nil, fmt.Errorf("rematch %q: %w", logger.SanitizeLimit(name, 64), err)
	}
	for i := range candidates {
		if format.DisplayMedication(candidates[i]) == strings.TrimSpace(visible) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// skipStale downgrades an expired-state read to a logged no-op.
func (t *Tasks) skipStale(ctx context.Context, err error) error {
	if errors.Is(err, funnel.ErrStaleState) {
		logger.Warn(ctx, "bot", "task.stale", slog.String("reason", err.Error()))
		return nil
	}
	return err
}
