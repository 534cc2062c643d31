// Package funnel routes incoming Telegram updates through the search
// conversation: it keeps the per-user conversation state in the cache and
// turns each update into a named background task.
package funnel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/romnatson3/pharmacy/core/cache"
)

// StateTTL bounds how long a conversation step stays valid. Both the
// district choice and the cached result set expire together after an hour
// of inactivity on that key.
const StateTTL = time.Hour

// ErrStaleState is returned by state reads when the conversation step the
// update refers to has already expired. Workers treat it as a soft skip.
var ErrStaleState = errors.New("funnel: conversation state expired")

// State stores the two conversation keys of a user: the chosen district
// and the stock-id set of the last search.
type State struct {
	store cache.Store
}

// NewState wraps a cache store as conversation state.
func NewState(store cache.Store) *State {
	return &State{store: store}
}

func districtKey(userID int64) string { return fmt.Sprintf("%d_district", userID) }
func resultsKey(userID int64) string  { return fmt.Sprintf("%d", userID) }

// District returns the user's chosen district selector, or ErrStaleState
// when none is cached.
func (s *State) District(ctx context.Context, userID int64) (string, error) {
	district, err := s.store.Get(ctx, districtKey(userID))
	if errors.Is(err, cache.ErrNotFound) {
		return "", ErrStaleState
	}
	if err != nil {
		return "", fmt.Errorf("district state for %d: %w", userID, err)
	}
	return district, nil
}

// SetDistrict caches the district selector for StateTTL.
func (s *State) SetDistrict(ctx context.Context, userID int64, district string) error {
	if err := s.store.Set(ctx, districtKey(userID), district, StateTTL); err != nil {
		return fmt.Errorf("set district for %d: %w", userID, err)
	}
	return nil
}

// ClearDistrict drops the district choice, restarting the funnel.
func (s *State) ClearDistrict(ctx context.Context, userID int64) error {
	if err := s.store.Delete(ctx, districtKey(userID)); err != nil {
		return fmt.Errorf("clear district for %d: %w", userID, err)
	}
	return nil
}

// StockIDs returns the stock-id set of the user's last search, or
// ErrStaleState when it expired.
func (s *State) StockIDs(ctx context.Context, userID int64) ([]int64, error) {
	raw, err := s.store.Get(ctx, resultsKey(userID))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrStaleState
	}
	if err != nil {
		return nil, fmt.Errorf("results state for %d: %w", userID, err)
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("results state for %d: %w", userID, err)
	}
	return ids, nil
}

// SetStockIDs caches the search's stock-id set for StateTTL.
func (s *State) SetStockIDs(ctx context.Context, userID int64, ids []int64) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode results for %d: %w", userID, err)
	}
	if err := s.store.Set(ctx, resultsKey(userID), string(raw), StateTTL); err != nil {
		return fmt.Errorf("set results for %d: %w", userID, err)
	}
	return nil
}

// ClearStockIDs drops the cached result set.
func (s *State) ClearStockIDs(ctx context.Context, userID int64) error {
	if err := s.store.Delete(ctx, resultsKey(userID)); err != nil {
		return fmt.Errorf("clear results for %d: %w", userID, err)
	}
	return nil
}
