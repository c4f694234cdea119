// Package cart holds the tab-local shopping cart and mirrors it into the
// per-tab store so it survives a reload of the same tab.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/tradeclub/internal/client/models"
	"github.com/dmitrijs2005/tradeclub/internal/client/storage"
	"github.com/dmitrijs2005/tradeclub/internal/common"
	"github.com/dmitrijs2005/tradeclub/internal/logging"
)

// Store keeps line items in insertion order, at most one per ItemKey.
// An empty cart is persisted as no record at all.
type Store struct {
	mu     sync.Mutex
	items  []models.LineItem
	repo   storage.Repository
	logger logging.Logger
}

// Load restores the cart from repo. A malformed record is logged and
// replaced by an empty cart; a read error is returned.
func Load(ctx context.Context, repo storage.Repository, logger logging.Logger) (*Store, error) {
	s := &Store{repo: repo, logger: logger.With("module", "cart")}

	raw, err := repo.Get(ctx, common.CartStorageKey)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	items, err := models.DecodeItems(raw)
	if errors.Is(err, common.ErrMalformedRecord) {
		s.logger.Warn(ctx, "discarding unreadable cart", "error", err)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i := indexOf(s.items, it.Key()); i >= 0 {
			s.items[i].Quantity += it.Quantity
			continue
		}
		s.items = append(s.items, it.Clone())
	}
	return s, nil
}

// Add merges item into the cart. A line with the same product and size has
// its quantity increased; otherwise the item is appended. A non-positive
// quantity counts as one.
func (s *Store) Add(ctx context.Context, item models.LineItem) error {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.items, item.Key()); i >= 0 {
		s.items[i].Quantity += item.Quantity
	} else {
		s.items = append(s.items, item.Clone())
	}
	return s.persistLocked(ctx)
}

// Remove drops the line with key. Absent keys are ignored.
func (s *Store) Remove(ctx context.Context, key models.ItemKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, key)
	if i < 0 {
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return s.persistLocked(ctx)
}

// UpdateQuantity sets the quantity of the line with key. Absent keys are
// ignored, and so is the quantity's sign: callers validate it.
func (s *Store) UpdateQuantity(ctx context.Context, key models.ItemKey, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.items, key)
	if i < 0 {
		return nil
	}
	s.items[i].Quantity = qty
	return s.persistLocked(ctx)
}

// Clear empties the cart and deletes the persisted record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persistLocked(ctx)
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LineItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Count is the total number of units across all lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, it := range s.items {
		total += it.Subtotal()
	}
	return total
}

func (s *Store) persistLocked(ctx context.Context) error {
	if len(s.items) == 0 {
		if err := s.repo.Delete(ctx, common.CartStorageKey); err != nil {
			return fmt.Errorf("persist cart: %w", err)
		}
		return nil
	}

	b, err := models.EncodeItems(s.items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.repo.Set(ctx, common.CartStorageKey, b); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

func indexOf(items []models.LineItem, key models.ItemKey) int {
	for i, it := range items {
		if it.Key().Equal(key) {
			return i
		}
	}
	return -1
}
