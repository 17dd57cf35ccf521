package menu

import (
	"context"
	"fmt"

	"yurica-pos/internal/logger"
	"yurica-pos/internal/models"
)

// Store is the menu persistence the service works against.
type Store interface {
	ListItems(ctx context.Context) ([]models.MenuItem, error)
	CreateItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error)
	GetItem(ctx context.Context, id string) (*models.MenuItem, error)
	UpdateItem(ctx context.Context, id string, patch models.MenuItemPatch) error
	DeleteItem(ctx context.Context, id string) error
	Prices(ctx context.Context, names []string) (map[string]int64, error)
}

// Service manages the menu and answers price lookups for order totals.
type Service struct {
	store Store
	cache *PriceCache
	log   *logger.Logger
}

// NewService builds the menu service. cache may be nil.
func NewService(store Store, cache *PriceCache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, cache: cache, log: log}
}

// Prices returns the current price of every name found on the menu.
// Unknown names are left out.
func (s *Service) Prices(ctx context.Context, names []string) (map[string]int64, error) {
	names = unique(names)
	if s.cache == nil {
		return s.store.Prices(ctx, names)
	}

	hits, misses, err := s.cache.Get(ctx, names)
	if err != nil {
		s.log.Warn("REDIS", fmt.Sprintf("Price cache read failed, using database: %v", err))
		return s.store.Prices(ctx, names)
	}
	if len(misses) == 0 {
		return hits, nil
	}

	fetched, err := s.store.Prices(ctx, misses)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, fetched); err != nil {
		s.log.Warn("REDIS", fmt.Sprintf("Price cache write failed: %v", err))
	}
	for name, cents := range fetched {
		hits[name] = cents
	}
	return hits, nil
}

// PriceOf looks up a single item.
func (s *Service) PriceOf(ctx context.Context, name string) (int64, bool, error) {
	prices, err := s.Prices(ctx, []string{name})
	if err != nil {
		return 0, false, err
	}
	cents, ok := prices[name]
	return cents, ok, nil
}

func (s *Service) List(ctx context.Context) ([]models.MenuItem, error) {
	return s.store.ListItems(ctx)
}

func (s *Service) Create(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	created, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return models.MenuItem{}, err
	}
	s.invalidate(ctx, created.Name)
	s.log.LogDatabase("INSERT", "menu_items", fmt.Sprintf("%s (%s) %d", created.Name, created.ID, created.PriceCents))
	return created, nil
}

// Update applies patch to the item. An unknown id is a no-op.
func (s *Service) Update(ctx context.Context, id string, patch models.MenuItemPatch) error {
	names := s.nameOf(ctx, id)
	if err := s.store.UpdateItem(ctx, id, patch); err != nil {
		return err
	}
	if patch.Name != nil {
		names = append(names, *patch.Name)
	}
	s.invalidate(ctx, names...)
	s.log.LogDatabase("UPDATE", "menu_items", id)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	names := s.nameOf(ctx, id)
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, names...)
	s.log.LogDatabase("DELETE", "menu_items", id)
	return nil
}

func (s *Service) nameOf(ctx context.Context, id string) []string {
	if s.cache == nil {
		return nil
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil
	}
	return []string{item.Name}
}

func (s *Service) invalidate(ctx context.Context, names ...string) {
	if s.cache == nil || len(names) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, names...); err != nil {
		s.log.Warn("REDIS", fmt.Sprintf("Price cache invalidation failed for %v: %v", names, err))
	}
}

func unique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
