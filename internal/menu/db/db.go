package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"yurica-pos/internal/apperror"
	"yurica-pos/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ListItems returns the whole menu ordered by category and name.
func (d *DB) ListItems(ctx context.Context) ([]models.MenuItem, error) {
	items := []models.MenuItem{}
	err := d.Bun.NewSelect().
		Model(&items).
		OrderExpr("m.category ASC, m.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.Storage("db_read_failed", err)
	}
	return items, nil
}

// CreateItem inserts a menu item, assigning its id and creation time.
func (d *DB) CreateItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	if item.Name == "" {
		return models.MenuItem{}, apperror.Validation("name_required", "name is required")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Currency == "" {
		item.Currency = models.DefaultCurrency
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if _, err := d.Bun.NewInsert().Model(&item).Exec(ctx); err != nil {
		return models.MenuItem{}, apperror.Storage("db_insert_failed", err)
	}
	return item, nil
}

// GetItem fetches one menu item by id.
func (d *DB) GetItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.Bun.NewSelect().
		Model(&item).
		Where("m.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("menu_item_not_found", "menu item "+id+" not found")
	}
	if err != nil {
		return nil, apperror.Storage("db_read_failed", err)
	}
	return &item, nil
}

// UpdateItem writes only the fields set in patch. Updating an unknown id
// changes nothing and is not an error.
func (d *DB) UpdateItem(ctx context.Context, id string, patch models.MenuItemPatch) error {
	if patch.Empty() {
		return apperror.Validation("no_fields", "no updatable fields given")
	}

	q := d.Bun.NewUpdate().Model((*models.MenuItem)(nil)).Where("id = ?", id)
	if patch.Name != nil {
		q = q.Set("name = ?", *patch.Name)
	}
	if patch.Description != nil {
		q = q.Set("description = ?", *patch.Description)
	}
	if patch.PriceCents != nil {
		q = q.Set("price_cents = ?", *patch.PriceCents)
	}
	if patch.Currency != nil {
		q = q.Set("currency = ?", *patch.Currency)
	}
	if patch.Category != nil {
		q = q.Set("category = ?", *patch.Category)
	}
	if patch.Allergies != nil {
		q = q.Set("allergies = ?", *patch.Allergies)
	}
	if patch.ImageURL != nil {
		q = q.Set("image_url = ?", *patch.ImageURL)
	}

	if _, err := q.Exec(ctx); err != nil {
		return apperror.Storage("db_update_failed", err)
	}
	return nil
}

// DeleteItem removes a menu item. Past orders keep the names they captured.
func (d *DB) DeleteItem(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.MenuItem)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.Storage("db_delete_failed", err)
	}
	return nil
}

type priceRow struct {
	Name       string `bun:"name"`
	PriceCents int64  `bun:"price_cents"`
}

// Prices maps each known name to its current price. Names missing from
// the menu are absent from the result.
func (d *DB) Prices(ctx context.Context, names []string) (map[string]int64, error) {
	prices := make(map[string]int64, len(names))
	if len(names) == 0 {
		return prices, nil
	}

	var rows []priceRow
	err := d.Bun.NewSelect().
		Model((*models.MenuItem)(nil)).
		Column("name", "price_cents").
		Where("m.name IN (?)", bun.In(names)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperror.Storage("menu_lookup_failed", err)
	}
	for _, r := range rows {
		prices[r.Name] = r.PriceCents
	}
	return prices, nil
}
