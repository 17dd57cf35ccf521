package models

import (
	"time"

	"github.com/uptrace/bun"
)

const DefaultCurrency = "AUD"

type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items,alias:m"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	PriceCents  int64     `bun:"price_cents,notnull,default:0" json:"price_cents"`
	Currency    string    `bun:"currency" json:"currency"`
	Category    string    `bun:"category" json:"category"`
	Allergies   string    `bun:"allergies" json:"allergies"`
	ImageURL    string    `bun:"image_url" json:"image_url"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

// MenuItemPatch carries the fields of a partial menu update; nil means unchanged.
type MenuItemPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Currency    *string `json:"currency"`
	Category    *string `json:"category"`
	Allergies   *string `json:"allergies"`
	ImageURL    *string `json:"image_url"`
}

// Empty reports whether the patch changes nothing.
func (p MenuItemPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.PriceCents == nil &&
		p.Currency == nil && p.Category == nil && p.Allergies == nil && p.ImageURL == nil
}
