package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event types written by point-of-sale devices.
const (
	EventTypeOrder       = "order"
	EventTypeOrderStatus = "order_status"
	EventTypeTap         = "tap"
)

// Order statuses. The order of the slice is the kitchen's usual flow, nothing enforces it.
const (
	StatusOrdered    = "ordered"
	StatusConfirmed  = "confirmed"
	StatusCooking    = "cooking"
	StatusDelivering = "delivering"
	StatusDelivered  = "delivered"
)

var OrderStatuses = []string{
	StatusOrdered,
	StatusConfirmed,
	StatusCooking,
	StatusDelivering,
	StatusDelivered,
}

// IsValidStatus reports whether s is one of OrderStatuses.
func IsValidStatus(s string) bool {
	for _, st := range OrderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Event is one row of the append-only events log.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	Seq          int64     `bun:"seq,pk,autoincrement" json:"-"`
	ID           string    `bun:"id,notnull,unique" json:"id"`
	TS           int64     `bun:"ts,notnull" json:"ts"`
	Type         string    `bun:"type,notnull" json:"type"`
	Message      string    `bun:"message" json:"message"`
	DeviceID     string    `bun:"device_id" json:"deviceId"`
	OrderID      string    `bun:"order_id,nullzero" json:"orderId,omitempty"`
	Table        string    `bun:"table_no,nullzero" json:"table,omitempty"`
	Items        []string  `bun:"items_json,type:text,nullzero" json:"items,omitempty"`
	Note         string    `bun:"note,nullzero" json:"note,omitempty"`
	CompanyName  string    `bun:"company_name,nullzero" json:"companyName,omitempty"`
	CustomerName string    `bun:"customer_name,nullzero" json:"customerName,omitempty"`
	Status       string    `bun:"status,nullzero" json:"status,omitempty"`
	TotalCents   int64     `bun:"total_cents,notnull,default:0" json:"total_cents"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// IsOrderEvent reports whether the event takes part in the order projection.
func (e Event) IsOrderEvent() bool {
	return e.Type == EventTypeOrder || e.Type == EventTypeOrderStatus
}

// ProjectionKey is the order id an order-related event belongs to.
func (e Event) ProjectionKey() string {
	if e.Type == EventTypeOrderStatus {
		return e.OrderID
	}
	return e.ID
}
