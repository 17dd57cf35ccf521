package models

// Order is the current state of one order, folded from its order and
// order_status events. It is never stored.
type Order struct {
	ID           string   `json:"id"`
	TS           int64    `json:"ts"`
	Type         string   `json:"type"`
	Message      string   `json:"message"`
	DeviceID     string   `json:"deviceId"`
	Table        string   `json:"table,omitempty"`
	Items        []string `json:"items,omitempty"`
	Note         string   `json:"note,omitempty"`
	CompanyName  string   `json:"companyName,omitempty"`
	CustomerName string   `json:"customerName,omitempty"`
	Status       string   `json:"status"`
	TotalCents   int64    `json:"total_cents"`
	// StatusTS is the ts of the event that set Status.
	StatusTS int64 `json:"statusTs"`

	Seq       int64 `json:"-"`
	StatusSeq int64 `json:"-"`
}

// IsActive reports whether the order still needs attention from the kitchen.
func (o Order) IsActive() bool {
	return o.Status != StatusDelivered
}
