package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"yurica-pos/internal/apperror"
	"yurica-pos/internal/models"
)

const (
	DefaultType     = models.EventTypeTap
	DefaultMessage  = "button pressed"
	DefaultDeviceID = "ios"
)

// Number is an integer field that devices send either as a JSON number or
// as a numeric string. Anything else, null included, leaves it unset.
type Number struct {
	Value int64
	Set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	if raw == "" {
		return nil
	}

	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*n = Number{Value: v, Set: true}
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		*n = Number{Value: int64(f), Set: true}
	}
	return nil
}

// Text is a string field that devices sometimes send as a number (table 7).
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// EventRequest is the raw body of POST /api/events.
type EventRequest struct {
	Type         string   `json:"type"`
	Message      Text     `json:"message"`
	DeviceID     Text     `json:"deviceId"`
	OrderID      Text     `json:"orderId"`
	Table        Text     `json:"table"`
	Items        []string `json:"items"`
	Note         Text     `json:"note"`
	CompanyName  Text     `json:"companyName"`
	CustomerName Text     `json:"customerName"`
	Status       string   `json:"status"`
	TotalCents   Number   `json:"total_cents"`
	TS           Number   `json:"ts"`
}

// Request is one of OrderPlaced, StatusChanged or Telemetry.
type Request interface {
	// Event builds the record to append. The store fills in id and createdAt.
	Event() models.Event
}

// Envelope holds the fields every event carries.
type Envelope struct {
	TS       int64
	Message  string
	DeviceID string
}

type OrderPlaced struct {
	Envelope
	Table        string
	Items        []string
	Note         string
	CompanyName  string
	CustomerName string
	Status       string
	// TotalCents is nil when the total has to be priced from the menu.
	TotalCents *int64
}

type StatusChanged struct {
	Envelope
	OrderID string
	Status  string
}

// Telemetry is any event that is not part of an order's life, tap included.
type Telemetry struct {
	Envelope
	Type         string
	OrderID      string
	Table        string
	Items        []string
	Note         string
	CompanyName  string
	CustomerName string
}

func (r OrderPlaced) Event() models.Event {
	var total int64
	if r.TotalCents != nil {
		total = *r.TotalCents
	}
	return models.Event{
		TS:           r.TS,
		Type:         models.EventTypeOrder,
		Message:      r.Message,
		DeviceID:     r.DeviceID,
		Table:        r.Table,
		Items:        r.Items,
		Note:         r.Note,
		CompanyName:  r.CompanyName,
		CustomerName: r.CustomerName,
		Status:       r.Status,
		TotalCents:   total,
	}
}

func (r StatusChanged) Event() models.Event {
	return models.Event{
		TS:       r.TS,
		Type:     models.EventTypeOrderStatus,
		Message:  r.Message,
		DeviceID: r.DeviceID,
		OrderID:  r.OrderID,
		Status:   r.Status,
	}
}

func (r Telemetry) Event() models.Event {
	return models.Event{
		TS:           r.TS,
		Type:         r.Type,
		Message:      r.Message,
		DeviceID:     r.DeviceID,
		OrderID:      r.OrderID,
		Table:        r.Table,
		Items:        r.Items,
		Note:         r.Note,
		CompanyName:  r.CompanyName,
		CustomerName: r.CustomerName,
	}
}

// Parse validates a raw request and applies the defaults of its variant.
// now supplies ts when the device did not send a usable one.
func Parse(req EventRequest, now time.Time) (Request, error) {
	env := Envelope{
		TS:       now.UnixMilli(),
		Message:  orDefault(string(req.Message), DefaultMessage),
		DeviceID: orDefault(string(req.DeviceID), DefaultDeviceID),
	}
	if req.TS.Set && req.TS.Value > 0 {
		env.TS = req.TS.Value
	}

	eventType := orDefault(strings.TrimSpace(req.Type), DefaultType)
	status := strings.TrimSpace(req.Status)

	switch eventType {
	case models.EventTypeOrder:
		if status == "" {
			status = models.StatusOrdered
		}
		if !models.IsValidStatus(status) {
			return nil, invalidStatus()
		}
		o := OrderPlaced{
			Envelope:     env,
			Table:        string(req.Table),
			Items:        cleanItems(req.Items),
			Note:         string(req.Note),
			CompanyName:  string(req.CompanyName),
			CustomerName: string(req.CustomerName),
			Status:       status,
		}
		if req.TotalCents.Set {
			total := req.TotalCents.Value
			o.TotalCents = &total
		}
		return o, nil

	case models.EventTypeOrderStatus:
		orderID := strings.TrimSpace(string(req.OrderID))
		if orderID == "" {
			return nil, apperror.Validation("invalid_event", "orderId is required for order_status events")
		}
		if !models.IsValidStatus(status) {
			return nil, invalidStatus()
		}
		return StatusChanged{Envelope: env, OrderID: orderID, Status: status}, nil

	default:
		return Telemetry{
			Envelope:     env,
			Type:         eventType,
			OrderID:      string(req.OrderID),
			Table:        string(req.Table),
			Items:        cleanItems(req.Items),
			Note:         string(req.Note),
			CompanyName:  string(req.CompanyName),
			CustomerName: string(req.CustomerName),
		}, nil
	}
}

func invalidStatus() error {
	return apperror.Validation("invalid_status", "status must be one of "+strings.Join(models.OrderStatuses, ", "))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func cleanItems(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
