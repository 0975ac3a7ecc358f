package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Order is a point-of-sale order as delivered by the external order source.
// Its items keep the loosely typed shape of the source; the normalizer turns
// them into canonical ledger events.
type Order struct {
	ID                   FlexString  `json:"id"`
	CreatedAt            time.Time   `json:"created_at"`
	ClientName           string      `json:"client_name"`
	IsSalonConsumption   bool        `json:"is_salon_consumption"`
	ConsumptionPurpose   string      `json:"consumption_purpose,omitempty"`
	RequisitionVoucherNo FlexString  `json:"requisition_voucher_no,omitempty"`
	Items                OrderItems  `json:"items"`
}

// OrderItem is one line of a POS order. Price is the GST-inclusive unit price.
type OrderItem struct {
	Name               string     `json:"name"`
	ServiceName        string     `json:"service_name,omitempty"`
	Price              any        `json:"price"`
	Quantity           any        `json:"quantity"`
	Qty                any        `json:"qty,omitempty"`
	Type               string     `json:"type"`
	GSTPercentage      any        `json:"gst_percentage,omitempty"`
	DiscountPercentage any        `json:"discount_percentage,omitempty"`
	HSNCode            FlexString `json:"hsn_code,omitempty"`
	Units              string     `json:"units,omitempty"`
	IsSalonConsumption bool       `json:"is_salon_consumption,omitempty"`
	// DecodeErr is set when the item could not be decoded. Only Name and
	// Type are then filled, on a best-effort basis.
	DecodeErr error `json:"-"`
}

// OrderItems decodes each element independently, so one malformed line item
// does not fail its order. Numbers are kept as json.Number.
type OrderItems []OrderItem

func (items *OrderItems) UnmarshalJSON(b []byte) error {
	if strings.TrimSpace(string(b)) == "null" {
		*items = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(OrderItems, 0, len(raw))
	for _, r := range raw {
		out = append(out, decodeItem(r))
	}
	*items = out
	return nil
}

func decodeItem(raw json.RawMessage) OrderItem {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var item OrderItem
	err := dec.Decode(&item)
	if err == nil {
		return item
	}
	item = OrderItem{DecodeErr: err}

	var loose map[string]any
	if json.Unmarshal(raw, &loose) == nil {
		item.Name = looseString(loose["name"])
		item.ServiceName = looseString(loose["service_name"])
		item.Type = looseString(loose["type"])
	}
	return item
}

func looseString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// FlexString decodes from either a JSON string or a JSON number. POS payloads
// are inconsistent about identifiers such as HSN codes and order ids.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(raw)
	return nil
}

func (s FlexString) String() string { return string(s) }

// OrderQuery selects orders from the external source. Dates are inclusive
// calendar days in the business time zone.
type OrderQuery struct {
	StartDate      time.Time
	EndDate        time.Time
	Classification Classification
}
