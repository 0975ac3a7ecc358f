package domain

import "time"

// LedgerEventType names a change notification emitted after a ledger write.
type LedgerEventType string

const (
	EventLedgerChanged       LedgerEventType = "ledger.changed"
	EventBalanceStockUpdated LedgerEventType = "balance_stock.updated"
	EventSyncCompleted       LedgerEventType = "sync.completed"
)

// LedgerEvent is published on the event bus after a write succeeds.
type LedgerEvent struct {
	Type       LedgerEventType `json:"type"`
	Kind       EventKind       `json:"kind,omitempty"`
	Count      int             `json:"count"`
	Products   []string        `json:"products,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
