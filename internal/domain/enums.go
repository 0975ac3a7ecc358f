package domain

import "strings"

// Classification selects which stream an external order sync feeds.
type Classification string

const (
	ClassificationSalon    Classification = "salon"
	ClassificationCustomer Classification = "customer"
)

// ParseClassification maps a user-supplied string to a Classification.
func ParseClassification(s string) (Classification, bool) {
	switch Classification(strings.ToLower(strings.TrimSpace(s))) {
	case ClassificationSalon:
		return ClassificationSalon, true
	case ClassificationCustomer:
		return ClassificationCustomer, true
	default:
		return "", false
	}
}

// EventKind identifies one of the three ledger streams.
type EventKind string

const (
	EventKindPurchase    EventKind = "purchase"
	EventKindSale        EventKind = "sale"
	EventKindConsumption EventKind = "consumption"
)

// EventSource records how a ledger event entered the system.
type EventSource string

const (
	SourceManual  EventSource = "manual"
	SourceImport  EventSource = "import"
	SourcePOSSync EventSource = "pos_sync"
)

// SyncRunStatus represents the outcome of one synchronization cycle.
type SyncRunStatus string

const (
	SyncRunStatusRunning    SyncRunStatus = "running"
	SyncRunStatusSuccess    SyncRunStatus = "success"
	SyncRunStatusPartial    SyncRunStatus = "partial"
	SyncRunStatusFailed     SyncRunStatus = "failed"
	SyncRunStatusIncomplete SyncRunStatus = "incomplete"
)

// ItemTypeProduct is the only POS line item type that moves stock.
const ItemTypeProduct = "product"
