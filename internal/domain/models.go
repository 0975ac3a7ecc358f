package domain

import (
	"time"

	"github.com/google/uuid"
)

// Amounts is the GST-derived monetary block carried by every ledger row.
type Amounts struct {
	TaxableValue float64 `db:"taxable_value" json:"taxable_value"`
	IGST         float64 `db:"igst" json:"igst"`
	CGST         float64 `db:"cgst" json:"cgst"`
	SGST         float64 `db:"sgst" json:"sgst"`
	InvoiceValue float64 `db:"invoice_value" json:"invoice_value"`
}

// PurchaseEvent is one purchase invoice line. Purchases are keyed by their
// caller-supplied ID and are never deduplicated automatically.
type PurchaseEvent struct {
	ID                 uuid.UUID   `db:"id" json:"id"`
	Date               time.Time   `db:"date" json:"date"`
	ProductName        string      `db:"product_name" json:"product_name"`
	HSNCode            string      `db:"hsn_code" json:"hsn_code"`
	Units              string      `db:"units" json:"units"`
	InvoiceNo          string      `db:"invoice_no" json:"invoice_no"`
	Quantity           float64     `db:"quantity" json:"quantity"`
	MRPInclGST         float64     `db:"mrp_incl_gst" json:"mrp_incl_gst"`
	DiscountPercentage float64     `db:"discount_percentage" json:"discount_percentage"`
	GSTPercentage      float64     `db:"gst_percentage" json:"gst_percentage"`
	CostPerUnitExGST   float64     `db:"cost_per_unit_ex_gst" json:"cost_per_unit_ex_gst"`
	IsInterstate       bool        `db:"is_interstate" json:"is_interstate"`
	Amounts
	Source    EventSource `db:"source" json:"source"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// SaleEvent is stock leaving through a customer sale. Natural key: (InvoiceNo, ProductName).
type SaleEvent struct {
	ID                       uuid.UUID `db:"id" json:"id"`
	OrderID                  string    `db:"order_id" json:"order_id"`
	InvoiceNo                string    `db:"invoice_no" json:"invoice_no"`
	Date                     time.Time `db:"date" json:"date"`
	ProductName              string    `db:"product_name" json:"product_name"`
	HSNCode                  string    `db:"hsn_code" json:"hsn_code"`
	Units                    string    `db:"units" json:"units"`
	ClientName               string    `db:"client_name" json:"client_name"`
	Quantity                 float64   `db:"quantity" json:"quantity"`
	UnitPriceInclGST         float64   `db:"unit_price_incl_gst" json:"unit_price_incl_gst"`
	DiscountPercentage       float64   `db:"discount_percentage" json:"discount_percentage"`
	GSTPercentage            float64   `db:"gst_percentage" json:"gst_percentage"`
	Amounts
	PurchaseCostPerUnitExGST float64   `db:"purchase_cost_per_unit_ex_gst" json:"purchase_cost_per_unit_ex_gst"`
	CostIsEstimated          bool      `db:"cost_is_estimated" json:"cost_is_estimated"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
}

// ConsumptionEvent is stock leaving through internal salon use.
// Natural key: (OrderID, ProductName).
type ConsumptionEvent struct {
	ID                       uuid.UUID `db:"id" json:"id"`
	OrderID                  string    `db:"order_id" json:"order_id"`
	RequisitionVoucherNo     string    `db:"requisition_voucher_no" json:"requisition_voucher_no"`
	Purpose                  string    `db:"purpose" json:"purpose"`
	Date                     time.Time `db:"date" json:"date"`
	ProductName              string    `db:"product_name" json:"product_name"`
	HSNCode                  string    `db:"hsn_code" json:"hsn_code"`
	Units                    string    `db:"units" json:"units"`
	ClientName               string    `db:"client_name" json:"client_name"`
	Quantity                 float64   `db:"quantity" json:"quantity"`
	UnitPriceInclGST         float64   `db:"unit_price_incl_gst" json:"unit_price_incl_gst"`
	DiscountPercentage       float64   `db:"discount_percentage" json:"discount_percentage"`
	GSTPercentage            float64   `db:"gst_percentage" json:"gst_percentage"`
	Amounts
	PurchaseCostPerUnitExGST float64   `db:"purchase_cost_per_unit_ex_gst" json:"purchase_cost_per_unit_ex_gst"`
	CostIsEstimated          bool      `db:"cost_is_estimated" json:"cost_is_estimated"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
}

// BalanceStock is the derived on-hand position of one product.
type BalanceStock struct {
	ProductName string  `db:"product_name" json:"product_name"`
	HSNCode     string  `db:"hsn_code" json:"hsn_code"`
	Units       string  `db:"units" json:"units"`
	BalanceQty  float64 `db:"balance_qty" json:"balance_qty"`
	Amounts
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

// LedgerFilter narrows a ledger stream listing. Zero values mean "no constraint".
type LedgerFilter struct {
	ProductName string
	From        *time.Time
	To          *time.Time
	Offset      int
	Limit       int
}

// SyncRun records one execution of the synchronization orchestrator.
type SyncRun struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	Classification Classification `db:"classification" json:"classification"`
	StartDate      time.Time      `db:"start_date" json:"start_date"`
	EndDate        time.Time      `db:"end_date" json:"end_date"`
	Status         SyncRunStatus  `db:"status" json:"status"`
	Total          int            `db:"total" json:"total"`
	Processed      int            `db:"processed" json:"processed"`
	Succeeded      int            `db:"succeeded" json:"succeeded"`
	Failed         int            `db:"failed" json:"failed"`
	InsertedCount  int            `db:"inserted_count" json:"inserted_count"`
	ErrorSummary   string         `db:"error_summary" json:"error_summary"`
	StartedAt      time.Time      `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time     `db:"finished_at" json:"finished_at"`
}

// ProcessingError is one per-item or per-chunk failure collected during a sync.
type ProcessingError struct {
	OrderID     string `json:"order_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Stage       string `json:"stage"`
	Message     string `json:"message"`
}

// ProcessingStats counts line items, never orders, so partial success inside
// one order stays visible.
type ProcessingStats struct {
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    []ProcessingError `json:"errors"`
}

// DateWindow is an inclusive calendar-day range.
type DateWindow struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// SyncResult is what a sync cycle reports back to its caller.
type SyncResult struct {
	RunID               uuid.UUID       `json:"run_id"`
	Success             bool            `json:"success"`
	Status              SyncRunStatus   `json:"status"`
	Classification      Classification  `json:"classification"`
	Window              DateWindow      `json:"window"`
	WindowDefaulted     bool            `json:"window_defaulted"`
	Stats               ProcessingStats `json:"stats"`
	InsertedCount       int             `json:"inserted_count"`
	Incomplete          bool            `json:"incomplete"`
	BalanceProducts     int             `json:"balance_products"`
	ReconciliationError string          `json:"reconciliation_error,omitempty"`
}
