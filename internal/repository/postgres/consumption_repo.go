package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

const consumptionColumns = `id, order_id, requisition_voucher_no, purpose, date, product_name,
	hsn_code, units, client_name, quantity, unit_price_incl_gst, discount_percentage,
	gst_percentage, taxable_value, igst, cgst, sgst, invoice_value,
	purchase_cost_per_unit_ex_gst, cost_is_estimated, created_at`

type consumptionRepo struct {
	db *sqlx.DB
}

// NewConsumptionRepo creates a new PostgreSQL-backed ConsumptionRepository.
func NewConsumptionRepo(db *sqlx.DB) port.ConsumptionRepository {
	return &consumptionRepo{db: db}
}

func (r *consumptionRepo) Upsert(ctx context.Context, consumptions []domain.ConsumptionEvent) (int, error) {
	if len(consumptions) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	const width = 21
	valueArgs := make([]interface{}, 0, len(consumptions)*width)
	for _, c := range consumptions {
		created := c.CreatedAt
		if created.IsZero() {
			created = now
		}
		valueArgs = append(valueArgs,
			c.ID, c.OrderID, c.RequisitionVoucherNo, c.Purpose, c.Date, c.ProductName,
			c.HSNCode, c.Units, c.ClientName, c.Quantity, c.UnitPriceInclGST, c.DiscountPercentage,
			c.GSTPercentage, c.TaxableValue, c.IGST, c.CGST, c.SGST, c.InvoiceValue,
			c.PurchaseCostPerUnitExGST, c.CostIsEstimated, created)
	}

	query := fmt.Sprintf(`INSERT INTO consumptions (%s) VALUES %s
		ON CONFLICT (order_id, product_name) DO NOTHING`,
		consumptionColumns, valuesList(len(consumptions), width))
	result, err := r.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, fmt.Errorf("consumptionRepo.Upsert: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (r *consumptionRepo) List(ctx context.Context, filter domain.LedgerFilter) ([]domain.ConsumptionEvent, int, error) {
	where, args := ledgerWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM consumptions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("consumptionRepo.List count: %w", err)
	}

	page, args := pageClause(filter, args)
	var consumptions []domain.ConsumptionEvent
	err := r.db.SelectContext(ctx, &consumptions,
		"SELECT "+consumptionColumns+" FROM consumptions"+where+
			" ORDER BY date DESC, created_at DESC, id DESC"+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("consumptionRepo.List: %w", err)
	}
	return consumptions, total, nil
}

func (r *consumptionRepo) ListAll(ctx context.Context) ([]domain.ConsumptionEvent, error) {
	var consumptions []domain.ConsumptionEvent
	err := r.db.SelectContext(ctx, &consumptions,
		"SELECT "+consumptionColumns+" FROM consumptions ORDER BY date, id")
	if err != nil {
		return nil, fmt.Errorf("consumptionRepo.ListAll: %w", err)
	}
	return consumptions, nil
}

func (r *consumptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM consumptions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("consumptionRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrConsumptionNotFound
	}
	return nil
}
