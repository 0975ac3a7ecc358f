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

const saleColumns = `id, order_id, invoice_no, date, product_name, hsn_code, units, client_name,
	quantity, unit_price_incl_gst, discount_percentage, gst_percentage,
	taxable_value, igst, cgst, sgst, invoice_value,
	purchase_cost_per_unit_ex_gst, cost_is_estimated, created_at`

type saleRepo struct {
	db *sqlx.DB
}

// NewSaleRepo creates a new PostgreSQL-backed SaleRepository.
func NewSaleRepo(db *sqlx.DB) port.SaleRepository {
	return &saleRepo{db: db}
}

func (r *saleRepo) Upsert(ctx context.Context, sales []domain.SaleEvent) (int, error) {
	if len(sales) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	const width = 20
	valueArgs := make([]interface{}, 0, len(sales)*width)
	for _, s := range sales {
		created := s.CreatedAt
		if created.IsZero() {
			created = now
		}
		valueArgs = append(valueArgs,
			s.ID, s.OrderID, s.InvoiceNo, s.Date, s.ProductName, s.HSNCode, s.Units, s.ClientName,
			s.Quantity, s.UnitPriceInclGST, s.DiscountPercentage, s.GSTPercentage,
			s.TaxableValue, s.IGST, s.CGST, s.SGST, s.InvoiceValue,
			s.PurchaseCostPerUnitExGST, s.CostIsEstimated, created)
	}

	query := fmt.Sprintf(`INSERT INTO sales (%s) VALUES %s
		ON CONFLICT (invoice_no, product_name) DO NOTHING`,
		saleColumns, valuesList(len(sales), width))
	result, err := r.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, fmt.Errorf("saleRepo.Upsert: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (r *saleRepo) List(ctx context.Context, filter domain.LedgerFilter) ([]domain.SaleEvent, int, error) {
	where, args := ledgerWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM sales"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("saleRepo.List count: %w", err)
	}

	page, args := pageClause(filter, args)
	var sales []domain.SaleEvent
	err := r.db.SelectContext(ctx, &sales,
		"SELECT "+saleColumns+" FROM sales"+where+
			" ORDER BY date DESC, created_at DESC, id DESC"+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("saleRepo.List: %w", err)
	}
	return sales, total, nil
}

func (r *saleRepo) ListAll(ctx context.Context) ([]domain.SaleEvent, error) {
	var sales []domain.SaleEvent
	if err := r.db.SelectContext(ctx, &sales, "SELECT "+saleColumns+" FROM sales ORDER BY date, id"); err != nil {
		return nil, fmt.Errorf("saleRepo.ListAll: %w", err)
	}
	return sales, nil
}

func (r *saleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sales WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("saleRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrSaleNotFound
	}
	return nil
}
