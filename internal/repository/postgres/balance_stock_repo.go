package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

type balanceStockRepo struct {
	db *sqlx.DB
}

// NewBalanceStockRepo creates a new PostgreSQL-backed BalanceStockRepository.
func NewBalanceStockRepo(db *sqlx.DB) port.BalanceStockRepository {
	return &balanceStockRepo{db: db}
}

func (r *balanceStockRepo) Upsert(ctx context.Context, rows []domain.BalanceStock) error {
	if len(rows) == 0 {
		return nil
	}

	const width = 10
	valueArgs := make([]interface{}, 0, len(rows)*width)
	for _, b := range rows {
		valueArgs = append(valueArgs,
			b.ProductName, b.HSNCode, b.Units, b.BalanceQty,
			b.TaxableValue, b.IGST, b.CGST, b.SGST, b.InvoiceValue, b.LastUpdated)
	}

	query := fmt.Sprintf(`INSERT INTO balance_stock (
		product_name, hsn_code, units, balance_qty,
		taxable_value, igst, cgst, sgst, invoice_value, last_updated
	) VALUES %s
	ON CONFLICT (product_name) DO UPDATE SET
		hsn_code = EXCLUDED.hsn_code,
		units = EXCLUDED.units,
		balance_qty = EXCLUDED.balance_qty,
		taxable_value = EXCLUDED.taxable_value,
		igst = EXCLUDED.igst,
		cgst = EXCLUDED.cgst,
		sgst = EXCLUDED.sgst,
		invoice_value = EXCLUDED.invoice_value,
		last_updated = EXCLUDED.last_updated`, valuesList(len(rows), width))

	if _, err := r.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("balanceStockRepo.Upsert: %w", err)
	}
	return nil
}

func (r *balanceStockRepo) List(ctx context.Context) ([]domain.BalanceStock, error) {
	var rows []domain.BalanceStock
	err := r.db.SelectContext(ctx, &rows,
		`SELECT product_name, hsn_code, units, balance_qty,
			taxable_value, igst, cgst, sgst, invoice_value, last_updated
		 FROM balance_stock ORDER BY product_name`)
	if err != nil {
		return nil, fmt.Errorf("balanceStockRepo.List: %w", err)
	}
	return rows, nil
}

func (r *balanceStockRepo) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM balance_stock WHERE product_name <> ALL($1)", pq.Array(keep))
	if err != nil {
		return 0, fmt.Errorf("balanceStockRepo.DeleteExcept: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
