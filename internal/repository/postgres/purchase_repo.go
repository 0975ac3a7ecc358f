package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

const purchaseColumns = `id, date, product_name, hsn_code, units, invoice_no, quantity,
	mrp_incl_gst, discount_percentage, gst_percentage, cost_per_unit_ex_gst, is_interstate,
	taxable_value, igst, cgst, sgst, invoice_value, source, created_at`

type purchaseRepo struct {
	db *sqlx.DB
}

// NewPurchaseRepo creates a new PostgreSQL-backed PurchaseRepository.
func NewPurchaseRepo(db *sqlx.DB) port.PurchaseRepository {
	return &purchaseRepo{db: db}
}

func (r *purchaseRepo) Insert(ctx context.Context, purchases []domain.PurchaseEvent) (int, error) {
	if len(purchases) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	const width = 19
	valueArgs := make([]interface{}, 0, len(purchases)*width)
	for i := range purchases {
		p := &purchases[i]
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.Source == "" {
			p.Source = domain.SourceManual
		}
		valueArgs = append(valueArgs,
			p.ID, p.Date, p.ProductName, p.HSNCode, p.Units, p.InvoiceNo, p.Quantity,
			p.MRPInclGST, p.DiscountPercentage, p.GSTPercentage, p.CostPerUnitExGST, p.IsInterstate,
			p.TaxableValue, p.IGST, p.CGST, p.SGST, p.InvoiceValue, p.Source, p.CreatedAt)
	}

	query := fmt.Sprintf(`INSERT INTO purchases (%s) VALUES %s`,
		purchaseColumns, valuesList(len(purchases), width))
	result, err := r.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return 0, domain.ErrDuplicatePurchase
		}
		return 0, fmt.Errorf("purchaseRepo.Insert: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (r *purchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseEvent, error) {
	var p domain.PurchaseEvent
	err := r.db.GetContext(ctx, &p,
		"SELECT "+purchaseColumns+" FROM purchases WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("purchaseRepo.GetByID: %w", err)
	}
	return &p, nil
}

func (r *purchaseRepo) List(ctx context.Context, filter domain.LedgerFilter) ([]domain.PurchaseEvent, int, error) {
	where, args := ledgerWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM purchases"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("purchaseRepo.List count: %w", err)
	}

	page, args := pageClause(filter, args)
	var purchases []domain.PurchaseEvent
	err := r.db.SelectContext(ctx, &purchases,
		"SELECT "+purchaseColumns+" FROM purchases"+where+
			" ORDER BY date DESC, created_at DESC, id DESC"+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("purchaseRepo.List: %w", err)
	}
	return purchases, total, nil
}

func (r *purchaseRepo) ListAll(ctx context.Context) ([]domain.PurchaseEvent, error) {
	var purchases []domain.PurchaseEvent
	err := r.db.SelectContext(ctx, &purchases,
		"SELECT "+purchaseColumns+" FROM purchases ORDER BY date DESC, created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("purchaseRepo.ListAll: %w", err)
	}
	return purchases, nil
}

func (r *purchaseRepo) Latest(ctx context.Context, productName string) (*domain.PurchaseEvent, error) {
	var p domain.PurchaseEvent
	err := r.db.GetContext(ctx, &p,
		`SELECT `+purchaseColumns+` FROM purchases WHERE product_name = $1
		 ORDER BY date DESC, created_at DESC, id DESC LIMIT 1`, productName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("purchaseRepo.Latest: %w", err)
	}
	return &p, nil
}

func (r *purchaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM purchases WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("purchaseRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}
