package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"stockledger/internal/domain"
	"stockledger/internal/port"
	"stockledger/internal/retry"
)

type posOrderRow struct {
	ID                   string    `db:"id"`
	CreatedAt            time.Time `db:"created_at"`
	ClientName           string    `db:"client_name"`
	IsSalonConsumption   bool      `db:"is_salon_consumption"`
	ConsumptionPurpose   string    `db:"consumption_purpose"`
	RequisitionVoucherNo string    `db:"requisition_voucher_no"`
	Items                []byte    `db:"items"`
	Services             []byte    `db:"services"`
}

type posOrderRepo struct {
	db  *sqlx.DB
	loc *time.Location
}

// NewPOSOrderRepo creates an OrderSource reading the pos_orders table. Query
// dates are interpreted as calendar days in loc.
func NewPOSOrderRepo(db *sqlx.DB, loc *time.Location) port.OrderSource {
	if loc == nil {
		loc = time.UTC
	}
	return &posOrderRepo{db: db, loc: loc}
}

func (r *posOrderRepo) FetchOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	from := time.Date(q.StartDate.Year(), q.StartDate.Month(), q.StartDate.Day(), 0, 0, 0, 0, r.loc)
	to := time.Date(q.EndDate.Year(), q.EndDate.Month(), q.EndDate.Day(), 0, 0, 0, 0, r.loc).AddDate(0, 0, 1)

	query := `SELECT id, created_at, client_name, is_salon_consumption, consumption_purpose,
			requisition_voucher_no, items, services
		 FROM pos_orders
		 WHERE created_at >= $1 AND created_at < $2`
	args := []interface{}{from, to}
	switch q.Classification {
	case domain.ClassificationSalon:
		query += " AND is_salon_consumption"
	case domain.ClassificationCustomer:
		query += " AND NOT is_salon_consumption"
	}
	query += " ORDER BY created_at, id"

	var rows []posOrderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("posOrderRepo.FetchOrders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		items, err := decodeItems(row.Items)
		if err != nil {
			return nil, fmt.Errorf("posOrderRepo.FetchOrders: order %s items: %w", row.ID, err)
		}
		services, err := decodeItems(row.Services)
		if err != nil {
			return nil, fmt.Errorf("posOrderRepo.FetchOrders: order %s services: %w", row.ID, err)
		}
		orders = append(orders, domain.Order{
			ID:                   domain.FlexString(row.ID),
			CreatedAt:            row.CreatedAt,
			ClientName:           row.ClientName,
			IsSalonConsumption:   row.IsSalonConsumption,
			ConsumptionPurpose:   row.ConsumptionPurpose,
			RequisitionVoucherNo: domain.FlexString(row.RequisitionVoucherNo),
			Items:                append(items, services...),
		})
	}
	return orders, nil
}

// decodeItems decodes a JSONB item array. Malformed elements come back with
// DecodeErr set; only a column that is not an array at all fails.
func decodeItems(raw []byte) (domain.OrderItems, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var items domain.OrderItems
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, retry.Permanent(err)
	}
	return items, nil
}
