package postgres

import (
	"fmt"
	"strings"

	"stockledger/internal/domain"
)

// ledgerWhere renders the WHERE clause for a LedgerFilter. Placeholders start at $1.
func ledgerWhere(f domain.LedgerFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.ProductName != "" {
		args = append(args, f.ProductName)
		conds = append(conds, fmt.Sprintf("product_name = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// pageClause appends LIMIT/OFFSET. A zero limit returns every row.
func pageClause(f domain.LedgerFilter, args []interface{}) (string, []interface{}) {
	clause := ""
	if f.Limit > 0 {
		args = append(args, f.Limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return clause, args
}

// valuesList renders "($1, ..., $n), (...)" for rows of width columns.
func valuesList(rows, width int) string {
	groups := make([]string, rows)
	ph := make([]string, width)
	for i := range rows {
		base := i * width
		for j := range width {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		groups[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	return strings.Join(groups, ", ")
}
