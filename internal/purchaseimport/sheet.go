// Package purchaseimport reads purchase invoice lines from a spreadsheet.
package purchaseimport

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"stockledger/internal/domain"
	"stockledger/internal/service"
)

// headerAliases maps normalized header text to the input field it fills.
var headerAliases = map[string]string{
	"id":                  "id",
	"date":                "date",
	"purchase_date":       "date",
	"invoice_date":        "date",
	"product":             "product_name",
	"product_name":        "product_name",
	"item":                "product_name",
	"hsn":                 "hsn_code",
	"hsn_code":            "hsn_code",
	"unit":                "units",
	"units":               "units",
	"invoice":             "invoice_no",
	"invoice_no":          "invoice_no",
	"invoice_number":      "invoice_no",
	"qty":                 "quantity",
	"quantity":            "quantity",
	"mrp":                 "mrp_incl_gst",
	"mrp_incl_gst":        "mrp_incl_gst",
	"price":               "mrp_incl_gst",
	"discount":            "discount_percentage",
	"discount_percentage": "discount_percentage",
	"gst":                 "gst_percentage",
	"gst_percentage":      "gst_percentage",
	"gst_rate":            "gst_percentage",
	"interstate":          "is_interstate",
	"is_interstate":       "is_interstate",
}

var required = []string{"date", "product_name", "quantity"}

// dateLayouts are tried in order for text date cells.
var dateLayouts = []string{service.DateLayout, "02-01-2006", "02/01/2006", "2006/01/02", "01-02-06"}

// Read parses the first sheet of an .xlsx workbook, or the named sheet.
func Read(r io.Reader, sheet string) ([]service.RecordPurchaseInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]service.RecordPurchaseInput, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", domain.ErrInvalidInput)
	}
	columns := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := columns[field]; !dup {
				columns[field] = i
			}
		}
	}
	for _, field := range required {
		if _, ok := columns[field]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrInvalidInput, field)
		}
	}

	var inputs []service.RecordPurchaseInput
	var errs []error
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		in, err := parseRow(row, columns)
		if err != nil {
			// spreadsheet rows are 1-based
			errs = append(errs, fmt.Errorf("sheet row %d: %w", i+1, err))
			continue
		}
		inputs = append(inputs, in)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return inputs, nil
}

func parseRow(row []string, columns map[string]int) (service.RecordPurchaseInput, error) {
	get := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	in := service.RecordPurchaseInput{
		ProductName: get("product_name"),
		HSNCode:     get("hsn_code"),
		Units:       get("units"),
		InvoiceNo:   get("invoice_no"),
	}
	if raw := get("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return in, fmt.Errorf("id: %w", err)
		}
		in.ID = &id
	}

	date, err := parseDate(get("date"))
	if err != nil {
		return in, err
	}
	in.Date = date

	for _, f := range []struct {
		field string
		dst   *float64
	}{
		{"quantity", &in.Quantity},
		{"mrp_incl_gst", &in.MRPInclGST},
		{"discount_percentage", &in.DiscountPercentage},
		{"gst_percentage", &in.GSTPercentage},
	} {
		v, err := parseNumber(get(f.field))
		if err != nil {
			return in, fmt.Errorf("%s: %w", f.field, err)
		}
		*f.dst = v
	}

	switch strings.ToLower(get("is_interstate")) {
	case "", "no", "n", "false", "0":
	case "yes", "y", "true", "1":
		in.IsInterstate = true
	default:
		return in, fmt.Errorf("is_interstate: unrecognized value %q", get("is_interstate"))
	}
	return in, nil
}

func parseDate(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(service.DateLayout), nil
		}
	}
	// unformatted date cells come through as the Excel serial number
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.Format(service.DateLayout), nil
		}
	}
	return "", fmt.Errorf("date %q is not a recognized date", raw)
}

func parseNumber(raw string) (float64, error) {
	raw = strings.TrimSuffix(strings.ReplaceAll(raw, ",", ""), "%")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("(", "", ")", "", "%", "percentage", ".", "").Replace(h)
	return strings.Join(strings.Fields(strings.ReplaceAll(h, "_", " ")), "_")
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
