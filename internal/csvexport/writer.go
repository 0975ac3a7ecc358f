package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the balance stock header row.
var columns = []string{
	"Product",
	"HSN Code",
	"Units",
	"Balance Qty",
	"Taxable Value",
	"IGST",
	"CGST",
	"SGST",
	"Invoice Value",
	"Last Updated",
}

// Writer wraps csv.Writer for exporting balance stock as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteBalanceStock converts snapshot rows to CSV rows and writes them.
func (w *Writer) WriteBalanceStock(rows []domain.BalanceStock) error {
	for i := range rows {
		if err := w.csv.Write(balanceToRow(&rows[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func balanceToRow(b *domain.BalanceStock) []string {
	return []string{
		b.ProductName,
		b.HSNCode,
		b.Units,
		strconv.FormatFloat(b.BalanceQty, 'f', -1, 64),
		formatMoney(b.TaxableValue),
		formatMoney(b.IGST),
		formatMoney(b.CGST),
		formatMoney(b.SGST),
		formatMoney(b.InvoiceValue),
		formatTime(b.LastUpdated),
	}
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition. Runs of other
// characters become a single underscore and the result is capped at 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {sanitized_name}_{YYYY-MM-DD}.csv for the given day.
func BuildFilename(name string, day time.Time) string {
	return fmt.Sprintf("%s_%s.csv", SanitizeFilename(name), day.Format("2006-01-02"))
}
