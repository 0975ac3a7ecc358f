package domain

import "github.com/google/uuid"

// ledgerNamespace scopes the name-based ids of synced ledger rows.
var ledgerNamespace = uuid.MustParse("6f1c7a52-3c0e-4b8e-9a57-0d1f4e5b2a91")

// SaleKey returns the natural key of a sale row.
func (s *SaleEvent) SaleKey() string { return s.InvoiceNo + "\x00" + s.ProductName }

// ConsumptionKey returns the natural key of a consumption row.
func (c *ConsumptionEvent) ConsumptionKey() string { return c.OrderID + "\x00" + c.ProductName }

// SaleID derives a stable id from a sale's natural key, so a replayed POS
// order produces the same row.
func SaleID(invoiceNo, productName string) uuid.UUID {
	return uuid.NewSHA1(ledgerNamespace, []byte("sale\x00"+invoiceNo+"\x00"+productName))
}

// ConsumptionID derives a stable id from a consumption's natural key.
func ConsumptionID(orderID, productName string) uuid.UUID {
	return uuid.NewSHA1(ledgerNamespace, []byte("consumption\x00"+orderID+"\x00"+productName))
}
