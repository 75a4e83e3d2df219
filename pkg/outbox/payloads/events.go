package payloads

import "github.com/shopspring/decimal"

// SaleSubmittedEvent is emitted once a checkout has been written to the sales ledger.
type SaleSubmittedEvent struct {
	InvoiceID     int64           `json:"invoice_id"`
	SaleDate      string          `json:"sale_date"`
	DestinationID string          `json:"destination_id"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Lines         []SaleLine      `json:"lines"`
}

// SaleLine mirrors one submitted order line.
type SaleLine struct {
	InventoryID int64           `json:"inventory_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}
