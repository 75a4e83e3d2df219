package enums

// SaleType tags the kind of purchase submitted to the sales ledger.
type SaleType string

const (
	// SaleTypeSale is the only type the storefront submits.
	SaleTypeSale SaleType = "Venta"
)

// String implements fmt.Stringer.
func (s SaleType) String() string {
	return string(s)
}
