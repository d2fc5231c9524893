package cgd

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount reads a Portuguese-formatted amount such as "1.234,56" or
// "-588,74". Dots group thousands and the comma separates decimals.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	return decimal.NewFromString(clean)
}
