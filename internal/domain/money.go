package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPrice renders an amount the way the shop displays it: "19,00 €".
func FormatPrice(v decimal.Decimal) string {
	return strings.Replace(v.StringFixed(2), ".", ",", 1) + " €"
}
