package billing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/clinic-billing/internal/records"
)

// NoPaymentMethod is shown on lines whose checkout has no payments.
const NoPaymentMethod = "None"

// Balance is what remains owed on one line. Overpayment floors at zero and
// no credit is carried.
func Balance(charge, paid decimal.Decimal) decimal.Decimal {
	b := round2(charge).Sub(round2(paid))
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// PaymentMethod returns the method of the checkout's first payment.
func PaymentMethod(c *records.Checkout) string {
	if c == nil || len(c.Payments) == 0 {
		return NoPaymentMethod
	}
	method := strings.TrimSpace(c.Payments[0].Method)
	if method == "" {
		return NoPaymentMethod
	}
	return method
}
