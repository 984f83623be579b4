package billing

import "github.com/shopspring/decimal"

// DistributePayments splits total evenly over n lines. Shares ignore each
// line's own charge. Each share is rounded to cents on its own, so the
// shares may differ from round2(total) by up to half a cent per line.
func DistributePayments(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	share := round2(total.Div(decimal.NewFromInt(int64(n))))
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = share
	}
	return shares
}
