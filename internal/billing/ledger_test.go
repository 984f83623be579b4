package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-billing/internal/records"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 14, 0, 0, 0, time.UTC)
}

func amount(v float64) *float64 { return &v }

func TestTransactions_EvenSplitAcrossCodes(t *testing.T) {
	apt := records.Appointment{
		ID:              "apt-1",
		AppointmentDate: day(2024, 3, 4),
		Status:          records.StatusCheckedOut,
		Checkout: &records.Checkout{
			ServiceCodes: []records.ServiceCode{
				{Code: "A", Description: "Eval", Rate: 80, Units: 1},
				{Code: "B", Description: "Exercise", Rate: 40, Units: 1},
			},
			Payments: []records.Payment{{Amount: 60, Method: "card"}},
		},
	}

	txns := Transactions(apt)
	require.Len(t, txns, 2)

	assert.Equal(t, "A", txns[0].ServiceCode)
	assert.Equal(t, 80.0, txns[0].Charge)
	assert.Equal(t, 30.0, txns[0].Paid)
	assert.Equal(t, 50.0, txns[0].Balance)
	assert.Equal(t, "card", txns[0].PaymentMethod)

	assert.Equal(t, "B", txns[1].ServiceCode)
	assert.Equal(t, 40.0, txns[1].Charge)
	assert.Equal(t, 30.0, txns[1].Paid)
	assert.Equal(t, 10.0, txns[1].Balance)
	assert.Equal(t, "apt-1", txns[1].AppointmentID)
}

func TestTransactions_VisitLineWithoutCodes(t *testing.T) {
	t.Run("total amount unset", func(t *testing.T) {
		txns := Transactions(records.Appointment{
			ID:       "apt-1",
			Checkout: &records.Checkout{},
		})
		require.Len(t, txns, 1)
		assert.Equal(t, VisitServiceCode, txns[0].ServiceCode)
		assert.Equal(t, VisitDescription, txns[0].Description)
		assert.Equal(t, 0.0, txns[0].Charge)
		assert.Equal(t, 0.0, txns[0].Balance)
		assert.Equal(t, NoPaymentMethod, txns[0].PaymentMethod)
	})

	t.Run("single line takes every payment", func(t *testing.T) {
		txns := Transactions(records.Appointment{
			ID:          "apt-2",
			TotalAmount: amount(125.5),
			Checkout: &records.Checkout{Payments: []records.Payment{
				{Amount: 50, Method: "cash"},
				{Amount: 25.25, Method: "card"},
			}},
		})
		require.Len(t, txns, 1)
		assert.Equal(t, 125.5, txns[0].Charge)
		assert.Equal(t, 75.25, txns[0].Paid)
		assert.Equal(t, 50.25, txns[0].Balance)
		assert.Equal(t, "cash", txns[0].PaymentMethod)
	})
}

func TestTransactions_NoCheckoutNoLines(t *testing.T) {
	assert.Empty(t, Transactions(records.Appointment{ID: "apt-1", Status: records.StatusScheduled}))
}

func TestTransactions_UnitsDefaultToOne(t *testing.T) {
	txns := Transactions(records.Appointment{Checkout: &records.Checkout{
		ServiceCodes: []records.ServiceCode{
			{Code: "97110", Rate: 35.5},
			{Code: "97140", Rate: 20, Units: 3},
			{Code: "97530", Rate: 10, Units: -2},
		},
	}})
	require.Len(t, txns, 3)
	assert.Equal(t, 35.5, txns[0].Charge)
	assert.Equal(t, 60.0, txns[1].Charge)
	assert.Equal(t, 10.0, txns[2].Charge)
}

func TestTransactions_OverpaymentFloorsAtZero(t *testing.T) {
	txns := Transactions(records.Appointment{Checkout: &records.Checkout{
		ServiceCodes: []records.ServiceCode{{Code: "A", Rate: 10}, {Code: "B", Rate: 90}},
		Payments:     []records.Payment{{Amount: 100, Method: "card"}},
	}})
	require.Len(t, txns, 2)
	assert.Equal(t, 50.0, txns[0].Paid)
	assert.Equal(t, 0.0, txns[0].Balance)
	assert.Equal(t, 40.0, txns[1].Balance)
	for _, txn := range txns {
		assert.GreaterOrEqual(t, txn.Balance, 0.0)
	}
}

func TestDistributePayments_SumWithinTolerance(t *testing.T) {
	cent := decimal.NewFromFloat(0.01)
	totals := []float64{0, 0.01, 10, 100, 99.99, 33.34, 1000.01, 7.77}
	for _, raw := range totals {
		for n := 1; n <= 7; n++ {
			total := decimal.NewFromFloat(raw)
			shares := DistributePayments(total, n)
			require.Len(t, shares, n)

			sum := decimal.Zero
			for _, s := range shares {
				sum = sum.Add(s)
				assert.True(t, s.Equal(s.Round(2)), "share %s not in cents", s)
			}
			diff := sum.Sub(round2(total)).Abs()
			assert.True(t, diff.LessThanOrEqual(cent.Mul(decimal.NewFromInt(int64(n)))),
				"total %v over %d lines: shares sum to %s", raw, n, sum)
		}
	}
	assert.Nil(t, DistributePayments(decimal.NewFromInt(10), 0))
}

func TestBalance(t *testing.T) {
	tests := []struct {
		charge, paid, want string
	}{
		{"80", "30", "50"},
		{"10", "30", "0"},
		{"10.005", "0", "10.01"},
		{"0", "0", "0"},
		{"33.333", "33.33", "0"},
	}
	for _, tt := range tests {
		got := Balance(decimal.RequireFromString(tt.charge), decimal.RequireFromString(tt.paid))
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "balance(%s, %s) = %s", tt.charge, tt.paid, got)
	}
}

func TestPaymentMethod(t *testing.T) {
	assert.Equal(t, NoPaymentMethod, PaymentMethod(nil))
	assert.Equal(t, NoPaymentMethod, PaymentMethod(&records.Checkout{}))
	assert.Equal(t, NoPaymentMethod, PaymentMethod(&records.Checkout{Payments: []records.Payment{{Amount: 5}}}))
	assert.Equal(t, "insurance", PaymentMethod(&records.Checkout{Payments: []records.Payment{
		{Amount: 5, Method: "insurance"},
		{Amount: 5, Method: "card"},
	}}))
}

func TestAssembleLedger_NonIncreasingDates(t *testing.T) {
	codes := func(c ...string) *records.Checkout {
		out := &records.Checkout{}
		for _, code := range c {
			out.ServiceCodes = append(out.ServiceCodes, records.ServiceCode{Code: code, Rate: 10})
		}
		return out
	}
	appointments := []records.Appointment{
		{ID: "old", AppointmentDate: day(2024, 1, 5), Checkout: codes("X")},
		{ID: "same-1", AppointmentDate: day(2024, 2, 1), Checkout: codes("A", "B")},
		{ID: "none", AppointmentDate: day(2024, 3, 1)},
		{ID: "new", AppointmentDate: day(2024, 2, 20), Checkout: codes("N")},
		{ID: "same-2", AppointmentDate: day(2024, 2, 1), Checkout: codes("C")},
	}

	txns := AssembleLedger(appointments)
	require.Len(t, txns, 5)
	for i := 1; i < len(txns); i++ {
		assert.False(t, txns[i].Date.After(txns[i-1].Date), "line %d is newer than line %d", i, i-1)
	}

	var order []string
	for _, txn := range txns {
		order = append(order, txn.AppointmentID+":"+txn.ServiceCode)
	}
	assert.Equal(t, []string{"new:N", "same-1:A", "same-1:B", "same-2:C", "old:X"}, order)
}

func TestAssembleLedger_EmptyIsNotNil(t *testing.T) {
	txns := AssembleLedger(nil)
	assert.NotNil(t, txns)
	assert.Empty(t, txns)
}

func TestSummarize_CheckedOutOnly(t *testing.T) {
	checkout := func(rate float64) *records.Checkout {
		return &records.Checkout{
			ServiceCodes: []records.ServiceCode{{Code: "A", Rate: rate}},
			Payments:     []records.Payment{{Amount: rate, Method: "card"}},
		}
	}
	appointments := []records.Appointment{
		{Status: records.StatusCheckedOut, AppointmentDate: day(2024, 1, 10), Checkout: checkout(100)},
		{Status: records.StatusCheckedOut, AppointmentDate: day(2024, 2, 10), Checkout: checkout(50)},
		{Status: records.StatusCheckedOut, AppointmentDate: day(2024, 1, 20), Checkout: checkout(0.01)},
		{Status: records.StatusCompleted, AppointmentDate: day(2024, 3, 1), Checkout: checkout(999)},
		{Status: records.StatusScheduled, AppointmentDate: day(2024, 4, 1)},
	}

	s := Summarize(appointments)
	assert.Equal(t, 3, s.TotalVisits)
	assert.Equal(t, 150.01, s.TotalCharges)
	assert.Equal(t, s.TotalCharges, s.OutstandingBalance, "payments are not netted at summary level")
	assert.Equal(t, 50.0, s.AverageVisitCharge)
	require.NotNil(t, s.LastVisit)
	assert.Equal(t, day(2024, 2, 10), *s.LastVisit)
	assert.Equal(t, AccountOutstanding, s.AccountStatus)
}

func TestSummarize_NoCheckedOutVisits(t *testing.T) {
	s := Summarize([]records.Appointment{
		{Status: records.StatusCompleted, Checkout: &records.Checkout{ServiceCodes: []records.ServiceCode{{Code: "A", Rate: 10}}}},
		{Status: records.StatusNoShow},
	})
	assert.Equal(t, 0, s.TotalVisits)
	assert.Equal(t, 0.0, s.TotalCharges)
	assert.Equal(t, 0.0, s.AverageVisitCharge)
	assert.Nil(t, s.LastVisit)
	assert.Equal(t, AccountCurrent, s.AccountStatus)
}

func TestSummarize_CheckedOutWithoutCheckout(t *testing.T) {
	s := Summarize([]records.Appointment{{Status: records.StatusCheckedOut, AppointmentDate: day(2024, 5, 1)}})
	assert.Equal(t, 1, s.TotalVisits)
	assert.Equal(t, 0.0, s.TotalCharges)
	assert.Equal(t, AccountCurrent, s.AccountStatus)
}
