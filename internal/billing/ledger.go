package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/clinic-billing/internal/records"
)

// Account statuses on a patient summary.
const (
	AccountOutstanding = "Outstanding"
	AccountCurrent     = "Current"
)

// LedgerTransaction is one synthesized charge/payment/balance line.
type LedgerTransaction struct {
	Date          time.Time `json:"date"`
	AppointmentID string    `json:"appointmentId"`
	ServiceCode   string    `json:"serviceCode"`
	Description   string    `json:"description"`
	Charge        float64   `json:"charge"`
	Paid          float64   `json:"paid"`
	PaymentMethod string    `json:"paymentMethod"`
	Balance       float64   `json:"balance"`
}

// PatientBillingSummary aggregates a patient's checked-out visits.
//
// OutstandingBalance equals TotalCharges: payments are only netted per
// transaction, never at this level.
type PatientBillingSummary struct {
	TotalCharges       float64    `json:"totalCharges"`
	OutstandingBalance float64    `json:"outstandingBalance"`
	TotalVisits        int        `json:"totalVisits"`
	LastVisit          *time.Time `json:"lastVisit"`
	AverageVisitCharge float64    `json:"averageVisitCharge"`
	AccountStatus      string     `json:"accountStatus"`
}

// EmptySummary is the zeroed summary of a patient with no billed visits.
func EmptySummary() PatientBillingSummary {
	return PatientBillingSummary{AccountStatus: AccountCurrent}
}

// Transactions turns one appointment into ledger lines. Payments on the
// checkout are split evenly across the lines.
func Transactions(apt records.Appointment) []LedgerTransaction {
	lines := SynthesizeLines(apt)
	if len(lines) == 0 {
		return nil
	}

	shares := DistributePayments(apt.Checkout.PaymentTotal(), len(lines))
	method := PaymentMethod(apt.Checkout)

	out := make([]LedgerTransaction, 0, len(lines))
	for i, line := range lines {
		charge := round2(line.Charge)
		paid := shares[i]
		out = append(out, LedgerTransaction{
			Date:          line.Date,
			AppointmentID: line.AppointmentID,
			ServiceCode:   line.ServiceCode,
			Description:   line.Description,
			Charge:        toFloat(charge),
			Paid:          toFloat(paid),
			PaymentMethod: method,
			Balance:       toFloat(Balance(charge, paid)),
		})
	}
	return out
}

// AssembleLedger builds the transactions of all appointments, newest
// first. Lines on the same date keep appointment then code order.
func AssembleLedger(appointments []records.Appointment) []LedgerTransaction {
	txns := make([]LedgerTransaction, 0, len(appointments))
	for _, apt := range appointments {
		txns = append(txns, Transactions(apt)...)
	}
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.After(txns[j].Date)
	})
	return txns
}

// Summarize computes the billing summary from checked-out appointments
// only. Every other status is ignored.
func Summarize(appointments []records.Appointment) PatientBillingSummary {
	summary := EmptySummary()
	total := decimal.Zero
	for _, apt := range appointments {
		if apt.Status != records.StatusCheckedOut {
			continue
		}
		summary.TotalVisits++
		total = total.Add(apt.Checkout.CodeTotal())
		if summary.LastVisit == nil || apt.AppointmentDate.After(*summary.LastVisit) {
			last := apt.AppointmentDate
			summary.LastVisit = &last
		}
	}

	total = round2(total)
	summary.TotalCharges = toFloat(total)
	summary.OutstandingBalance = summary.TotalCharges
	if summary.TotalVisits > 0 {
		summary.AverageVisitCharge = toFloat(round2(total.Div(decimal.NewFromInt(int64(summary.TotalVisits)))))
	}
	if total.IsPositive() {
		summary.AccountStatus = AccountOutstanding
	}
	return summary
}
