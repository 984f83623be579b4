package billing

import (
	"github.com/shopspring/decimal"

	"github.com/wolfman30/clinic-billing/internal/records"
)

// PatientBilling is a patient row annotated with its billing summary.
type PatientBilling struct {
	records.Patient
	PatientBillingSummary
}

// PageBillingSummary aggregates one page of patients. TotalPatients and
// ActivePatients count the whole filtered set; every money field covers
// only the patients on the page. PageScoped is set whenever the page does
// not hold the whole filtered set.
type PageBillingSummary struct {
	TotalPatients       int     `json:"totalPatients"`
	ActivePatients      int     `json:"activePatients"`
	TotalOutstanding    float64 `json:"totalOutstanding"`
	TotalCharges        float64 `json:"totalCharges"`
	AverageBalance      float64 `json:"averageBalance"`
	PatientsWithBalance int     `json:"patientsWithBalance"`
	PageScoped          bool    `json:"pageScoped"`
}

// Pagination describes where a page sits in the filtered patient list.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ClinicBillingPage is the billing list view of one patient page.
type ClinicBillingPage struct {
	Patients   []PatientBilling   `json:"patients"`
	Summary    PageBillingSummary `json:"summary"`
	Pagination Pagination         `json:"pagination"`
}

// AggregatePage summarizes every patient on the page and rolls the
// summaries up.
func AggregatePage(recs *records.PageRecords, q records.PatientQuery) ClinicBillingPage {
	out := ClinicBillingPage{
		Patients:   []PatientBilling{},
		Pagination: paginate(q, 0),
	}
	if recs == nil || recs.Page == nil {
		return out
	}

	outstanding := decimal.Zero
	charges := decimal.Zero
	for _, p := range recs.Page.Patients {
		summary := Summarize(recs.Appointments[p.ID])
		out.Patients = append(out.Patients, PatientBilling{Patient: p, PatientBillingSummary: summary})

		outstanding = outstanding.Add(decimal.NewFromFloat(summary.OutstandingBalance))
		charges = charges.Add(decimal.NewFromFloat(summary.TotalCharges))
		if summary.OutstandingBalance > 0 {
			out.Summary.PatientsWithBalance++
		}
	}

	out.Summary.TotalPatients = recs.Page.Total
	out.Summary.ActivePatients = recs.Page.Active
	out.Summary.TotalOutstanding = toFloat(round2(outstanding))
	out.Summary.TotalCharges = toFloat(round2(charges))
	if n := len(out.Patients); n > 0 {
		out.Summary.AverageBalance = toFloat(round2(outstanding.Div(decimal.NewFromInt(int64(n)))))
	}
	out.Summary.PageScoped = len(out.Patients) < recs.Page.Total
	out.Pagination = paginate(q, recs.Page.Total)
	return out
}

func paginate(q records.PatientQuery, total int) Pagination {
	p := Pagination{Page: q.Page, Limit: q.Limit, Total: total}
	if q.Limit > 0 {
		p.Pages = (total + q.Limit - 1) / q.Limit
	}
	return p
}
