// Package reporting aggregates appointment activity for a clinic over a
// date window: status and visit-type counts, sign-off compliance, and
// per-provider and per-day breakdowns.
package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/clinic-billing/internal/records"
)

// Fallback provider identity for appointments with no resolvable provider.
const (
	UnassignedProviderID   = "unassigned"
	UnassignedProviderName = "Unassigned"
)

// TrackedVisitTypes are the visit types the breakdown reports. Others are
// left out.
var TrackedVisitTypes = []string{
	records.VisitRegular,
	records.VisitNewPatient,
	records.VisitReEvaluation,
	records.VisitFollowUp,
}

// Period is the window a report covers.
type Period struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// ProviderStat is one provider's share of the window.
type ProviderStat struct {
	ProviderID     string  `json:"providerId"`
	ProviderName   string  `json:"providerName"`
	Appointments   int     `json:"appointments"`
	Completed      int     `json:"completed"`
	Charges        float64 `json:"charges"`
	SignedOff      int     `json:"signedOff"`
	ComplianceRate int     `json:"complianceRate"`
}

// DailyStat counts one UTC day.
type DailyStat struct {
	Date         string  `json:"date"`
	Appointments int     `json:"appointments"`
	Completed    int     `json:"completed"`
	Charges      float64 `json:"charges"`
}

// ReportSummary is the appointment activity of one clinic window.
type ReportSummary struct {
	Period            Period         `json:"period"`
	ProviderID        string         `json:"providerId,omitempty"`
	TotalAppointments int            `json:"totalAppointments"`
	StatusCounts      map[string]int `json:"statusCounts"`
	VisitTypes        map[string]int `json:"visitTypes"`
	TotalCharges      float64        `json:"totalCharges"`
	ComplianceRate    int            `json:"complianceRate"`
	SignedOff         int            `json:"signedOff"`
	UniquePatients    int            `json:"uniquePatients"`
	ProviderStats     []ProviderStat `json:"providerStats"`
	DailyBreakdown    []DailyStat    `json:"dailyBreakdown"`
}

// EmptySummary has every bucket present and zeroed.
func EmptySummary(w records.Window) ReportSummary {
	s := ReportSummary{
		Period:         Period{Start: w.Start, End: w.End},
		StatusCounts:   make(map[string]int, len(records.Statuses)),
		VisitTypes:     make(map[string]int, len(TrackedVisitTypes)),
		ProviderStats:  []ProviderStat{},
		DailyBreakdown: []DailyStat{},
	}
	for _, status := range records.Statuses {
		s.StatusCounts[string(status)] = 0
	}
	for _, vt := range TrackedVisitTypes {
		s.VisitTypes[vt] = 0
	}
	return s
}

// tally accumulates the counters shared by the whole report, a provider
// and a day.
type tally struct {
	appointments int
	completed    int
	signedOff    int
	charges      decimal.Decimal
}

func (t *tally) add(apt records.Appointment) {
	t.appointments++
	if apt.Status == records.StatusCompleted {
		t.completed++
	}
	if apt.IsSignedOff {
		t.signedOff++
	}
	t.charges = t.charges.Add(apt.Checkout.CodeTotal())
}

func (t *tally) chargesFloat() float64 {
	return t.charges.Round(2).InexactFloat64()
}

// ComplianceRate is the signed-off share as a whole percentage, rounded
// half up. Zero appointments give zero.
func ComplianceRate(signedOff, total int) int {
	if total <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(signedOff)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).
		IntPart())
}

// Summarize aggregates recs. Appointments are counted by status whether or
// not they were checked out.
func Summarize(recs *records.ReportRecords) ReportSummary {
	if recs == nil {
		return EmptySummary(records.Window{})
	}
	s := EmptySummary(recs.Window)
	s.ProviderID = recs.ProviderID

	total := tally{charges: decimal.Zero}
	providers := make(map[string]*tally)
	days := make(map[string]*tally)
	patients := make(map[string]struct{})

	for _, apt := range recs.Appointments {
		total.add(apt)
		s.StatusCounts[string(apt.Status)]++
		if _, tracked := s.VisitTypes[apt.VisitType]; tracked {
			s.VisitTypes[apt.VisitType]++
		}
		if apt.PatientID != "" {
			patients[apt.PatientID] = struct{}{}
		}

		providerID := providerKey(apt, recs.ProviderNames)
		if providers[providerID] == nil {
			providers[providerID] = &tally{charges: decimal.Zero}
		}
		providers[providerID].add(apt)

		date := apt.AppointmentDate.UTC().Format("2006-01-02")
		if days[date] == nil {
			days[date] = &tally{charges: decimal.Zero}
		}
		days[date].add(apt)
	}

	s.TotalAppointments = total.appointments
	s.TotalCharges = total.chargesFloat()
	s.SignedOff = total.signedOff
	s.ComplianceRate = ComplianceRate(total.signedOff, total.appointments)
	s.UniquePatients = len(patients)
	s.ProviderStats = providerStats(providers, recs.ProviderNames)
	s.DailyBreakdown = dailyBreakdown(days)
	return s
}

// providerKey returns the appointment's provider id, or the unassigned
// bucket when it has none. With a directory available an id it cannot
// resolve also counts as unassigned.
func providerKey(apt records.Appointment, names map[string]string) string {
	if apt.ProviderID == "" {
		return UnassignedProviderID
	}
	if names != nil {
		if _, ok := names[apt.ProviderID]; !ok {
			return UnassignedProviderID
		}
	}
	return apt.ProviderID
}

func providerStats(providers map[string]*tally, names map[string]string) []ProviderStat {
	out := make([]ProviderStat, 0, len(providers))
	for id, t := range providers {
		name := names[id]
		if id == UnassignedProviderID {
			name = UnassignedProviderName
		} else if name == "" {
			name = id
		}
		out = append(out, ProviderStat{
			ProviderID:     id,
			ProviderName:   name,
			Appointments:   t.appointments,
			Completed:      t.completed,
			Charges:        t.chargesFloat(),
			SignedOff:      t.signedOff,
			ComplianceRate: ComplianceRate(t.signedOff, t.appointments),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Appointments != out[j].Appointments {
			return out[i].Appointments > out[j].Appointments
		}
		return out[i].ProviderID < out[j].ProviderID
	})
	return out
}

func dailyBreakdown(days map[string]*tally) []DailyStat {
	out := make([]DailyStat, 0, len(days))
	for date, t := range days {
		out = append(out, DailyStat{
			Date:         date,
			Appointments: t.appointments,
			Completed:    t.completed,
			Charges:      t.chargesFloat(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
