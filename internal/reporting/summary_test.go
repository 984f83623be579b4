package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-billing/internal/records"
)

func at(d int, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func withCodes(rates ...float64) *records.Checkout {
	c := &records.Checkout{}
	for _, r := range rates {
		c.ServiceCodes = append(c.ServiceCodes, records.ServiceCode{Code: "X", Rate: r})
	}
	return c
}

func TestSummarize_ComplianceRate(t *testing.T) {
	recs := &records.ReportRecords{Appointments: []records.Appointment{
		{ID: "1", PatientID: "p1", IsSignedOff: true, AppointmentDate: at(1, 9)},
		{ID: "2", PatientID: "p1", IsSignedOff: true, AppointmentDate: at(1, 10)},
		{ID: "3", PatientID: "p2", IsSignedOff: true, AppointmentDate: at(2, 9)},
		{ID: "4", PatientID: "p3", AppointmentDate: at(2, 9)},
		{ID: "5", PatientID: "p3", AppointmentDate: at(3, 9)},
	}}

	s := Summarize(recs)
	assert.Equal(t, 5, s.TotalAppointments)
	assert.Equal(t, 3, s.SignedOff)
	assert.Equal(t, 60, s.ComplianceRate)
	assert.Equal(t, 3, s.UniquePatients)
}

func TestComplianceRate(t *testing.T) {
	assert.Equal(t, 0, ComplianceRate(0, 0))
	assert.Equal(t, 0, ComplianceRate(5, 0))
	assert.Equal(t, 100, ComplianceRate(4, 4))
	assert.Equal(t, 33, ComplianceRate(1, 3))
	assert.Equal(t, 67, ComplianceRate(2, 3))
	assert.Equal(t, 50, ComplianceRate(1, 2))
	assert.Equal(t, 13, ComplianceRate(1, 8))
}

func TestSummarize_StatusAndVisitTypeBuckets(t *testing.T) {
	recs := &records.ReportRecords{Appointments: []records.Appointment{
		{Status: records.StatusScheduled, VisitType: records.VisitRegular},
		{Status: records.StatusCompleted, VisitType: records.VisitRegular},
		{Status: records.StatusCompleted, VisitType: records.VisitNewPatient},
		{Status: records.StatusNoShow, VisitType: "Telehealth"},
		{Status: records.StatusCheckedOut, VisitType: records.VisitFollowUp},
	}}

	s := Summarize(recs)
	require.Len(t, s.StatusCounts, 8)
	assert.Equal(t, 1, s.StatusCounts["scheduled"])
	assert.Equal(t, 2, s.StatusCounts["completed"])
	assert.Equal(t, 1, s.StatusCounts["no-show"])
	assert.Equal(t, 1, s.StatusCounts["checked-out"])
	assert.Equal(t, 0, s.StatusCounts["cancelled"])

	assert.Equal(t, map[string]int{
		records.VisitRegular:      2,
		records.VisitNewPatient:   1,
		records.VisitReEvaluation: 0,
		records.VisitFollowUp:     1,
	}, s.VisitTypes)
}

func TestSummarize_ProviderStats(t *testing.T) {
	recs := &records.ReportRecords{
		ProviderNames: map[string]string{"prov-a": "Dr. Avery", "prov-b": "Dr. Blake"},
		Appointments: []records.Appointment{
			{ProviderID: "prov-b", Status: records.StatusCompleted, IsSignedOff: true, Checkout: withCodes(100)},
			{ProviderID: "prov-b", Status: records.StatusScheduled},
			{ProviderID: "prov-a", Status: records.StatusCompleted, IsSignedOff: true, Checkout: withCodes(40, 10)},
			{ProviderID: "prov-a", Status: records.StatusCheckedOut},
			{ProviderID: "gone", Status: records.StatusCompleted},
			{Status: records.StatusCancelled},
		},
	}

	s := Summarize(recs)
	require.Len(t, s.ProviderStats, 3)

	assert.Equal(t, ProviderStat{
		ProviderID: "prov-a", ProviderName: "Dr. Avery",
		Appointments: 2, Completed: 1, Charges: 50, SignedOff: 1, ComplianceRate: 50,
	}, s.ProviderStats[0])
	assert.Equal(t, ProviderStat{
		ProviderID: "prov-b", ProviderName: "Dr. Blake",
		Appointments: 2, Completed: 1, Charges: 100, SignedOff: 1, ComplianceRate: 50,
	}, s.ProviderStats[1])
	assert.Equal(t, ProviderStat{
		ProviderID: UnassignedProviderID, ProviderName: UnassignedProviderName,
		Appointments: 2, Completed: 1,
	}, s.ProviderStats[2])

	assert.Equal(t, 150.0, s.TotalCharges)
}

func TestSummarize_ProviderStatsWithoutDirectory(t *testing.T) {
	recs := &records.ReportRecords{Appointments: []records.Appointment{
		{ProviderID: "prov-a"},
		{ProviderID: "prov-a"},
		{},
	}}

	s := Summarize(recs)
	require.Len(t, s.ProviderStats, 2)
	assert.Equal(t, "prov-a", s.ProviderStats[0].ProviderID)
	assert.Equal(t, "prov-a", s.ProviderStats[0].ProviderName)
	assert.Equal(t, UnassignedProviderID, s.ProviderStats[1].ProviderID)
}

func TestSummarize_DailyBreakdown(t *testing.T) {
	late := time.Date(2024, 3, 4, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	recs := &records.ReportRecords{Appointments: []records.Appointment{
		{AppointmentDate: at(7, 9), Status: records.StatusCompleted, Checkout: withCodes(20)},
		{AppointmentDate: at(2, 9)},
		{AppointmentDate: late, Status: records.StatusCompleted},
		{AppointmentDate: at(7, 15), Checkout: withCodes(5.5)},
		{AppointmentDate: at(5, 8)},
	}}

	s := Summarize(recs)
	require.Len(t, s.DailyBreakdown, 3)
	assert.Equal(t, DailyStat{Date: "2024-03-02", Appointments: 1}, s.DailyBreakdown[0])
	assert.Equal(t, DailyStat{Date: "2024-03-05", Appointments: 2, Completed: 1}, s.DailyBreakdown[1])
	assert.Equal(t, DailyStat{Date: "2024-03-07", Appointments: 2, Completed: 1, Charges: 25.5}, s.DailyBreakdown[2])

	sum := 0
	for i, d := range s.DailyBreakdown {
		sum += d.Appointments
		if i > 0 {
			assert.LessOrEqual(t, s.DailyBreakdown[i-1].Date, d.Date)
		}
	}
	assert.Equal(t, s.TotalAppointments, sum)
}

func TestSummarize_Empty(t *testing.T) {
	start := at(1, 0)
	end := at(31, 0)
	s := Summarize(&records.ReportRecords{Window: records.Window{Start: &start, End: &end}})

	assert.Equal(t, 0, s.TotalAppointments)
	assert.Equal(t, 0, s.ComplianceRate)
	assert.Len(t, s.StatusCounts, 8)
	assert.Len(t, s.VisitTypes, 4)
	assert.NotNil(t, s.ProviderStats)
	assert.NotNil(t, s.DailyBreakdown)
	assert.Equal(t, &start, s.Period.Start)

	assert.Equal(t, 0, Summarize(nil).TotalAppointments)
}
