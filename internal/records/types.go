// Package records retrieves the appointment, checkout, patient and user
// rows the billing and reporting read-models are computed from. It never
// writes and performs no computation beyond grouping.
package records

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is an appointment lifecycle state as stored.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusCheckedIn   Status = "checked-in"
	StatusInTreatment Status = "in-treatment"
	StatusCheckedOut  Status = "checked-out"
	StatusInProgress  Status = "in-progress"
	StatusCompleted   Status = "completed"
	StatusNoShow      Status = "no-show"
	StatusCancelled   Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusScheduled,
	StatusCheckedIn,
	StatusInTreatment,
	StatusCheckedOut,
	StatusInProgress,
	StatusCompleted,
	StatusNoShow,
	StatusCancelled,
}

var statusLabels = map[Status]string{
	StatusScheduled:   "Scheduled",
	StatusCheckedIn:   "Checked-In",
	StatusInTreatment: "In Treatment",
	StatusCheckedOut:  "Checked-Out",
	StatusInProgress:  "In Progress",
	StatusCompleted:   "Completed",
	StatusNoShow:      "No-Show",
	StatusCancelled:   "Cancelled",
}

// Label returns the display name, or the raw value for unknown statuses.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Known reports whether s is one of the eight lifecycle states.
func (s Status) Known() bool {
	_, ok := statusLabels[s]
	return ok
}

// Visit types tracked by the report breakdown.
const (
	VisitRegular      = "Regular"
	VisitNewPatient   = "New Patient"
	VisitReEvaluation = "Re-evaluation"
	VisitFollowUp     = "Follow-up"
)

// User roles. Only clinical roles narrow report scope.
const (
	RoleAdmin     = "admin"
	RoleFrontDesk = "front-desk"
	RoleProvider  = "provider"
	RoleTherapist = "therapist"
)

// IsClinicalRole reports whether role belongs to a treating provider.
func IsClinicalRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleProvider, RoleTherapist:
		return true
	}
	return false
}

// PatientStatusActive marks a patient counted in activePatients.
const PatientStatusActive = "active"

// Patient is the demographic record owned by the patient CRUD layer.
type Patient struct {
	ID          string     `json:"id"`
	ClinicID    string     `json:"clinicId"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Status      string     `json:"status"`
}

// ServiceCode is one billed code on a checkout.
type ServiceCode struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Rate        float64 `json:"rate"`
	Units       float64 `json:"units,omitempty"`
}

// EffectiveUnits treats a missing or non-positive unit count as one.
func (c ServiceCode) EffectiveUnits() float64 {
	if c.Units <= 0 {
		return 1
	}
	return c.Units
}

// Total is rate times units, unrounded.
func (c ServiceCode) Total() decimal.Decimal {
	return decimal.NewFromFloat(c.Rate).Mul(decimal.NewFromFloat(c.EffectiveUnits()))
}

// Payment is one recorded payment on a checkout.
type Payment struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

// Checkout is the billing record written when a visit concludes.
type Checkout struct {
	ID            string        `json:"id"`
	AppointmentID string        `json:"appointmentId"`
	ServiceCodes  []ServiceCode `json:"serviceCodes"`
	Payments      []Payment     `json:"payments"`
}

// CodeTotal sums rate times units over the service codes.
func (c *Checkout) CodeTotal() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, code := range c.ServiceCodes {
		total = total.Add(code.Total())
	}
	return total
}

// PaymentTotal sums the recorded payments.
func (c *Checkout) PaymentTotal() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, p := range c.Payments {
		total = total.Add(decimal.NewFromFloat(p.Amount))
	}
	return total
}

// Appointment is a scheduled visit with its checkout, if any.
type Appointment struct {
	ID              string    `json:"id"`
	ClinicID        string    `json:"clinicId"`
	PatientID       string    `json:"patientId"`
	ProviderID      string    `json:"providerId,omitempty"`
	AppointmentDate time.Time `json:"appointmentDate"`
	AppointmentTime string    `json:"appointmentTime,omitempty"`
	Status          Status    `json:"status"`
	VisitType       string    `json:"visitType,omitempty"`
	ProcedureCodes  []string  `json:"procedureCodes,omitempty"`
	DiagnosticCodes []string  `json:"diagnosticCodes,omitempty"`
	IsSignedOff     bool      `json:"isSignedOff"`
	TotalAmount     *float64  `json:"totalAmount,omitempty"`
	Checkout        *Checkout `json:"checkout,omitempty"`
}

// AppointmentFilter narrows FindAppointments. Empty fields do not filter.
type AppointmentFilter struct {
	PatientIDs []string
	ProviderID string
	Window     Window
}

// PatientQuery selects one page of patients.
type PatientQuery struct {
	Search string
	Status string
	Page   int
	Limit  int
}

// Offset returns the row offset for the query's page.
func (q PatientQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// PatientPage is one page of patients plus the counts of the filtered,
// unpaged set.
type PatientPage struct {
	Patients []Patient
	Total    int
	Active   int
}
