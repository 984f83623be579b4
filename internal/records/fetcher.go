package records

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-billing/internal/tenancy"
	"github.com/wolfman30/clinic-billing/pkg/apperrors"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

var fetchTracer = otel.Tracer("clinic.internal.records")

// Fetcher gathers the rows one read-model request needs. It holds no state
// between calls; consecutive reads are not snapshot-consistent.
type Fetcher struct {
	patients     PatientStore
	appointments AppointmentStore
	users        UserDirectory
	logger       *logging.Logger
}

// NewFetcher wires the stores. users may be nil, in which case the role
// claim is trusted and provider names stay unresolved.
func NewFetcher(patients PatientStore, appointments AppointmentStore, users UserDirectory, logger *logging.Logger) *Fetcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Fetcher{
		patients:     patients,
		appointments: appointments,
		users:        users,
		logger:       logger,
	}
}

// LedgerRecords is everything needed to build one patient's ledger.
type LedgerRecords struct {
	Patient      Patient
	Appointments []Appointment
}

// LedgerScope loads the patient and their appointments inside w.
func (f *Fetcher) LedgerScope(ctx context.Context, clinicID, patientID string, w Window) (*LedgerRecords, error) {
	ctx, span := fetchTracer.Start(ctx, "records.ledger_scope", trace.WithAttributes(
		attribute.String("clinic.id", clinicID),
		attribute.String("patient.id", patientID),
	))
	defer span.End()

	if err := requireClinic(clinicID); err != nil {
		return nil, err
	}
	if err := requireID("patient id", patientID); err != nil {
		return nil, err
	}

	patient, err := f.patients.FindPatient(ctx, clinicID, patientID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	appointments, err := f.appointments.FindAppointments(ctx, clinicID, AppointmentFilter{
		PatientIDs: []string{patientID},
		Window:     w,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("appointments.count", len(appointments)))

	return &LedgerRecords{Patient: *patient, Appointments: appointments}, nil
}

// PageRecords is one patient page with every appointment of its patients,
// grouped by patient id in store order.
type PageRecords struct {
	Page         *PatientPage
	Appointments map[string][]Appointment
}

// PatientPage loads one filtered page of patients and their appointments.
func (f *Fetcher) PatientPage(ctx context.Context, clinicID string, q PatientQuery) (*PageRecords, error) {
	ctx, span := fetchTracer.Start(ctx, "records.patient_page", trace.WithAttributes(
		attribute.String("clinic.id", clinicID),
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
	))
	defer span.End()

	if err := requireClinic(clinicID); err != nil {
		return nil, err
	}

	page, err := f.patients.ListPatients(ctx, clinicID, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	grouped := make(map[string][]Appointment, len(page.Patients))
	if len(page.Patients) == 0 {
		return &PageRecords{Page: page, Appointments: grouped}, nil
	}

	ids := make([]string, 0, len(page.Patients))
	for _, p := range page.Patients {
		ids = append(ids, p.ID)
	}
	appointments, err := f.appointments.FindAppointments(ctx, clinicID, AppointmentFilter{PatientIDs: ids})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, apt := range appointments {
		grouped[apt.PatientID] = append(grouped[apt.PatientID], apt)
	}
	return &PageRecords{Page: page, Appointments: grouped}, nil
}

// ReportRecords is the appointment set one report summarizes. A nil
// ProviderNames means names were not resolved.
type ReportRecords struct {
	Window        Window
	ProviderID    string
	Narrowed      bool
	Appointments  []Appointment
	ProviderNames map[string]string
}

// ReportScope loads the clinic's appointments in w. A caller whose resolved
// role is clinical only ever sees their own appointments, whatever
// providerFilter asks for.
func (f *Fetcher) ReportScope(ctx context.Context, caller tenancy.Caller, w Window, providerFilter string) (*ReportRecords, error) {
	ctx, span := fetchTracer.Start(ctx, "records.report_scope", trace.WithAttributes(
		attribute.String("clinic.id", caller.ClinicID),
		attribute.String("caller.role", caller.Role),
	))
	defer span.End()

	if err := requireClinic(caller.ClinicID); err != nil {
		return nil, err
	}
	providerFilter = strings.TrimSpace(providerFilter)

	role, err := f.resolveRole(ctx, caller)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := &ReportRecords{Window: w, ProviderID: providerFilter}
	if IsClinicalRole(role) {
		if providerFilter != "" && providerFilter != caller.UserID {
			f.logger.Warn("provider filter overridden by role scope",
				"clinic_id", caller.ClinicID,
				"user_id", caller.UserID,
				"requested_provider", providerFilter,
			)
		}
		out.ProviderID = caller.UserID
		out.Narrowed = true
	}
	span.SetAttributes(attribute.Bool("scope.narrowed", out.Narrowed))

	out.Appointments, err = f.appointments.FindAppointments(ctx, caller.ClinicID, AppointmentFilter{
		ProviderID: out.ProviderID,
		Window:     w,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out.ProviderNames, err = f.providerNames(ctx, caller.ClinicID, out.Appointments)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (f *Fetcher) resolveRole(ctx context.Context, caller tenancy.Caller) (string, error) {
	if f.users == nil || caller.UserID == "" {
		return caller.Role, nil
	}
	role, found, err := f.users.ResolveRole(ctx, caller.ClinicID, caller.UserID)
	if err != nil {
		return "", err
	}
	if !found {
		return caller.Role, nil
	}
	return role, nil
}

// providerNames returns nil when there is no directory to resolve against.
func (f *Fetcher) providerNames(ctx context.Context, clinicID string, appointments []Appointment) (map[string]string, error) {
	if f.users == nil {
		return nil, nil
	}
	set := make(map[string]struct{})
	for _, apt := range appointments {
		if apt.ProviderID != "" {
			set[apt.ProviderID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return f.users.ProviderNames(ctx, clinicID, ids)
}

func requireClinic(clinicID string) error {
	if strings.TrimSpace(clinicID) == "" {
		return apperrors.NewValidationError("clinic id required")
	}
	return nil
}

// requireID only checks presence. Ids are opaque text; an unknown one is
// reported as not found by the store.
func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewValidationError(name + " required")
	}
	return nil
}
