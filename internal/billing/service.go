package billing

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-billing/internal/observability/metrics"
	"github.com/wolfman30/clinic-billing/internal/records"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

var billingTracer = otel.Tracer("clinic.internal.billing")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// RecordSource is the slice of records.Fetcher the billing read-models use.
type RecordSource interface {
	LedgerScope(ctx context.Context, clinicID, patientID string, w records.Window) (*records.LedgerRecords, error)
	PatientPage(ctx context.Context, clinicID string, q records.PatientQuery) (*records.PageRecords, error)
}

// Ledger is a patient's recomputed financial history for one window.
type Ledger struct {
	PatientID    string                `json:"patientId"`
	Transactions []LedgerTransaction   `json:"transactions"`
	Summary      PatientBillingSummary `json:"summary"`
}

// EmptyLedger is returned alongside errors so callers always get a typed
// payload.
func EmptyLedger(patientID string) *Ledger {
	return &Ledger{
		PatientID:    patientID,
		Transactions: []LedgerTransaction{},
		Summary:      EmptySummary(),
	}
}

// Service computes billing read-models on demand.
type Service struct {
	source      RecordSource
	metrics     *metrics.EngineMetrics
	logger      *logging.Logger
	maxPageSize int
}

// NewService wires a Service. maxPageSize <= 0 uses MaxPageSize.
func NewService(source RecordSource, m *metrics.EngineMetrics, logger *logging.Logger, maxPageSize int) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}
	return &Service{
		source:      source,
		metrics:     m,
		logger:      logger,
		maxPageSize: maxPageSize,
	}
}

// GetPatientLedger rebuilds one patient's ledger inside w.
func (s *Service) GetPatientLedger(ctx context.Context, clinicID, patientID string, w records.Window) (ledger *Ledger, err error) {
	ctx, span := billingTracer.Start(ctx, "billing.patient_ledger", trace.WithAttributes(
		attribute.String("clinic.id", clinicID),
		attribute.String("patient.id", patientID),
		attribute.Bool("window.bounded", w.Bounded()),
	))
	defer span.End()

	started := time.Now()
	defer func() {
		s.metrics.ObserveRequest("patient_ledger", metrics.OutcomeOf(err), time.Since(started))
	}()

	recs, err := s.source.LedgerScope(ctx, clinicID, patientID, w)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ledger = &Ledger{
		PatientID:    recs.Patient.ID,
		Transactions: AssembleLedger(recs.Appointments),
		Summary:      Summarize(recs.Appointments),
	}
	s.metrics.ObserveLedgerLines(len(ledger.Transactions))
	span.SetAttributes(attribute.Int("ledger.lines", len(ledger.Transactions)))

	s.logger.WithClinic(clinicID).Debug("patient ledger assembled",
		"patient_id", patientID,
		"lines", len(ledger.Transactions),
		"visits", ledger.Summary.TotalVisits,
	)
	return ledger, nil
}

// GetClinicBillingPage summarizes one filtered page of the clinic's
// patients. The money totals are page-scoped.
func (s *Service) GetClinicBillingPage(ctx context.Context, clinicID string, q records.PatientQuery) (page *ClinicBillingPage, err error) {
	q = s.normalize(q)
	ctx, span := billingTracer.Start(ctx, "billing.clinic_page", trace.WithAttributes(
		attribute.String("clinic.id", clinicID),
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
	))
	defer span.End()

	started := time.Now()
	defer func() {
		s.metrics.ObserveRequest("clinic_billing_page", metrics.OutcomeOf(err), time.Since(started))
	}()

	recs, err := s.source.PatientPage(ctx, clinicID, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := AggregatePage(recs, q)
	span.SetAttributes(
		attribute.Int("patients.total", out.Summary.TotalPatients),
		attribute.Bool("summary.page_scoped", out.Summary.PageScoped),
	)
	return &out, nil
}

func (s *Service) normalize(q records.PatientQuery) records.PatientQuery {
	q.Search = strings.TrimSpace(q.Search)
	q.Status = strings.ToLower(strings.TrimSpace(q.Status))
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > s.maxPageSize {
		q.Limit = s.maxPageSize
	}
	return q
}
