package reporting

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-billing/internal/observability/metrics"
	"github.com/wolfman30/clinic-billing/internal/records"
	"github.com/wolfman30/clinic-billing/internal/tenancy"
	"github.com/wolfman30/clinic-billing/pkg/apperrors"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

var reportTracer = otel.Tracer("clinic.internal.reporting")

// RecordSource is the slice of records.Fetcher the report uses.
type RecordSource interface {
	ReportScope(ctx context.Context, caller tenancy.Caller, w records.Window, providerFilter string) (*records.ReportRecords, error)
}

// Service computes report summaries on demand.
type Service struct {
	source  RecordSource
	metrics *metrics.EngineMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(source RecordSource, m *metrics.EngineMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		source:  source,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// GetReportSummary aggregates the caller's clinic over w. An unbounded
// window on both ends means the current UTC calendar month.
func (s *Service) GetReportSummary(ctx context.Context, caller tenancy.Caller, w records.Window, providerFilter string) (summary *ReportSummary, err error) {
	ctx, span := reportTracer.Start(ctx, "reporting.summary", trace.WithAttributes(
		attribute.String("clinic.id", caller.ClinicID),
	))
	defer span.End()

	started := time.Now()
	defer func() {
		s.metrics.ObserveRequest("report_summary", metrics.OutcomeOf(err), time.Since(started))
	}()

	if !caller.Valid() {
		return nil, apperrors.NewValidationError("caller clinic and user required")
	}
	if w.Start == nil && w.End == nil {
		w = records.MonthWindow(s.now())
	}

	recs, err := s.source.ReportScope(ctx, caller, w, providerFilter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := Summarize(recs)
	span.SetAttributes(
		attribute.Int("appointments.total", out.TotalAppointments),
		attribute.Bool("scope.narrowed", recs.Narrowed),
	)
	s.logger.WithClinic(caller.ClinicID).Debug("report summary computed",
		"provider_id", recs.ProviderID,
		"appointments", out.TotalAppointments,
		"compliance_rate", out.ComplianceRate,
	)
	return &out, nil
}
