package reporting

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-billing/internal/records"
	"github.com/wolfman30/clinic-billing/internal/tenancy"
	"github.com/wolfman30/clinic-billing/pkg/apperrors"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

type reportService interface {
	GetReportSummary(ctx context.Context, caller tenancy.Caller, w records.Window, providerFilter string) (*ReportSummary, error)
}

// Handler serves clinic reports over HTTP.
type Handler struct {
	service reportService
	logger  *logging.Logger
}

func NewHandler(service reportService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type summaryResponse struct {
	*ReportSummary
	Error string `json:"error,omitempty"`
}

// GetSummary returns appointment activity for the caller's clinic.
// GET /api/clinics/{clinicID}/reports/summary
// Query params:
//   - start: YYYY-MM-DD or RFC3339 (optional, defaults to month start)
//   - end: YYYY-MM-DD (inclusive) or RFC3339 (optional)
//   - providerId: restrict to one provider (ignored for clinical roles)
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	caller, ok := tenancy.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if clinicID := chi.URLParam(r, "clinicID"); clinicID != caller.ClinicID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	q := r.URL.Query()
	window, err := records.ParseWindow(q.Get("start"), q.Get("end"))
	if err == nil {
		var summary *ReportSummary
		summary, err = h.service.GetReportSummary(r.Context(), caller, window, q.Get("providerId"))
		if err == nil {
			writeJSON(w, http.StatusOK, summaryResponse{ReportSummary: summary})
			return
		}
	}

	status := apperrors.HTTPStatus(err)
	log := h.logger.WithClinic(caller.ClinicID)
	if status >= http.StatusInternalServerError {
		log.Error("report summary failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]string{"error": apperrors.PublicMessage(err)})
		return
	}
	log.Info("report summary rejected", "status", status, "error", err)
	if status == http.StatusBadRequest {
		empty := EmptySummary(records.Window{})
		writeJSON(w, status, summaryResponse{ReportSummary: &empty, Error: apperrors.PublicMessage(err)})
		return
	}
	writeJSON(w, status, map[string]string{"error": apperrors.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
