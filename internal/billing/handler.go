package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-billing/internal/records"
	"github.com/wolfman30/clinic-billing/pkg/apperrors"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

type billingService interface {
	GetPatientLedger(ctx context.Context, clinicID, patientID string, w records.Window) (*Ledger, error)
	GetClinicBillingPage(ctx context.Context, clinicID string, q records.PatientQuery) (*ClinicBillingPage, error)
}

// Handler serves the billing read-models over HTTP.
type Handler struct {
	service billingService
	logger  *logging.Logger
}

func NewHandler(service billingService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type ledgerResponse struct {
	*Ledger
	Error string `json:"error,omitempty"`
}

type pageResponse struct {
	*ClinicBillingPage
	Error string `json:"error,omitempty"`
}

// GetPatientLedger returns a patient's transactions and billing summary.
// GET /api/clinics/{clinicID}/patients/{patientID}/ledger
// Query params:
//   - start: YYYY-MM-DD or RFC3339 (optional)
//   - end: YYYY-MM-DD (inclusive) or RFC3339 (optional)
func (h *Handler) GetPatientLedger(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	patientID := chi.URLParam(r, "patientID")

	window, err := records.ParseWindow(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err == nil {
		var ledger *Ledger
		ledger, err = h.service.GetPatientLedger(r.Context(), clinicID, patientID, window)
		if err == nil {
			writeJSON(w, http.StatusOK, ledgerResponse{Ledger: ledger})
			return
		}
	}

	status := h.logFailure(r, "patient ledger", clinicID, err)
	if status == http.StatusBadRequest {
		writeJSON(w, status, ledgerResponse{Ledger: EmptyLedger(patientID), Error: apperrors.PublicMessage(err)})
		return
	}
	writeError(w, status, err)
}

// ListClinicBilling returns one page of patients with billing summaries.
// GET /api/clinics/{clinicID}/billing
// Query params:
//   - search: matches name, email or phone (optional)
//   - status: patient status (optional)
//   - page: 1-based page number (default 1)
//   - limit: page size (default 20)
func (h *Handler) ListClinicBilling(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")

	q, err := parsePatientQuery(r)
	if err == nil {
		var page *ClinicBillingPage
		page, err = h.service.GetClinicBillingPage(r.Context(), clinicID, q)
		if err == nil {
			writeJSON(w, http.StatusOK, pageResponse{ClinicBillingPage: page})
			return
		}
	}

	status := h.logFailure(r, "clinic billing page", clinicID, err)
	if status == http.StatusBadRequest {
		empty := AggregatePage(nil, q)
		writeJSON(w, status, pageResponse{ClinicBillingPage: &empty, Error: apperrors.PublicMessage(err)})
		return
	}
	writeError(w, status, err)
}

func (h *Handler) logFailure(r *http.Request, op, clinicID string, err error) int {
	status := apperrors.HTTPStatus(err)
	log := h.logger.WithClinic(clinicID)
	if status >= http.StatusInternalServerError {
		log.Error("billing request failed", "operation", op, "path", r.URL.Path, "error", err)
	} else {
		log.Info("billing request rejected", "operation", op, "status", status, "error", err)
	}
	return status
}

func parsePatientQuery(r *http.Request) (records.PatientQuery, error) {
	values := r.URL.Query()
	q := records.PatientQuery{
		Search: values.Get("search"),
		Status: values.Get("status"),
	}
	var err error
	if q.Page, err = parsePositiveInt(values.Get("page"), "page"); err != nil {
		return q, err
	}
	if q.Limit, err = parsePositiveInt(values.Get("limit"), "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func parsePositiveInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.NewValidationError(name + " must be a positive integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": apperrors.PublicMessage(err)})
}
