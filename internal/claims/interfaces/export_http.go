package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fede-claims/internal/audit"
	"fede-claims/internal/auth"
	claimapp "fede-claims/internal/claims/application"
	"fede-claims/internal/observability/metrics"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// ExportHandler serves bulk claim exports for treasurers.
type ExportHandler struct {
	service            *claimapp.ClaimService
	associationChecker auth.AssociationTenantChecker
	auditLogger        audit.Logger
}

// NewExportHandler constructs a handler.
func NewExportHandler(service *claimapp.ClaimService, associationChecker auth.AssociationTenantChecker, auditLogger audit.Logger) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("export handler: nil service")
	}
	return &ExportHandler{service: service, associationChecker: associationChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP handles export routes under /api/v1/exports.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/exports/claims.xlsx" && r.Method == http.MethodGet {
		h.handleClaimsXLSX(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ExportHandler) handleClaimsXLSX(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("xlsx", result, time.Since(start))
	}()

	associationID := r.URL.Query().Get("association_id")
	if associationID == "" {
		result = metrics.ResultError
		http.Error(w, "association_id required", http.StatusBadRequest)
		return
	}
	month := r.URL.Query().Get("month")
	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			result = metrics.ResultError
			http.Error(w, "invalid month, want YYYY-MM", http.StatusBadRequest)
			return
		}
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" {
		if err := ensureAssociationTenant(r, h.associationChecker, tenantID, associationID); err != nil {
			result = metrics.ResultError
			respondTenantError(w, err)
			return
		}
	}

	list, err := h.service.ListByAssociation(r.Context(), associationID)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	if month != "" {
		filtered := list[:0]
		for _, claim := range list {
			if claim.ExpenseDate.Format("2006-01") == month {
				filtered = append(filtered, claim)
			}
		}
		list = filtered
	}
	calcs := make(map[string]reimbursement.Calculation, len(list))
	for _, claim := range list {
		calc, err := h.service.GetCalculation(r.Context(), claim.ID)
		if err != nil {
			result = metrics.ResultError
			respondServiceError(w, err)
			return
		}
		if calc != nil {
			calcs[claim.ID] = *calc
		}
	}

	data, err := BuildClaimsXLSX(associationID, list, calcs)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, associationID)
}

func (h *ExportHandler) logAudit(r *http.Request, associationID string) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(map[string]any{"format": "xlsx"})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:      tenantID,
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        "claims.export",
		ResourceType:  "association",
		ResourceID:    associationID,
		AssociationID: associationID,
		Metadata:      payload,
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}
