package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fede-claims/internal/audit"
	"fede-claims/internal/auth"
	claimapp "fede-claims/internal/claims/application"
	claims "fede-claims/internal/claims/domain"
	"fede-claims/internal/observability/metrics"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// ClaimHandler handles claim APIs.
type ClaimHandler struct {
	service            *claimapp.ClaimService
	associationChecker auth.AssociationTenantChecker
	auditLogger        audit.Logger
}

// NewClaimHandler constructs a handler.
func NewClaimHandler(service *claimapp.ClaimService, associationChecker auth.AssociationTenantChecker, auditLogger audit.Logger) (*ClaimHandler, error) {
	if service == nil {
		return nil, errors.New("claim handler: nil service")
	}
	return &ClaimHandler{service: service, associationChecker: associationChecker, auditLogger: auditLogger}, nil
}

type claimRequest struct {
	AssociationID    string  `json:"association_id"`
	UserID           string  `json:"user_id"`
	UserRole         string  `json:"user_role"`
	Category         string  `json:"category"`
	Label            string  `json:"label"`
	ExpenseDate      string  `json:"expense_date"`
	AmountTTC        float64 `json:"amount_ttc"`
	DistanceKM       float64 `json:"distance_km"`
	FiscalHorsepower int     `json:"fiscal_horsepower"`
	IBAN             string  `json:"iban"`
}

// ServeHTTP handles claim routes under /api/v1/claims.
func (h *ClaimHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/claims" {
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if path == "/api/v1/claims/calculate" && r.Method == http.MethodPost {
		h.handlePreview(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/claims/") {
		rest := strings.TrimPrefix(path, "/api/v1/claims/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ClaimHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" {
		if err := ensureAssociationTenant(r, h.associationChecker, tenantID, input.AssociationID); err != nil {
			respondTenantError(w, err)
			return
		}
	}
	claim, err := h.service.Create(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(claim)
	h.logAudit(r, claim.AssociationID, claim.ID, "claim.create", map[string]any{
		"category": claim.Category,
		"status":   claim.Status,
	})
}

func (h *ClaimHandler) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	associationID := r.URL.Query().Get("association_id")
	if userID == "" && associationID == "" {
		userID = auth.SubjectFromContext(r.Context())
	}
	if userID == "" && associationID == "" {
		http.Error(w, "user_id or association_id required", http.StatusBadRequest)
		return
	}
	var list []claims.Claim
	var err error
	if associationID != "" {
		tenantID := auth.TenantIDFromContext(r.Context())
		if tenantID != "" {
			if tenantErr := ensureAssociationTenant(r, h.associationChecker, tenantID, associationID); tenantErr != nil {
				respondTenantError(w, tenantErr)
				return
			}
		}
		list, err = h.service.ListByAssociation(r.Context(), associationID)
	} else {
		list, err = h.service.ListByUser(r.Context(), userID)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *ClaimHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	calc, err := h.service.Preview(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(calc)
}

func (h *ClaimHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, id)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "submit":
			if r.Method == http.MethodPost {
				h.handleSubmit(w, r, id)
				return
			}
		case "validate":
			if r.Method == http.MethodPost {
				h.handleTransition(w, r, id, claims.StatusValidated)
				return
			}
		case "approve":
			if r.Method == http.MethodPost {
				h.handleTransition(w, r, id, claims.StatusApproved)
				return
			}
		case "pay":
			if r.Method == http.MethodPost {
				h.handleTransition(w, r, id, claims.StatusPaid)
				return
			}
		case "refuse":
			if r.Method == http.MethodPost {
				h.handleTransition(w, r, id, claims.StatusRefused)
				return
			}
		case "statement.pdf":
			if r.Method == http.MethodGet {
				h.handleStatementPDF(w, r, id)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ClaimHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	claim, err := h.loadClaim(w, r, id)
	if err != nil {
		return
	}
	calc, err := h.service.GetCalculation(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := struct {
		Claim       *claims.Claim              `json:"claim"`
		Calculation *reimbursement.Calculation `json:"calculation,omitempty"`
	}{Claim: claim, Calculation: calc}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *ClaimHandler) handleSubmit(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.loadClaim(w, r, id); err != nil {
		return
	}
	result, err := h.service.Submit(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := struct {
		Claim       *claims.Claim             `json:"claim"`
		Calculation reimbursement.Calculation `json:"calculation"`
		Duplicates  []claims.Claim            `json:"duplicates,omitempty"`
	}{Claim: result.Claim, Calculation: result.Calculation, Duplicates: result.Duplicates}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
	h.logAudit(r, result.Claim.AssociationID, result.Claim.ID, "claim.submit", map[string]any{
		"reimbursable_amount":        result.Calculation.ReimbursableAmount,
		"requires_second_validation": result.Calculation.RequiresSecondValidation,
		"duplicates":                 len(result.Duplicates),
	})
}

func (h *ClaimHandler) handleTransition(w http.ResponseWriter, r *http.Request, id, target string) {
	if _, err := h.loadClaim(w, r, id); err != nil {
		return
	}
	claim, err := h.service.Transition(r.Context(), id, target)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := map[string]any{
		"claim_id": claim.ID,
		"status":   claim.Status,
		"version":  claim.Version,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
	h.logAudit(r, claim.AssociationID, claim.ID, "claim."+target, map[string]any{
		"status": claim.Status,
	})
}

func (h *ClaimHandler) handleStatementPDF(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("pdf", result, time.Since(start))
	}()

	claim, err := h.loadClaim(w, r, id)
	if err != nil {
		result = metrics.ResultError
		return
	}
	calc, err := h.service.GetCalculation(r.Context(), id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildClaimStatementPDF(claim, calc)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, claim.AssociationID, claim.ID, "claim.export", map[string]any{"format": "pdf"})
}

// loadClaim fetches the claim and enforces the tenant boundary. It writes the
// error response itself, the caller only bails out on a non-nil error.
func (h *ClaimHandler) loadClaim(w http.ResponseWriter, r *http.Request, id string) (*claims.Claim, error) {
	claim, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return nil, err
	}
	if claim == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil, claims.ErrClaimNotFound
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" && claim.TenantID != "" && claim.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, auth.ErrTenantMismatch
	}
	return claim, nil
}

func (h *ClaimHandler) decodeInput(w http.ResponseWriter, r *http.Request) (claimapp.CreateClaimInput, bool) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return claimapp.CreateClaimInput{}, false
	}
	expenseDate, err := time.Parse("2006-01-02", req.ExpenseDate)
	if err != nil {
		http.Error(w, "invalid expense_date, want YYYY-MM-DD", http.StatusBadRequest)
		return claimapp.CreateClaimInput{}, false
	}
	if req.UserID == "" {
		req.UserID = auth.SubjectFromContext(r.Context())
	}
	if req.UserRole == "" {
		req.UserRole = string(auth.RoleFromContext(r.Context()))
	}
	if req.AssociationID == "" {
		req.AssociationID = auth.AssociationIDFromContext(r.Context())
	}
	return claimapp.CreateClaimInput{
		AssociationID:    req.AssociationID,
		UserID:           req.UserID,
		UserRole:         req.UserRole,
		Category:         req.Category,
		Label:            req.Label,
		ExpenseDate:      expenseDate.UTC(),
		AmountTTC:        req.AmountTTC,
		DistanceKM:       req.DistanceKM,
		FiscalHorsepower: req.FiscalHorsepower,
		IBAN:             req.IBAN,
	}, true
}

func (h *ClaimHandler) logAudit(r *http.Request, associationID, claimID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:      tenantID,
		Actor:         auth.SubjectFromContext(r.Context()),
		Role:          string(auth.RoleFromContext(r.Context())),
		Action:        action,
		ResourceType:  "claim",
		ResourceID:    claimID,
		AssociationID: associationID,
		Metadata:      payload,
		IP:            audit.ClientIP(r),
		UserAgent:     r.UserAgent(),
	})
}

func ensureAssociationTenant(r *http.Request, checker auth.AssociationTenantChecker, tenantID, associationID string) error {
	if checker == nil || tenantID == "" || associationID == "" {
		return nil
	}
	return checker.EnsureAssociationTenant(r.Context(), tenantID, associationID)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, auth.ErrTenantMismatch):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, claims.ErrClaimNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, claims.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, claims.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
