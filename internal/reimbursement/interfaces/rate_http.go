package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fede-claims/internal/audit"
	"fede-claims/internal/auth"
	"fede-claims/internal/observability/metrics"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// RateStore administers the time-bounded rate tables.
type RateStore interface {
	CreateMileageRate(ctx context.Context, rate reimbursement.MileageRate) error
	CreateRoleRate(ctx context.Context, rate reimbursement.RoleRate) error
	CreateCeiling(ctx context.Context, ceiling reimbursement.Ceiling) error
	ListMileageRates(ctx context.Context) ([]reimbursement.MileageRate, error)
	ListRoleRates(ctx context.Context) ([]reimbursement.RoleRate, error)
	ListCeilings(ctx context.Context) ([]reimbursement.Ceiling, error)
}

// RateHandler handles rate table administration APIs.
type RateHandler struct {
	store       RateStore
	auditLogger audit.Logger
}

// NewRateHandler constructs a handler.
func NewRateHandler(store RateStore, auditLogger audit.Logger) (*RateHandler, error) {
	if store == nil {
		return nil, errors.New("rate handler: nil store")
	}
	return &RateHandler{store: store, auditLogger: auditLogger}, nil
}

// ServeHTTP handles rate routes under /api/v1/rates.
func (h *RateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/rates/mileage":
		h.dispatch(w, r, h.listMileage, h.createMileage)
	case "/api/v1/rates/roles":
		h.dispatch(w, r, h.listRoles, h.createRole)
	case "/api/v1/rates/ceilings":
		h.dispatch(w, r, h.listCeilings, h.createCeiling)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RateHandler) dispatch(w http.ResponseWriter, r *http.Request, list, create func(http.ResponseWriter, *http.Request)) {
	switch r.Method {
	case http.MethodGet:
		list(w, r)
	case http.MethodPost:
		create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *RateHandler) listMileage(w http.ResponseWriter, r *http.Request) {
	rates, err := h.store.ListMileageRates(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, rates)
}

func (h *RateHandler) createMileage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Horsepower int     `json:"horsepower"`
		RatePerKM  float64 `json:"rate_per_km"`
		ValidFrom  string  `json:"valid_from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	validFrom, ok := parseValidFrom(w, req.ValidFrom)
	if !ok {
		return
	}
	rate := reimbursement.MileageRate{
		Horsepower: req.Horsepower,
		RatePerKM:  req.RatePerKM,
		ValidFrom:  validFrom,
	}
	if err := h.store.CreateMileageRate(r.Context(), rate); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.IncRateRowCreated("mileage_rates")
	w.WriteHeader(http.StatusCreated)
	h.logAudit(r, "rates.mileage.create", map[string]any{
		"horsepower":  req.Horsepower,
		"rate_per_km": req.RatePerKM,
	})
}

func (h *RateHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	rates, err := h.store.ListRoleRates(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, rates)
}

func (h *RateHandler) createRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier       string  `json:"tier"`
		Percentage float64 `json:"percentage"`
		ValidFrom  string  `json:"valid_from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	validFrom, ok := parseValidFrom(w, req.ValidFrom)
	if !ok {
		return
	}
	rate := reimbursement.RoleRate{
		Tier:       reimbursement.RoleTier(req.Tier),
		Percentage: req.Percentage,
		ValidFrom:  validFrom,
	}
	if err := h.store.CreateRoleRate(r.Context(), rate); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.IncRateRowCreated("role_rates")
	w.WriteHeader(http.StatusCreated)
	h.logAudit(r, "rates.role.create", map[string]any{
		"tier":       req.Tier,
		"percentage": req.Percentage,
	})
}

func (h *RateHandler) listCeilings(w http.ResponseWriter, r *http.Request) {
	ceilings, err := h.store.ListCeilings(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, ceilings)
}

func (h *RateHandler) createCeiling(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category           string  `json:"category"`
		PerUnit            float64 `json:"per_unit"`
		PerDay             float64 `json:"per_day"`
		PerMonth           float64 `json:"per_month"`
		RequiresValidation bool    `json:"requires_validation"`
		ValidFrom          string  `json:"valid_from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	validFrom, ok := parseValidFrom(w, req.ValidFrom)
	if !ok {
		return
	}
	ceiling := reimbursement.Ceiling{
		Category:           req.Category,
		PerUnit:            req.PerUnit,
		PerDay:             req.PerDay,
		PerMonth:           req.PerMonth,
		RequiresValidation: req.RequiresValidation,
		ValidFrom:          validFrom,
	}
	if err := h.store.CreateCeiling(r.Context(), ceiling); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.IncRateRowCreated("expense_ceilings")
	w.WriteHeader(http.StatusCreated)
	h.logAudit(r, "rates.ceiling.create", map[string]any{
		"category": req.Category,
		"per_unit": req.PerUnit,
	})
}

func (h *RateHandler) logAudit(r *http.Request, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "rate",
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func parseValidFrom(w http.ResponseWriter, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		http.Error(w, "invalid valid_from, want YYYY-MM-DD", http.StatusBadRequest)
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
