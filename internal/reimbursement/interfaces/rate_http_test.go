package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	reimbursement "fede-claims/internal/reimbursement/domain"
)

type stubRateStore struct {
	mu       sync.Mutex
	mileage  []reimbursement.MileageRate
	roles    []reimbursement.RoleRate
	ceilings []reimbursement.Ceiling
}

func (s *stubRateStore) CreateMileageRate(_ context.Context, rate reimbursement.MileageRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mileage = append(s.mileage, rate)
	return nil
}

func (s *stubRateStore) CreateRoleRate(_ context.Context, rate reimbursement.RoleRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = append(s.roles, rate)
	return nil
}

func (s *stubRateStore) CreateCeiling(_ context.Context, ceiling reimbursement.Ceiling) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ceilings = append(s.ceilings, ceiling)
	return nil
}

func (s *stubRateStore) ListMileageRates(_ context.Context) ([]reimbursement.MileageRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reimbursement.MileageRate(nil), s.mileage...), nil
}

func (s *stubRateStore) ListRoleRates(_ context.Context) ([]reimbursement.RoleRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reimbursement.RoleRate(nil), s.roles...), nil
}

func (s *stubRateStore) ListCeilings(_ context.Context) ([]reimbursement.Ceiling, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reimbursement.Ceiling(nil), s.ceilings...), nil
}

func newRateHandler(t *testing.T) (*RateHandler, *stubRateStore) {
	t.Helper()
	store := &stubRateStore{}
	handler, err := NewRateHandler(store, nil)
	if err != nil {
		t.Fatalf("new rate handler: %v", err)
	}
	return handler, store
}

func TestCreateAndListMileageRates(t *testing.T) {
	handler, store := newRateHandler(t)

	body := `{"horsepower": 5, "rate_per_km": 0.636, "valid_from": "2026-01-01"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates/mileage", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.mileage) != 1 || store.mileage[0].Horsepower != 5 {
		t.Fatalf("unexpected store contents %+v", store.mileage)
	}
	if store.mileage[0].ValidFrom.Format("2006-01-02") != "2026-01-01" {
		t.Fatalf("unexpected valid_from %v", store.mileage[0].ValidFrom)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/rates/mileage", nil)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRec.Code)
	}
	var rates []reimbursement.MileageRate
	if err := json.Unmarshal(listRec.Body.Bytes(), &rates); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rates) != 1 || rates[0].RatePerKM != 0.636 {
		t.Fatalf("unexpected list %+v", rates)
	}
}

func TestCreateRoleRate(t *testing.T) {
	handler, store := newRateHandler(t)

	body := `{"tier": "association_admin", "percentage": 0.8}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates/roles", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.roles) != 1 || store.roles[0].Tier != reimbursement.TierAssociation {
		t.Fatalf("unexpected store contents %+v", store.roles)
	}
}

func TestCreateCeiling(t *testing.T) {
	handler, store := newRateHandler(t)

	body := `{"category": "meal", "per_unit": 25, "per_day": 50, "requires_validation": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates/ceilings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.ceilings) != 1 || !store.ceilings[0].RequiresValidation {
		t.Fatalf("unexpected store contents %+v", store.ceilings)
	}
}

func TestRateHandlerRejectsBadInput(t *testing.T) {
	handler, _ := newRateHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates/mileage", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/rates/roles", strings.NewReader(`{"tier": "member", "percentage": 0.5, "valid_from": "01/01/2026"}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad date, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/rates/mileage", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rates/unknown", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
