package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	claims "fede-claims/internal/claims/domain"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL, nil)
	if err != nil {
		t.Fatalf("new webhook notifier: %v", err)
	}

	claim := claims.Claim{
		ID:            "claim-1",
		AssociationID: "asso-1",
		UserID:        "user-1",
		Category:      claims.CategoryRegistration,
		ExpenseDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	calc := reimbursement.Calculation{
		ReimbursableAmount:       600.0,
		RequiresSecondValidation: true,
		Warnings:                 []string{"seuil franchi"},
	}
	notifier.NotifySecondValidation(context.Background(), claim, calc)

	select {
	case payload := <-payloadCh:
		if payload.Event != "claim.second_validation_required" {
			t.Fatalf("unexpected event %q", payload.Event)
		}
		if payload.ClaimID != "claim-1" || payload.ExpenseDate != "2026-03-10" {
			t.Fatalf("unexpected payload %+v", payload)
		}
		if payload.ReimbursableAmount != 600.0 {
			t.Fatalf("unexpected amount %f", payload.ReimbursableAmount)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}

func TestWebhookNotifierRequiresURL(t *testing.T) {
	if _, err := NewWebhookNotifier("", nil); err == nil {
		t.Fatal("expected an error for an empty url")
	}
}
