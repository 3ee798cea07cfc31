package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	claims "fede-claims/internal/claims/domain"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// WebhookNotifier posts a JSON payload to a treasury webhook whenever a
// submitted claim needs a second validation. Delivery is best effort: a
// failed post is logged, never surfaced to the submitter.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *log.Logger
}

type webhookPayload struct {
	Event              string   `json:"event"`
	ClaimID            string   `json:"claim_id"`
	AssociationID      string   `json:"association_id"`
	UserID             string   `json:"user_id"`
	Category           string   `json:"category"`
	ExpenseDate        string   `json:"expense_date"`
	ReimbursableAmount float64  `json:"reimbursable_amount"`
	ExceedsCeiling     bool     `json:"exceeds_ceiling"`
	Warnings           []string `json:"warnings,omitempty"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string, logger *log.Logger) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("webhook notifier: empty url")
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}, nil
}

// NotifySecondValidation posts the claim summary to the webhook.
func (n *WebhookNotifier) NotifySecondValidation(ctx context.Context, claim claims.Claim, calc reimbursement.Calculation) {
	if n == nil || n.url == "" {
		return
	}
	payload := webhookPayload{
		Event:              "claim.second_validation_required",
		ClaimID:            claim.ID,
		AssociationID:      claim.AssociationID,
		UserID:             claim.UserID,
		Category:           claim.Category,
		ExpenseDate:        claim.ExpenseDate.Format("2006-01-02"),
		ReimbursableAmount: reimbursement.Round2(calc.ReimbursableAmount),
		ExceedsCeiling:     calc.ExceedsCeiling,
		Warnings:           calc.Warnings,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logf("webhook payload error: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logf("webhook request error: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logf("webhook post error: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logf("webhook post status %d for claim %s", resp.StatusCode, claim.ID)
	}
}

func (n *WebhookNotifier) logf(format string, args ...any) {
	if n.logger != nil {
		n.logger.Printf(format, args...)
	}
}
