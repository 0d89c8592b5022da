package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/staffma/staffma-backend/internal/domain/payroll"
)

const (
	StatusSucceeded = "succeeded"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

var ErrDisbursementRejected = errors.New("disbursement rejected by provider")

type Config struct {
	BaseURL  string
	APIKey   string
	Currency string
	Timeout  time.Duration
}

// Client sends payroll payouts to the Staffpesa disbursement API. One call is
// one attempt; callers decide what a failure means.
type Client struct {
	baseURL  string
	apiKey   string
	currency string
	timeout  time.Duration
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	currency := config.Currency
	if currency == "" {
		currency = "KES"
	}

	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		apiKey:   config.APIKey,
		currency: currency,
		timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type disbursementRequest struct {
	ExternalID  string `json:"external_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
	BankCode    string `json:"bank_code,omitempty"`
	Narration   string `json:"narration,omitempty"`
}

type disbursementResponse struct {
	Data struct {
		ID         string `json:"id"`
		ExternalID string `json:"external_id"`
		Status     string `json:"status"`
	} `json:"data"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) Disburse(ctx context.Context, d payroll.Disbursement) (payroll.DisbursementReceipt, error) {
	currency := d.Currency
	if currency == "" {
		currency = c.currency
	}

	body, err := json.Marshal(disbursementRequest{
		ExternalID:  d.ExternalID,
		Amount:      d.Amount.StringFixed(2),
		Currency:    currency,
		Method:      string(d.Method),
		Destination: d.Destination,
		BankCode:    d.BankCode,
		Narration:   d.Narration,
	})
	if err != nil {
		return payroll.DisbursementReceipt{}, fmt.Errorf("marshal disbursement: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/disbursements", bytes.NewReader(body))
	if err != nil {
		return payroll.DisbursementReceipt{}, fmt.Errorf("create disbursement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", d.ExternalID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return payroll.DisbursementReceipt{}, fmt.Errorf("disbursement request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return payroll.DisbursementReceipt{}, fmt.Errorf("read disbursement response: %w", err)
	}

	var parsed disbursementResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < 300 {
			return payroll.DisbursementReceipt{}, fmt.Errorf("decode disbursement response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return payroll.DisbursementReceipt{}, fmt.Errorf("%w: status %d: %s", ErrDisbursementRejected, resp.StatusCode, providerMessage(parsed, raw))
	}

	switch parsed.Data.Status {
	case StatusSucceeded, StatusPending:
	default:
		return payroll.DisbursementReceipt{}, fmt.Errorf("%w: status %q: %s", ErrDisbursementRejected, parsed.Data.Status, providerMessage(parsed, raw))
	}

	c.logger.Debug("disbursement accepted",
		"external_id", d.ExternalID,
		"reference", parsed.Data.ID,
		"status", parsed.Data.Status)

	return payroll.DisbursementReceipt{
		Reference: parsed.Data.ID,
		Status:    parsed.Data.Status,
	}, nil
}

func providerMessage(parsed disbursementResponse, raw []byte) string {
	switch {
	case parsed.Error != "":
		return parsed.Error
	case parsed.Message != "":
		return parsed.Message
	case len(raw) > 0:
		return strings.TrimSpace(string(raw))
	default:
		return "no response body"
	}
}
