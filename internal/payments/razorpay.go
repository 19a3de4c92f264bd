package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"adgen/internal/apperrors"
)

type OrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	PlanKey  string `json:"planKey"`
	UserID   string `json:"userId"`
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	PlanKey  string `json:"planKey"`
	// KeyID is the public checkout key the browser needs.
	KeyID string `json:"keyId,omitempty"`
}

type RazorpayOptions struct {
	KeyID      string
	KeySecret  string
	BaseURL    string
	HTTPClient *http.Client
}

// RazorpayClient creates orders through the Razorpay REST API.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func NewRazorpayClient(opts RazorpayOptions) *RazorpayClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RazorpayClient{
		keyID:      strings.TrimSpace(opts.KeyID),
		keySecret:  strings.TrimSpace(opts.KeySecret),
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, in OrderRequest) (Order, error) {
	if c.keyID == "" || c.keySecret == "" {
		return Order{}, apperrors.APIKeyMissing("payment keys")
	}

	payload := map[string]any{
		"amount":   in.Amount,
		"currency": in.Currency,
		"receipt":  receipt(in),
		"notes": map[string]string{
			"planKey": in.PlanKey,
			"userId":  in.UserID,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Order{}, apperrors.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, apperrors.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Order{}, apperrors.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Order{}, apperrors.Network(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Order{}, apperrors.API(resp.StatusCode, string(raw))
	}

	var out Order
	if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
		return Order{}, apperrors.MalformedResponse("order response has no id")
	}
	out.PlanKey = in.PlanKey
	out.KeyID = c.keyID
	return out, nil
}

// receipt must stay within Razorpay's 40 character limit.
func receipt(in OrderRequest) string {
	r := in.PlanKey + "_" + in.UserID
	if len(r) > 40 {
		r = r[:40]
	}
	return r
}
