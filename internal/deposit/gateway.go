package deposit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Gateway is the connector to the external payment processor. The engine
// only initiates payments here; settlement arrives asynchronously through
// the webhook.
type Gateway interface {
	Initialize(ctx context.Context, input InitializeInput) (PaymentHandle, error)
}

// InitializeInput carries the data the gateway needs to start a charge.
// Amounts on the gateway wire are integer kobo.
type InitializeInput struct {
	Reference  string
	AmountKobo int64
	Email      string
}

// PaymentHandle is the gateway's reference for a started charge, including
// the URL the payer completes it at.
type PaymentHandle struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// PaystackGateway initializes charges against the Paystack API.
type PaystackGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewPaystackGateway builds a Paystack connector.
func NewPaystackGateway(baseURL, secretKey string) *PaystackGateway {
	return &PaystackGateway{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Initialize starts a charge tagged with the deposit reference.
func (g *PaystackGateway) Initialize(ctx context.Context, input InitializeInput) (PaymentHandle, error) {
	body, err := json.Marshal(map[string]any{
		"email":     input.Email,
		"amount":    input.AmountKobo,
		"reference": input.Reference,
	})
	if err != nil {
		return PaymentHandle{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return PaymentHandle{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return PaymentHandle{}, fmt.Errorf("initialize payment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PaymentHandle{}, fmt.Errorf("initialize payment: unexpected status %d", resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return PaymentHandle{}, fmt.Errorf("initialize payment: decode: %w", err)
	}

	return PaymentHandle{
		Reference:        decoded.Data.Reference,
		AuthorizationURL: decoded.Data.AuthorizationURL,
		AccessCode:       decoded.Data.AccessCode,
	}, nil
}

// StaticGateway simulates a successful gateway integration for tests.
type StaticGateway struct{}

// Initialize approves the charge with a synthetic authorization URL.
func (StaticGateway) Initialize(_ context.Context, input InitializeInput) (PaymentHandle, error) {
	code := uuid.NewString()
	return PaymentHandle{
		Reference:        input.Reference,
		AuthorizationURL: "https://checkout.example.com/" + code,
		AccessCode:       code,
	}, nil
}
