// Package provider is the HTTP client for the external payment
// provider that charges stored payment methods.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/internal/service"
	customError "github.com/policycore/billing-engine/pkg/errors"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type chargeRequest struct {
	PolicyID string          `json:"policy_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type chargeResponse struct {
	Status             string          `json:"status"`
	ConfirmationNumber string          `json:"confirmation_number"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	Fee                decimal.Decimal `json:"fee"`
}

// ChargeStoredMethod asks the provider to charge the payment method on
// file for the policy. A non-2xx response is a transport failure; a
// declined charge comes back as a 2xx with a non-approved status.
func (c *Client) ChargeStoredMethod(ctx context.Context, policyID string, amount decimal.Decimal) (*service.ChargeResult, error) {
	body, err := json.Marshal(chargeRequest{PolicyID: policyID, Amount: amount})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, customError.WrapProviderFailure(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, customError.WrapProviderFailure(fmt.Sprintf("http %d", resp.StatusCode))
	}

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, customError.WrapProviderFailure(err.Error())
	}

	return &service.ChargeResult{
		Status:             out.Status,
		ConfirmationNumber: out.ConfirmationNumber,
		AmountPaid:         out.AmountPaid,
		Fee:                out.Fee,
	}, nil
}
