/**
 * @description
 * This package provides a client for the Clubkonnect-style VTU (value top-up)
 * API used to deliver data bundles. The API is a plain HTTP GET interface with
 * credentials and order parameters in the query string.
 *
 * The caller supplies a RequestID (our transaction UUID) with every order, so
 * provider-side retries of the same logical purchase are deduplicated by the
 * provider rather than by us.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, net/url, time: Standard Go libraries.
 */
package vtu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// networkCodes maps carrier names to the provider's numeric network codes.
var networkCodes = map[string]string{
	"MTN":     "01",
	"Glo":     "02",
	"9mobile": "03",
	"Airtel":  "04",
}

// Client is a client for the VTU provider API.
type Client struct {
	BaseURL    string
	UserID     string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new VTU API client. The timeout bounds the provider
// round-trip; an expired deadline is reported as a delivery failure by callers.
func NewClient(baseURL, userID, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		UserID:  userID,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// PurchaseRequest describes one data bundle delivery order.
type PurchaseRequest struct {
	Network     string
	PhoneNumber string
	PlanCode    string
	RequestID   string
}

// PurchaseResult is the provider's answer to a delivery order.
type PurchaseResult struct {
	Success bool
	OrderID string
	Message string
}

// orderResponse tolerates the provider's inconsistent field casing.
type orderResponse struct {
	Status   string `json:"status"`
	StatusUC string `json:"Status"`
	OrderID  string `json:"orderid"`
	OrderIDU string `json:"OrderID"`
	Message  string `json:"message"`
	MessageU string `json:"Message"`
}

func (o orderResponse) status() string {
	if o.Status != "" {
		return strings.ToLower(o.Status)
	}
	return strings.ToLower(o.StatusUC)
}

func (o orderResponse) orderID() string {
	if o.OrderID != "" {
		return o.OrderID
	}
	return o.OrderIDU
}

func (o orderResponse) message() string {
	if o.Message != "" {
		return o.Message
	}
	return o.MessageU
}

// PurchaseData places a data delivery order. A non-successful provider status
// is returned as Success=false rather than an error; errors are reserved for
// transport failures and ambiguous outcomes (timeouts), which callers must
// treat as failed-with-refund.
func (c *Client) PurchaseData(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	code, ok := networkCodes[req.Network]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", req.Network)
	}

	params := url.Values{}
	params.Set("UserID", c.UserID)
	params.Set("APIKey", c.APIKey)
	params.Set("MobileNetwork", code)
	params.Set("DataPlan", req.PlanCode)
	params.Set("MobileNumber", req.PhoneNumber)
	params.Set("RequestID", req.RequestID)

	var out orderResponse
	if err := c.get(ctx, "/api/datainfo.asp", params, &out); err != nil {
		return nil, err
	}

	if out.status() == "successful" {
		orderID := out.orderID()
		if orderID == "" {
			orderID = req.RequestID
		}
		return &PurchaseResult{Success: true, OrderID: orderID}, nil
	}

	message := out.message()
	if message == "" {
		message = "provider returned failure"
	}
	return &PurchaseResult{Success: false, Message: message}, nil
}

// OrderStatus is the provider's view of a previously placed order.
type OrderStatus struct {
	Status  string
	OrderID string
	Message string
}

// Delivered reports whether the provider settled the order successfully.
func (s *OrderStatus) Delivered() bool {
	return strings.EqualFold(s.Status, "successful")
}

// Failed reports whether the provider terminally rejected the order.
func (s *OrderStatus) Failed() bool {
	switch strings.ToLower(s.Status) {
	case "failed", "cancelled", "refunded":
		return true
	}
	return false
}

// CheckStatus queries the provider's order-status endpoint for a RequestID.
// Used by the reconcile sweep to resolve purchases stuck in pending.
func (c *Client) CheckStatus(ctx context.Context, requestID string) (*OrderStatus, error) {
	params := url.Values{}
	params.Set("UserID", c.UserID)
	params.Set("APIKey", c.APIKey)
	params.Set("RequestID", requestID)

	var out orderResponse
	if err := c.get(ctx, "/api/orderstatus.asp", params, &out); err != nil {
		return nil, err
	}
	return &OrderStatus{Status: out.status(), OrderID: out.orderID(), Message: out.message()}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("vtu request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read vtu response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vtu returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode vtu response: %w", err)
	}
	return nil
}
