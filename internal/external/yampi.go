package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"aigrowth/internal/types"
)

const (
	yampiAPIBase       = "https://api.yampi.com.br/v1"
	yampiUserAgent     = "AIGrowth-Billing/1.0"
	maxProviderBodyLog = 4096
)

// Payment method and order metadata values sent to the provider.
const (
	PaymentMethodCreditCard = "credit_card"
	OrderSource             = "ai_growth_mvp"
	DefaultInstallments     = 12
)

// OrderCustomer is the buyer block of an order.
type OrderCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

// OrderItem is one order line. Base plans are addressed by SKUID, upsells by
// SKU with their own price, title and recurrence tag.
type OrderItem struct {
	SKUID    string           `json:"sku_id,omitempty"`
	SKU      string           `json:"sku,omitempty"`
	Quantity int              `json:"quantity"`
	Price    *float64         `json:"price,omitempty"`
	Name     string           `json:"name,omitempty"`
	Type     types.Recurrence `json:"type,omitempty"`
}

// Card is the raw card data of a direct payment.
type Card struct {
	Number      string `json:"number"`
	HolderName  string `json:"holder_name"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

// OrderPayment selects the payment method and, for direct payments, the card.
type OrderPayment struct {
	Method       string `json:"method"`
	Card         *Card  `json:"card,omitempty"`
	Installments int    `json:"installments,omitempty"`
}

// OrderMetadata is echoed back by the provider for reconciliation.
type OrderMetadata struct {
	UpsellsCount int     `json:"upsells_count"`
	TotalMonthly float64 `json:"total_monthly"`
	TotalOneTime float64 `json:"total_onetime"`
	Source       string  `json:"source"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	Customer OrderCustomer  `json:"customer"`
	Items    []OrderItem    `json:"items"`
	Payment  OrderPayment   `json:"payment"`
	Metadata *OrderMetadata `json:"metadata,omitempty"`
}

// OrderResponse is the subset of the provider's order we rely on.
type OrderResponse struct {
	ID          types.FlexString `json:"id"`
	Status      string           `json:"status"`
	CheckoutURL string           `json:"checkout_url"`
	Payment     json.RawMessage  `json:"payment"`
}

// YampiClientConfig carries credentials; nothing is read from globals.
type YampiClientConfig struct {
	BaseURL string
	Token   string
	Alias   string
	Logger  *slog.Logger
}

// YampiClient creates orders on the Yampi REST API through BaseClient.
type YampiClient struct {
	base    *BaseClient
	baseURL string
	token   string
	alias   string
	logger  *slog.Logger
}

// NewYampiClient builds a client. httpClient should carry the configured
// request timeout.
func NewYampiClient(httpClient *http.Client, cfg YampiClientConfig, opts ...BaseClientOption) *YampiClient {
	base := NewBaseClient(httpClient, "yampi", DefaultRetryPolicy(), yampiUserAgent, opts...)
	return NewYampiClientWithBase(base, cfg)
}

// NewYampiClientWithBase builds a client on an existing BaseClient.
func NewYampiClientWithBase(base *BaseClient, cfg YampiClientConfig) *YampiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = yampiAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &YampiClient{
		base:    base,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   cfg.Token,
		alias:   cfg.Alias,
		logger:  logger,
	}
}

// CreateCheckout registers a single-item order for a hosted checkout. Only
// 201 Created counts as success.
func (c *YampiClient) CreateCheckout(ctx context.Context, order OrderRequest) (*OrderResponse, error) {
	return c.postOrder(ctx, "create checkout", order, http.StatusCreated)
}

// CreateOrder submits a card payment with upsell lines. 200 and 201 are
// both accepted.
func (c *YampiClient) CreateOrder(ctx context.Context, order OrderRequest) (*OrderResponse, error) {
	return c.postOrder(ctx, "create order", order, http.StatusOK, http.StatusCreated)
}

func (c *YampiClient) postOrder(ctx context.Context, op string, order OrderRequest, accept ...int) (*OrderResponse, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, op+": failed to encode order", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, op+": failed to build request", err)
	}
	c.setHeaders(req)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamProvider, op+": unreadable provider response", err)
	}

	accepted := false
	for _, code := range accept {
		if resp.StatusCode == code {
			accepted = true
			break
		}
	}
	if !accepted {
		c.logger.WarnContext(ctx, "yampi rejected order",
			"operation", op,
			"status_code", resp.StatusCode,
			"body", truncate(string(body), maxProviderBodyLog),
		)
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider returned %d", op, resp.StatusCode), nil,
			map[string]any{
				"provider_body": string(body),
				"status_code":   resp.StatusCode,
			})
	}

	var out OrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamProvider, op+": malformed provider response", err)
	}
	return &out, nil
}

func (c *YampiClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.alias != "" {
		req.Header.Set("X-Store-Alias", c.alias)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
