package billing

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"aigrowth/internal/external"
	"aigrowth/internal/types"
)

// mirrorTimeout bounds the local write that follows an accepted charge.
const mirrorTimeout = 5 * time.Second

// Gateway is the checkout provider as seen by the payment flows.
type Gateway interface {
	CreateCheckout(ctx context.Context, order external.OrderRequest) (*external.OrderResponse, error)
	CreateOrder(ctx context.Context, order external.OrderRequest) (*external.OrderResponse, error)
}

// AttemptRecorder persists accepted payment attempts.
type AttemptRecorder interface {
	RecordPaymentAttempt(ctx context.Context, a PaymentAttempt) (*types.Subscription, error)
}

// BuyerDetails is the customer block submitted by the storefront.
type BuyerDetails struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

// CheckoutRequest asks for a hosted checkout of one base plan.
type CheckoutRequest struct {
	ProductID string       `json:"product_id"`
	Customer  BuyerDetails `json:"customer"`
}

// CheckoutResult is the provider order and the URL the buyer is sent to.
type CheckoutResult struct {
	OrderID     string          `json:"order_id"`
	CheckoutURL string          `json:"checkout_url"`
	PaymentData json.RawMessage `json:"payment_data"`
}

// UpsellSelection is one add-on ticked in the storefront.
type UpsellSelection struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Price   float64 `json:"price" validate:"gte=0"`
	OneTime bool    `json:"oneTime"`
}

func (u UpsellSelection) recurrence() types.Recurrence {
	if u.OneTime {
		return types.RecurrenceOneTime
	}
	return types.RecurrenceRecurring
}

// PaymentRequest is a direct card payment for a plan plus upsells. Totals
// are monthly; the order is billed for twelve months.
type PaymentRequest struct {
	ProductID    string            `json:"product_id"`
	Customer     BuyerDetails      `json:"customer"`
	Upsells      []UpsellSelection `json:"upsells" validate:"dive"`
	TotalMonthly float64           `json:"total_monthly" validate:"gte=0"`
	TotalOneTime float64           `json:"total_onetime" validate:"gte=0"`
	CardNumber   string            `json:"card_number"`
	CardHolder   string            `json:"card_holder"`
	CardMonth    string            `json:"card_month"`
	CardYear     string            `json:"card_year"`
	CardCVV      string            `json:"card_cvv"`
	Installments int               `json:"installments" validate:"omitempty,min=1,max=12"`
}

// PaymentResult summarises an order the provider accepted.
type PaymentResult struct {
	PaymentStatus   string  `json:"payment_status"`
	TransactionID   string  `json:"transaction_id"`
	OrderID         string  `json:"order_id"`
	TotalAmount     float64 `json:"total_amount"`
	UpsellsIncluded int     `json:"upsells_included"`
}

// PaymentService drives checkout creation and card payments against the
// provider and mirrors accepted payments locally.
type PaymentService struct {
	gateway  Gateway
	recorder AttemptRecorder
	logger   *slog.Logger
}

// NewPaymentService returns a PaymentService. A nil logger uses slog.Default.
func NewPaymentService(gateway Gateway, recorder AttemptRecorder, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{gateway: gateway, recorder: recorder, logger: logger}
}

func unknownProduct(code string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationUnknownProduct, "Produto não encontrado", nil,
		map[string]any{"product_id": code})
}

func (b BuyerDetails) orderCustomer() external.OrderCustomer {
	return external.OrderCustomer{Name: b.Name, Email: b.Email, Phone: b.Phone, Document: b.Document}
}

// CreateCheckout opens a hosted checkout for a single plan. Unknown products
// are rejected before the provider is called.
func (p *PaymentService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	sku, ok := SKUForProduct(req.ProductID)
	if !ok {
		return nil, unknownProduct(req.ProductID)
	}

	resp, err := p.gateway.CreateCheckout(ctx, external.OrderRequest{
		Customer: req.Customer.orderCustomer(),
		Items:    []external.OrderItem{{SKUID: sku, Quantity: 1}},
		Payment:  external.OrderPayment{Method: external.PaymentMethodCreditCard},
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{
		OrderID:     resp.ID.String(),
		CheckoutURL: resp.CheckoutURL,
		PaymentData: resp.Payment,
	}, nil
}

// BuildOrder assembles the provider order for a card payment: the base plan
// priced for twelve months, then every known upsell, recurring ones also
// annualised.
func BuildOrder(sku string, req PaymentRequest) external.OrderRequest {
	base := req.TotalMonthly * 12
	items := []external.OrderItem{{SKUID: sku, Quantity: 1, Price: &base}}

	for _, u := range req.Upsells {
		upsellSKU, ok := UpsellSKU(u.ID)
		if !ok {
			continue
		}
		price := u.Price
		if !u.OneTime {
			price *= 12
		}
		items = append(items, external.OrderItem{
			SKU:      upsellSKU,
			Quantity: 1,
			Price:    &price,
			Name:     u.Title,
			Type:     u.recurrence(),
		})
	}

	installments := req.Installments
	if installments == 0 {
		installments = external.DefaultInstallments
	}

	return external.OrderRequest{
		Customer: req.Customer.orderCustomer(),
		Items:    items,
		Payment: external.OrderPayment{
			Method: external.PaymentMethodCreditCard,
			Card: &external.Card{
				Number:      strings.ReplaceAll(req.CardNumber, " ", ""),
				HolderName:  req.CardHolder,
				ExpiryMonth: req.CardMonth,
				ExpiryYear:  req.CardYear,
				CVV:         req.CardCVV,
			},
			Installments: installments,
		},
		Metadata: &external.OrderMetadata{
			UpsellsCount: len(req.Upsells),
			TotalMonthly: req.TotalMonthly,
			TotalOneTime: req.TotalOneTime,
			Source:       external.OrderSource,
		},
	}
}

// ProcessPayment charges the card through the provider. Once the provider
// accepts the order the call succeeds even if the local mirror cannot be
// written; that failure is only logged.
func (p *PaymentService) ProcessPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	sku, ok := SKUForProduct(req.ProductID)
	if !ok {
		return nil, unknownProduct(req.ProductID)
	}

	resp, err := p.gateway.CreateOrder(ctx, BuildOrder(sku, req))
	if err != nil {
		return nil, err
	}
	orderID := resp.ID.String()

	upsells := make(types.UpsellList, 0, len(req.Upsells))
	for _, u := range req.Upsells {
		upsells = append(upsells, types.UpsellItem{
			Code:       u.ID,
			Title:      u.Title,
			Price:      u.Price,
			Recurrence: u.recurrence(),
		})
	}
	attempt := PaymentAttempt{
		Customer: types.CustomerInput{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		ProductCode:  req.ProductID,
		OrderID:      orderID,
		TotalMonthly: req.TotalMonthly,
		TotalOneTime: req.TotalOneTime,
		Upsells:      upsells,
	}
	// The card is already charged: the mirror must not depend on the caller
	// staying connected.
	mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	if _, err := p.recorder.RecordPaymentAttempt(mirrorCtx, attempt); err != nil {
		p.logger.ErrorContext(ctx, "payment accepted by provider but local mirror failed",
			"order_id", orderID,
			"product_id", req.ProductID,
			"error", err,
		)
	}

	status := resp.Status
	if status == "" {
		status = "pending"
	}
	return &PaymentResult{
		PaymentStatus:   status,
		TransactionID:   orderID,
		OrderID:         orderID,
		TotalAmount:     attempt.Amount(),
		UpsellsIncluded: len(req.Upsells),
	}, nil
}
