package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aigrowth/internal/billing"
	"aigrowth/internal/core"
	"aigrowth/internal/types"
)

// PaymentProcessor is the billing surface behind the storefront endpoints.
type PaymentProcessor interface {
	CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutResult, error)
	ProcessPayment(ctx context.Context, req billing.PaymentRequest) (*billing.PaymentResult, error)
}

// CheckoutHandler serves the storefront: hosted checkout creation and
// direct card payments.
type CheckoutHandler struct {
	payments  PaymentProcessor
	validator *core.Validator
	logger    *slog.Logger
}

// NewCheckoutHandler builds the handler. A nil logger uses slog.Default.
func NewCheckoutHandler(payments PaymentProcessor, validator *core.Validator, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{payments: payments, validator: validator, logger: logger}
}

// RegisterRoutes mounts the storefront endpoints. The caller places them
// behind the rate limiter.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout/create", h.CreateCheckout)
	r.Post("/payment/process", h.ProcessPayment)
}

type checkoutResponse struct {
	Status string `json:"status"`
	*billing.CheckoutResult
}

type paymentResponse struct {
	Status string `json:"status"`
	*billing.PaymentResult
}

type storefrontError struct {
	Error      string `json:"error"`
	Details    any    `json:"details,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

const (
	msgUnknownProduct  = "Produto não encontrado"
	msgCheckoutFailed  = "Erro ao criar checkout"
	msgPaymentFailed   = "Erro ao processar pagamento"
	msgInvalidRequest  = "Dados inválidos"
	msgInternalFailure = "Erro interno do servidor"
)

// CreateCheckout handles POST /checkout/create.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req billing.CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.payments.CreateCheckout(r.Context(), req)
	if err != nil {
		h.providerError(w, r, msgCheckoutFailed, false, err)
		return
	}
	core.JSON(w, r, http.StatusOK, checkoutResponse{Status: "success", CheckoutResult: res})
}

// ProcessPayment handles POST /payment/process.
func (h *CheckoutHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req billing.PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.payments.ProcessPayment(r.Context(), req)
	if err != nil {
		h.providerError(w, r, msgPaymentFailed, true, err)
		return
	}
	core.JSON(w, r, http.StatusOK, paymentResponse{Status: "success", PaymentResult: res})
}

func (h *CheckoutHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := core.DecodeJSON(w, r, dst)
	if err == nil {
		err = h.validator.ValidateStruct(dst)
	}
	if err == nil {
		return true
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus() == http.StatusBadRequest {
		details := any(appErr.Message)
		if len(appErr.Details) > 0 {
			details = appErr.Details
		}
		core.JSON(w, r, http.StatusBadRequest, storefrontError{Error: msgInvalidRequest, Details: details})
		return false
	}
	h.logger.ErrorContext(r.Context(), "request decoding failed", "error", err)
	core.JSON(w, r, http.StatusInternalServerError, storefrontError{Error: msgInternalFailure})
	return false
}

// providerError renders the storefront error bodies. Provider rejections
// are 400 and carry the provider's body; an unreachable provider is 502.
func (h *CheckoutHandler) providerError(w http.ResponseWriter, r *http.Request, msg string, withStatus bool, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		core.JSON(w, r, http.StatusInternalServerError, storefrontError{Error: msgInternalFailure})
		return
	}

	switch appErr.Code {
	case types.ErrCodeValidationUnknownProduct:
		core.JSON(w, r, http.StatusBadRequest, storefrontError{Error: msgUnknownProduct})
	case types.ErrCodeUpstreamProvider:
		body := storefrontError{Error: msg, Details: appErr.Details["provider_body"]}
		if withStatus {
			body.StatusCode, _ = appErr.Details["status_code"].(int)
		}
		core.JSON(w, r, http.StatusBadRequest, body)
	case types.ErrCodeUpstreamUnavailable, types.ErrCodeUpstreamRateLimited:
		h.logger.WarnContext(r.Context(), msg, "error", err)
		core.JSON(w, r, http.StatusBadGateway, storefrontError{Error: msg, Details: appErr.Message})
	default:
		h.logger.ErrorContext(r.Context(), msg, "error", err)
		core.JSON(w, r, http.StatusInternalServerError, storefrontError{Error: msgInternalFailure})
	}
}
