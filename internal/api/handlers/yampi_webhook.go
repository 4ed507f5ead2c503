// Package handlers contains the HTTP handlers of the billing API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aigrowth/internal/billing"
	"aigrowth/internal/core"
	"aigrowth/internal/external"
	"aigrowth/internal/types"
)

const (
	maxWebhookBodySize = 64 * 1024
	webhookProvider    = "yampi"
)

// OrderReconciler applies provider order events to local state.
type OrderReconciler interface {
	ConfirmPaid(ctx context.Context, o billing.PaidOrder) (*billing.PaidResult, error)
	Cancel(ctx context.Context, orderID string) (bool, error)
}

// DeliveryLog keeps the audit trail of inbound notifications.
type DeliveryLog interface {
	Record(ctx context.Context, d *types.WebhookDelivery) (int64, error)
	MarkProcessed(ctx context.Context, id int64, processingErr string) error
}

// SignatureVerifier checks the HMAC of a raw webhook body.
type SignatureVerifier interface {
	Verify(payload []byte, signature, secret string) bool
}

// WebhookMetrics counts deliveries by event and outcome.
type WebhookMetrics interface {
	RecordWebhook(event, outcome string)
}

// YampiWebhookConfig carries the webhook secret and the policy for
// deliveries without a signature header.
type YampiWebhookConfig struct {
	Secret           string
	RequireSignature bool
}

// YampiWebhookHandler receives order notifications from the checkout
// provider. It is public; trust comes from the HMAC signature.
type YampiWebhookHandler struct {
	verifier   SignatureVerifier
	reconciler OrderReconciler
	deliveries DeliveryLog
	metrics    WebhookMetrics
	cfg        YampiWebhookConfig
	logger     *slog.Logger
}

// NewYampiWebhookHandler builds the handler. A nil deliveries or metrics
// disables auditing or counting; a nil logger uses slog.Default.
func NewYampiWebhookHandler(
	verifier SignatureVerifier,
	reconciler OrderReconciler,
	deliveries DeliveryLog,
	metrics WebhookMetrics,
	cfg YampiWebhookConfig,
	logger *slog.Logger,
) *YampiWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &YampiWebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		deliveries: deliveries,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// RegisterRoutes mounts the webhook outside the /v1 API group.
func (h *YampiWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/yampi", h.Handle)
}

type yampiWebhookEvent struct {
	Event types.GatewayEvent `json:"event"`
	Order yampiWebhookOrder  `json:"order"`
}

type yampiWebhookOrder struct {
	ID       types.FlexString `json:"id"`
	Customer struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Company string `json:"company"`
	} `json:"customer"`
	Items []struct {
		SKUID types.FlexString `json:"sku_id"`
	} `json:"items"`
	Total         float64 `json:"total"`
	PaymentMethod string  `json:"payment_method"`
}

func (o yampiWebhookOrder) paidOrder() billing.PaidOrder {
	skus := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		skus = append(skus, it.SKUID.String())
	}
	return billing.PaidOrder{
		OrderID: o.ID.String(),
		Customer: types.CustomerInput{
			Name:    o.Customer.Name,
			Email:   o.Customer.Email,
			Phone:   o.Customer.Phone,
			Company: o.Customer.Company,
		},
		SKUs:          skus,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
	}
}

type webhookReply struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ClienteID int64  `json:"cliente_id,omitempty"`
	Plano     string `json:"plano,omitempty"`
}

const (
	msgEventProcessed   = "Event processed"
	msgCustomerCreated  = "Cliente criado com sucesso"
	msgSubscriptionDone = "Assinatura cancelada"
	msgInternalError    = "Internal server error"
)

const (
	labelUnknown = "unknown"
	labelOther   = "other"
)

func flatError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	core.JSON(w, r, status, map[string]string{"error": msg})
}

// rejectError answers with the status of err's code and its message.
func rejectError(w http.ResponseWriter, r *http.Request, err *types.AppError) {
	flatError(w, r, err.HTTPStatus(), err.Message)
}

var (
	errInvalidSignature = types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid signature", nil)
	errMissingSignature = types.NewAppError(types.ErrCodeAuthTokenMissing, "Missing signature", nil)
)

// eventLabel bounds the metric label set; the event name comes from an
// unauthenticated body.
func eventLabel(e types.GatewayEvent) string {
	switch e {
	case types.EventOrderPaid, types.EventOrderCancelled:
		return string(e)
	default:
		return labelOther
	}
}

// Handle verifies, records and dispatches one delivery. Apart from signature
// rejections (401) every failure, including an unreadable body, answers 500
// so the provider redelivers; replays are safe.
func (h *YampiWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read webhook body", "error", err)
		h.count(labelUnknown, "bad_request")
		flatError(w, r, http.StatusInternalServerError, msgInternalError)
		return
	}

	signature := r.Header.Get(external.SignatureHeader)
	signed := signature != ""
	switch {
	case signed && !h.verifier.Verify(payload, signature, h.cfg.Secret):
		h.logger.WarnContext(ctx, "webhook signature verification failed", "code", string(errInvalidSignature.Code))
		h.count(labelUnknown, "invalid_signature")
		rejectError(w, r, errInvalidSignature)
		return
	case !signed && h.cfg.RequireSignature:
		h.logger.WarnContext(ctx, "unsigned webhook rejected", "code", string(errMissingSignature.Code))
		h.count(labelUnknown, "missing_signature")
		rejectError(w, r, errMissingSignature)
		return
	case !signed:
		h.logger.WarnContext(ctx, "accepting unsigned webhook")
	}

	var event yampiWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.WarnContext(ctx, "invalid webhook JSON", "error", err)
		h.count(labelUnknown, "bad_request")
		flatError(w, r, http.StatusInternalServerError, msgInternalError)
		return
	}

	deliveryID := h.record(ctx, &types.WebhookDelivery{
		Provider:       webhookProvider,
		EventType:      event.Event,
		OrderID:        event.Order.ID.String(),
		SignatureValid: signed,
		Payload:        payload,
	})

	reply, err := h.dispatch(ctx, event)
	h.markProcessed(ctx, deliveryID, err)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook processing failed",
			"event", string(event.Event),
			"order_id", event.Order.ID.String(),
			"error", err,
		)
		h.count(eventLabel(event.Event), "error")
		flatError(w, r, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.count(eventLabel(event.Event), "ok")
	core.JSON(w, r, http.StatusOK, reply)
}

func (h *YampiWebhookHandler) dispatch(ctx context.Context, event yampiWebhookEvent) (webhookReply, error) {
	processed := webhookReply{Status: "success", Message: msgEventProcessed}

	switch event.Event {
	case types.EventOrderPaid:
		res, err := h.reconciler.ConfirmPaid(ctx, event.Order.paidOrder())
		if err != nil {
			return webhookReply{}, err
		}
		if res.Outcome == billing.OutcomeNoItems {
			return processed, nil
		}
		return webhookReply{
			Status:    "success",
			Message:   msgCustomerCreated,
			ClienteID: res.Customer.ID,
			Plano:     res.PlanName,
		}, nil

	case types.EventOrderCancelled:
		found, err := h.reconciler.Cancel(ctx, event.Order.ID.String())
		if err != nil {
			return webhookReply{}, err
		}
		if found {
			return webhookReply{Status: "success", Message: msgSubscriptionDone}, nil
		}
		return processed, nil

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event", "event", string(event.Event))
		return processed, nil
	}
}

func (h *YampiWebhookHandler) record(ctx context.Context, d *types.WebhookDelivery) int64 {
	if h.deliveries == nil {
		return 0
	}
	id, err := h.deliveries.Record(ctx, d)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record webhook delivery",
			"event", string(d.EventType),
			"order_id", d.OrderID,
			"error", err,
		)
		return 0
	}
	return id
}

func (h *YampiWebhookHandler) markProcessed(ctx context.Context, id int64, procErr error) {
	if h.deliveries == nil || id == 0 {
		return
	}
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	// The request context may already be cancelled when processing failed.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.deliveries.MarkProcessed(markCtx, id, msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to mark webhook delivery processed",
			"delivery_id", id,
			"error", err,
		)
	}
}

func (h *YampiWebhookHandler) count(event, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(event, outcome)
	}
}
