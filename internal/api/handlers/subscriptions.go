package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"aigrowth/internal/core"
	"aigrowth/internal/types"
)

// SubscriptionReader is the read side of the subscription store.
type SubscriptionReader interface {
	GetByOrderID(ctx context.Context, orderID string, forUpdate bool) (*types.Subscription, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]*types.Subscription, error)
}

// CustomerReader loads a customer by id.
type CustomerReader interface {
	GetByID(ctx context.Context, id int64) (*types.Customer, error)
}

// SubscriptionsHandler exposes the local mirror for operator lookups.
type SubscriptionsHandler struct {
	subs      SubscriptionReader
	customers CustomerReader
	logger    *slog.Logger
}

// NewSubscriptionsHandler builds the handler. A nil logger uses slog.Default.
func NewSubscriptionsHandler(subs SubscriptionReader, customers CustomerReader, logger *slog.Logger) *SubscriptionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionsHandler{subs: subs, customers: customers, logger: logger}
}

// RegisterRoutes mounts the lookups under the /v1 group.
func (h *SubscriptionsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/subscriptions/{orderID}", h.GetByOrder)
	r.Get("/customers/{customerID}/subscriptions", h.ListForCustomer)
}

// GetByOrder returns the subscription mirrored for a provider order id.
func (h *SubscriptionsHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subs.GetByOrderID(r.Context(), chi.URLParam(r, "orderID"), false)
	if err != nil {
		h.logError(r, "subscription lookup failed", err)
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sub})
}

type customerSubscriptions struct {
	Customer      *types.Customer       `json:"cliente"`
	Subscriptions []*types.Subscription `json:"assinaturas"`
}

// ListForCustomer returns a customer with all of its subscriptions.
func (h *SubscriptionsHandler) ListForCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil || id <= 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPayload, "customer id must be a positive integer", err))
		return
	}

	customer, err := h.customers.GetByID(r.Context(), id)
	if err != nil {
		h.logError(r, "customer lookup failed", err)
		core.Error(w, r, err)
		return
	}
	subs, err := h.subs.ListByCustomer(r.Context(), id)
	if err != nil {
		h.logError(r, "subscription listing failed", err)
		core.Error(w, r, err)
		return
	}
	if subs == nil {
		subs = []*types.Subscription{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: customerSubscriptions{Customer: customer, Subscriptions: subs}})
}

func (h *SubscriptionsHandler) logError(r *http.Request, msg string, err error) {
	if types.HasCode(err, types.ErrCodeNotFoundSubscription) || types.HasCode(err, types.ErrCodeNotFoundCustomer) {
		return
	}
	h.logger.ErrorContext(r.Context(), msg, "error", err)
}
