package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aigrowth/internal/core"
	"aigrowth/internal/types"
)

// PlanCatalogService lists and seeds the plan catalog.
type PlanCatalogService interface {
	ActivePlans(ctx context.Context) ([]*types.Plan, error)
	SeedDefaults(ctx context.Context) (int, error)
}

// PlansHandler serves the plan catalog.
type PlansHandler struct {
	plans  PlanCatalogService
	logger *slog.Logger
}

// NewPlansHandler builds the handler. A nil logger uses slog.Default.
func NewPlansHandler(plans PlanCatalogService, logger *slog.Logger) *PlansHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlansHandler{plans: plans, logger: logger}
}

// RegisterRoutes mounts GET /plans and POST /plans/seed.
func (h *PlansHandler) RegisterRoutes(r chi.Router) {
	r.Get("/plans", h.List)
	r.Post("/plans/seed", h.Seed)
}

// List returns the active plans, cheapest first.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ActivePlans(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list plans", "error", err)
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: plans})
}

// Seed writes the default catalog when no plan exists yet.
func (h *PlansHandler) Seed(w http.ResponseWriter, r *http.Request) {
	n, err := h.plans.SeedDefaults(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to seed plans", "error", err)
		core.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if n > 0 {
		status = http.StatusCreated
	}
	core.JSON(w, r, status, core.APIResponse{Data: map[string]int{"inserted": n}})
}
