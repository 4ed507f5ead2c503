package billing

import (
	"context"
	"log/slog"

	"aigrowth/internal/types"
)

// PlanCatalog is the plan persistence behind the catalog endpoints.
type PlanCatalog interface {
	List(ctx context.Context, activeOnly bool) ([]*types.Plan, error)
	Seed(ctx context.Context, plans []types.Plan) (int, error)
}

// PlanService exposes the sellable catalog.
type PlanService struct {
	catalog PlanCatalog
	logger  *slog.Logger
}

// NewPlanService returns a PlanService. A nil logger uses slog.Default.
func NewPlanService(catalog PlanCatalog, logger *slog.Logger) *PlanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanService{catalog: catalog, logger: logger}
}

// ActivePlans lists plans currently offered, cheapest first.
func (s *PlanService) ActivePlans(ctx context.Context) ([]*types.Plan, error) {
	plans, err := s.catalog.List(ctx, true)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []*types.Plan{}
	}
	return plans, nil
}

// SeedDefaults writes DefaultPlans into an empty catalog and reports how
// many plans were inserted.
func (s *PlanService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.catalog.Seed(ctx, DefaultPlans())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "plan catalog seeded", "count", n)
	}
	return n, nil
}
