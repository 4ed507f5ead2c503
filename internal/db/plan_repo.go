package db

import (
	"context"
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"aigrowth/internal/types"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var planColumns = []string{
	"id", "name", "price", "COALESCE(description, '')", "benefits",
	"active_campaigns", "monthly_creatives", "reports", "support", "active",
}

// PlanRepository persists sellable plans. Name is unique.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository binds the repository to a pool or transaction.
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

func scanPlan(row pgx.Row) (*types.Plan, error) {
	var p types.Plan
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Description, &p.Benefits,
		&p.ActiveCampaigns, &p.MonthlyCreatives, &p.Reports, &p.Support, &p.Active,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByName returns the plan whose name matches exactly.
func (r *PlanRepository) GetByName(ctx context.Context, name string) (*types.Plan, error) {
	query, args, err := psql.Select(planColumns...).From("plans").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to build plan query", err)
	}

	p, err := scanPlan(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get plan by name", err)
	}
	return p, nil
}

// Create inserts a plan. Quota, report and support columns fall back to
// their table defaults when left zero. A duplicate name yields
// conflict_plan_name_exists.
func (r *PlanRepository) Create(ctx context.Context, plan types.Plan) (*types.Plan, error) {
	cols := []string{"name", "price", "description", "benefits", "active"}
	vals := []any{plan.Name, plan.Price, plan.Description, plan.Benefits, true}
	if plan.ActiveCampaigns > 0 {
		cols = append(cols, "active_campaigns")
		vals = append(vals, plan.ActiveCampaigns)
	}
	if plan.MonthlyCreatives > 0 {
		cols = append(cols, "monthly_creatives")
		vals = append(vals, plan.MonthlyCreatives)
	}
	if plan.Reports != "" {
		cols = append(cols, "reports")
		vals = append(vals, plan.Reports)
	}
	if plan.Support != "" {
		cols = append(cols, "support")
		vals = append(vals, plan.Support)
	}

	query, args, err := psql.Insert("plans").Columns(cols...).Values(vals...).
		Suffix("ON CONFLICT (name) DO NOTHING RETURNING " + strings.Join(planColumns, ", ")).ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to build plan insert", err)
	}

	p, err := scanPlan(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeConflictPlanName, "plan name already registered", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create plan", err)
	}
	return p, nil
}

// List returns plans ordered by price, optionally only active ones.
func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]*types.Plan, error) {
	b := psql.Select(planColumns...).From("plans").OrderBy("price ASC", "id ASC")
	if activeOnly {
		b = b.Where(sq.Eq{"active": true})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to build plan list query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", err)
	}
	defer rows.Close()

	var plans []*types.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate plans", err)
	}
	return plans, nil
}

// Seed inserts plans only when the table is empty and reports how many rows
// were written. Existing catalogs are never touched.
func (r *PlanRepository) Seed(ctx context.Context, plans []types.Plan) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM plans`).Scan(&count); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count plans", err)
	}
	if count > 0 || len(plans) == 0 {
		return 0, nil
	}

	b := psql.Insert("plans").Columns(
		"name", "price", "description", "benefits",
		"active_campaigns", "monthly_creatives", "reports", "support", "active",
	)
	for _, p := range plans {
		b = b.Values(p.Name, p.Price, p.Description, p.Benefits,
			p.ActiveCampaigns, p.MonthlyCreatives, p.Reports, p.Support, true)
	}
	query, args, err := b.Suffix("ON CONFLICT (name) DO NOTHING").ToSql()
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to build plan seed", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to seed plans", err)
	}
	return int(tag.RowsAffected()), nil
}
