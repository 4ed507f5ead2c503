package db

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"aigrowth/internal/types"
)

var subscriptionColumns = []string{
	"id", "customer_id", "plan_id", "start_at", "end_at", "status", "amount_paid",
	"COALESCE(payment_method, '')", "COALESCE(external_order_id, '')", "upsells",
	"created_at", "updated_at",
}

// SubscriptionRepository persists the local mirror of provider orders.
// external_order_id is unique when present.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository binds the repository to a pool or transaction.
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.PlanID, &s.StartAt, &s.EndAt, &s.Status, &s.AmountPaid,
		&s.PaymentMethod, &s.ExternalOrderID, &s.Upsells, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a subscription and fills in ID and timestamps.
// A duplicate external order id yields conflict_order_id_exists.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *types.Subscription) error {
	var orderID *string
	if sub.ExternalOrderID != "" {
		orderID = &sub.ExternalOrderID
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO subscriptions
		   (customer_id, plan_id, start_at, end_at, status, amount_paid,
		    payment_method, external_order_id, upsells, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 ON CONFLICT (external_order_id) WHERE external_order_id IS NOT NULL DO NOTHING
		 RETURNING id, created_at, updated_at`,
		sub.CustomerID, sub.PlanID, sub.StartAt, sub.EndAt, sub.Status, sub.AmountPaid,
		sub.PaymentMethod, orderID, sub.Upsells,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictOrderID, "subscription already exists for order", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create subscription", err)
	}
	return nil
}

// GetByOrderID returns the subscription mirroring a provider order. With
// forUpdate the row stays locked until the surrounding transaction ends.
func (r *SubscriptionRepository) GetByOrderID(ctx context.Context, orderID string, forUpdate bool) (*types.Subscription, error) {
	b := psql.Select(subscriptionColumns...).From("subscriptions").
		Where(sq.Eq{"external_order_id": orderID})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to build subscription query", err)
	}

	s, err := scanSubscription(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get subscription", err)
	}
	return s, nil
}

// ListByCustomer returns a customer's subscriptions, newest first.
func (r *SubscriptionRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*types.Subscription, error) {
	query, args, err := psql.Select(subscriptionColumns...).From("subscriptions").
		Where(sq.Eq{"customer_id": customerID}).
		OrderBy("created_at DESC", "id DESC").ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to build subscription list query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscriptions", err)
	}
	defer rows.Close()

	var subs []*types.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan subscription", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate subscriptions", err)
	}
	return subs, nil
}

// Transition describes an in-place status change. Nil fields are left as-is.
type Transition struct {
	From          types.SubscriptionStatus
	To            types.SubscriptionStatus
	AmountPaid    *float64
	PaymentMethod *types.PaymentMethod
	PlanID        *int64
	EndAt         *time.Time
}

// Transition moves a subscription from t.From to t.To. The update is
// guarded on the current status so a concurrent writer cannot be
// overwritten; losing that race yields conflict_invalid_status_transition.
func (r *SubscriptionRepository) Transition(ctx context.Context, id int64, t Transition) error {
	if !types.CanTransition(t.From, t.To) {
		return types.NewAppError(types.ErrCodeConflictTransition,
			"cannot move subscription from "+string(t.From)+" to "+string(t.To), nil)
	}

	b := psql.Update("subscriptions").
		Set("status", t.To).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": t.From})
	if t.AmountPaid != nil {
		b = b.Set("amount_paid", *t.AmountPaid)
	}
	if t.PaymentMethod != nil {
		b = b.Set("payment_method", *t.PaymentMethod)
	}
	if t.PlanID != nil {
		b = b.Set("plan_id", *t.PlanID)
	}
	if t.EndAt != nil {
		b = b.Set("end_at", *t.EndAt)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to build subscription update", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictTransition,
			"subscription is no longer "+string(t.From), nil)
	}
	return nil
}
