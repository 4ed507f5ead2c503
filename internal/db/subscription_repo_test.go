package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigrowth/internal/types"
)

var subscriptionRowColumns = []string{
	"id", "customer_id", "plan_id", "start_at", "end_at", "status", "amount_paid",
	"payment_method", "external_order_id", "upsells", "created_at", "updated_at",
}

func TestSubscriptionRepository_Create(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	now := time.Now().UTC()
	pool.ExpectQuery(`INSERT INTO subscriptions`).
		WithArgs(int64(1), int64(2), pgxmock.AnyArg(), pgxmock.AnyArg(), types.SubStatusProcessing,
			3661.0, types.PaymentMethodCard, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))

	sub := &types.Subscription{
		CustomerID:      1,
		PlanID:          2,
		StartAt:         now,
		Status:          types.SubStatusProcessing,
		AmountPaid:      3661,
		PaymentMethod:   types.PaymentMethodCard,
		ExternalOrderID: "ord_123",
	}
	require.NoError(t, NewSubscriptionRepository(pool).Create(context.Background(), sub))
	assert.Equal(t, int64(10), sub.ID)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestSubscriptionRepository_Create_DuplicateOrder(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery(`INSERT INTO subscriptions`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewSubscriptionRepository(pool).Create(context.Background(), &types.Subscription{ExternalOrderID: "ord_1"})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeConflictOrderID))
}

func TestSubscriptionRepository_GetByOrderID_ForUpdate(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	now := time.Now().UTC()
	pool.ExpectQuery(`FROM subscriptions WHERE external_order_id = \$1 FOR UPDATE`).
		WithArgs("ord_55").
		WillReturnRows(pgxmock.NewRows(subscriptionRowColumns).
			AddRow(int64(3), int64(1), int64(2), now, (*time.Time)(nil), types.SubStatusProcessing, 3661.0,
				types.PaymentMethodCard, "ord_55", []byte(`[{"code":"1","title":"Extra","price":97,"recurrence":"onetime"}]`),
				now, now))

	sub, err := NewSubscriptionRepository(pool).GetByOrderID(context.Background(), "ord_55", true)
	require.NoError(t, err)
	assert.Equal(t, types.SubStatusProcessing, sub.Status)
	require.Len(t, sub.Upsells, 1)
	assert.Equal(t, types.RecurrenceOneTime, sub.Upsells[0].Recurrence)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestSubscriptionRepository_GetByOrderID_NotFound(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery(`FROM subscriptions WHERE external_order_id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(subscriptionRowColumns))

	_, err = NewSubscriptionRepository(pool).GetByOrderID(context.Background(), "missing", false)
	assert.True(t, types.HasCode(err, types.ErrCodeNotFoundSubscription))
}

func TestSubscriptionRepository_Transition(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	amount := 3564.0
	method := types.PaymentMethodCard
	pool.ExpectExec(`UPDATE subscriptions SET status = \$1, updated_at = NOW\(\), amount_paid = \$2, payment_method = \$3 WHERE id = \$4 AND status = \$5`).
		WithArgs(types.SubStatusActive, amount, method, int64(3), types.SubStatusProcessing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = NewSubscriptionRepository(pool).Transition(context.Background(), 3, Transition{
		From:          types.SubStatusProcessing,
		To:            types.SubStatusActive,
		AmountPaid:    &amount,
		PaymentMethod: &method,
	})
	require.NoError(t, err)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestSubscriptionRepository_Transition_LostRace(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectExec(`UPDATE subscriptions`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewSubscriptionRepository(pool).Transition(context.Background(), 3, Transition{
		From: types.SubStatusActive,
		To:   types.SubStatusCancelled,
	})
	assert.True(t, types.HasCode(err, types.ErrCodeConflictTransition))
}

func TestSubscriptionRepository_Transition_Forbidden(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	err = NewSubscriptionRepository(pool).Transition(context.Background(), 3, Transition{
		From: types.SubStatusCancelled,
		To:   types.SubStatusActive,
	})
	assert.True(t, types.HasCode(err, types.ErrCodeConflictTransition))
	require.NoError(t, pool.ExpectationsWereMet())
}
