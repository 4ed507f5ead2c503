package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigrowth/internal/types"
)

func paidOrder(orderID string) PaidOrder {
	return PaidOrder{
		OrderID:  orderID,
		Customer: types.CustomerInput{Name: "Ana", Email: "a@b.com", Phone: "+5511988887777"},
		SKUs:     []string{SKUAcceleration},
		Total:    7164,
	}
}

func TestConfirmPaid_CreatesActiveSubscription(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	res, err := r.ConfirmPaid(context.Background(), paidOrder("ord_1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, PlanAcceleration, res.PlanName)

	data := store.snapshot()
	require.Len(t, data.customers, 1)
	assert.Equal(t, "a@b.com", data.customers[0].Email)
	assert.Equal(t, types.NotInformedCompany, data.customers[0].Company)
	require.Len(t, data.plans, 1)
	assert.Equal(t, PlanAcceleration, data.plans[0].Name)
	assert.Equal(t, 7164.0, data.plans[0].Price)
	require.Len(t, data.subscriptions, 1)
	sub := data.subscriptions[0]
	assert.Equal(t, types.SubStatusActive, sub.Status)
	assert.Equal(t, 7164.0, sub.AmountPaid)
	assert.Equal(t, types.PaymentMethodCard, sub.PaymentMethod)
	assert.Equal(t, res.Customer.ID, sub.CustomerID)
}

func TestConfirmPaid_ReplayIsIdempotent(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	_, err := r.ConfirmPaid(context.Background(), paidOrder("ord_1"))
	require.NoError(t, err)
	res, err := r.ConfirmPaid(context.Background(), paidOrder("ord_1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeReplayed, res.Outcome)
	data := store.snapshot()
	assert.Len(t, data.subscriptions, 1, "replayed order.paid must not duplicate the subscription")
	assert.Len(t, data.customers, 1)
}

func TestConfirmPaid_PromotesProcessingAttempt(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	_, err := r.RecordPaymentAttempt(context.Background(), PaymentAttempt{
		Customer:     types.CustomerInput{Name: "Ana", Email: "a@b.com"},
		ProductCode:  "aceleracao",
		OrderID:      "ord_9",
		TotalMonthly: 597,
	})
	require.NoError(t, err)

	order := paidOrder("ord_9")
	order.PaymentMethod = "pix"
	res, err := r.ConfirmPaid(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, OutcomePromoted, res.Outcome)
	data := store.snapshot()
	require.Len(t, data.subscriptions, 1)
	assert.Equal(t, types.SubStatusActive, data.subscriptions[0].Status)
	assert.Equal(t, 7164.0, data.subscriptions[0].AmountPaid)
	assert.Equal(t, types.PaymentMethod("pix"), data.subscriptions[0].PaymentMethod)
}

func TestConfirmPaid_KeepsOrderOwnerWhenEmailDiffers(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	attempt, err := r.RecordPaymentAttempt(context.Background(), PaymentAttempt{
		Customer:     types.CustomerInput{Name: "Ana", Email: "Ana@B.com"},
		ProductCode:  "aceleracao",
		OrderID:      "ord_1",
		TotalMonthly: 597,
	})
	require.NoError(t, err)

	res, err := r.ConfirmPaid(context.Background(), paidOrder("ord_1"))
	require.NoError(t, err)

	assert.Equal(t, OutcomePromoted, res.Outcome)
	assert.Equal(t, attempt.CustomerID, res.Customer.ID)
	assert.Equal(t, "Ana@B.com", res.Customer.Email)
	data := store.snapshot()
	assert.Len(t, data.customers, 1, "no second customer for an already mirrored order")
	require.Len(t, data.subscriptions, 1)
	assert.Equal(t, res.Customer.ID, data.subscriptions[0].CustomerID)
}

func TestConfirmPaid_DoesNotReviveCancelled(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	_, err := r.ConfirmPaid(context.Background(), paidOrder("ord_1"))
	require.NoError(t, err)
	found, err := r.Cancel(context.Background(), "ord_1")
	require.NoError(t, err)
	require.True(t, found)

	res, err := r.ConfirmPaid(context.Background(), paidOrder("ord_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Equal(t, types.SubStatusCancelled, store.snapshot().subscriptions[0].Status)
}

func TestConfirmPaid_UnknownSKUDefaultsToStarter(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	order := paidOrder("ord_2")
	order.SKUs = []string{"999"}
	res, err := r.ConfirmPaid(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, PlanStarter, res.PlanName)
	assert.Equal(t, 3564.0, store.snapshot().plans[0].Price)
}

func TestConfirmPaid_NoItemsIsNoop(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	order := paidOrder("ord_3")
	order.SKUs = nil
	res, err := r.ConfirmPaid(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoItems, res.Outcome)
	assert.Empty(t, store.snapshot().customers)
}

func TestConfirmPaid_ReusesExistingCustomerAndPlan(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	first, err := r.ConfirmPaid(context.Background(), paidOrder("ord_a"))
	require.NoError(t, err)

	second := paidOrder("ord_b")
	second.Customer.Name = "Ana Maria"
	second.Customer.Company = "Acme"
	res, err := r.ConfirmPaid(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, first.Customer.ID, res.Customer.ID, "same email must resolve to the same customer")
	data := store.snapshot()
	assert.Len(t, data.customers, 1)
	assert.Equal(t, "Ana", data.customers[0].Name, "existing customers are not rewritten")
	assert.Len(t, data.plans, 1)
	assert.Len(t, data.subscriptions, 2)
}

func TestCancel_UnknownOrderIsSilentNoop(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	found, err := r.Cancel(context.Background(), "ord_missing")
	require.NoError(t, err)
	assert.False(t, found)

	data := store.snapshot()
	assert.Empty(t, data.subscriptions)
	assert.Empty(t, data.customers)
}

func TestCancel_SetsEndDate(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	_, err := r.ConfirmPaid(context.Background(), paidOrder("ord_1"))
	require.NoError(t, err)

	found, err := r.Cancel(context.Background(), "ord_1")
	require.NoError(t, err)
	assert.True(t, found)

	sub := store.snapshot().subscriptions[0]
	assert.Equal(t, types.SubStatusCancelled, sub.Status)
	assert.NotNil(t, sub.EndAt)

	found, err = r.Cancel(context.Background(), "ord_1")
	require.NoError(t, err)
	assert.True(t, found, "repeated cancellation is acknowledged")
}

func TestRecordPaymentAttempt_AmountAndUpsells(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, nil)

	sub, err := r.RecordPaymentAttempt(context.Background(), PaymentAttempt{
		Customer:     types.CustomerInput{Name: "Bia", Email: "bia@example.com", Company: "ignored"},
		ProductCode:  "starter",
		OrderID:      "ord_5",
		TotalMonthly: 297,
		TotalOneTime: 97,
		Upsells: types.UpsellList{
			{Code: "mapeamento_completo", Title: "Mapeamento", Price: 97, Recurrence: types.RecurrenceOneTime},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.SubStatusProcessing, sub.Status)
	assert.Equal(t, 3661.0, sub.AmountPaid)
	assert.Equal(t, types.PaymentMethodCard, sub.PaymentMethod)
	require.Len(t, sub.Upsells, 1)
	assert.Equal(t, "mapeamento_completo", sub.Upsells[0].Code)

	data := store.snapshot()
	assert.Equal(t, types.NotInformedCompany, data.customers[0].Company)
	assert.Equal(t, PlanStarter, data.plans[0].Name)
}

func TestRecordPaymentAttempt_RollsBackOnFailure(t *testing.T) {
	store := newMemStore()
	store.failSubscriptionCreate = types.NewAppError(types.ErrCodeInternalDB, "disk full", errors.New("disk full"))
	r := NewReconciler(store, nil)

	_, err := r.RecordPaymentAttempt(context.Background(), PaymentAttempt{
		Customer:    types.CustomerInput{Email: "c@d.com"},
		ProductCode: "crescimento",
		OrderID:     "ord_6",
	})
	require.Error(t, err)

	data := store.snapshot()
	assert.Empty(t, data.customers, "customer insert must roll back with the subscription")
	assert.Empty(t, data.plans)
}
