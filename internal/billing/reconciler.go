// Package billing turns checkout attempts and gateway notifications into
// local customer, plan and subscription state.
package billing

import (
	"context"
	"log/slog"
	"time"

	"aigrowth/internal/db"
	"aigrowth/internal/types"
)

// CustomerStore is the customer persistence used during reconciliation.
type CustomerStore interface {
	GetByEmail(ctx context.Context, email string) (*types.Customer, error)
	GetByID(ctx context.Context, id int64) (*types.Customer, error)
	Create(ctx context.Context, in types.CustomerInput) (*types.Customer, error)
}

// PlanStore is the plan persistence used during reconciliation.
type PlanStore interface {
	GetByName(ctx context.Context, name string) (*types.Plan, error)
	Create(ctx context.Context, plan types.Plan) (*types.Plan, error)
}

// SubscriptionStore is the subscription persistence used during reconciliation.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *types.Subscription) error
	GetByOrderID(ctx context.Context, orderID string, forUpdate bool) (*types.Subscription, error)
	Transition(ctx context.Context, id int64, t db.Transition) error
}

// Stores is one transaction's view of the data.
type Stores struct {
	Customers     CustomerStore
	Plans         PlanStore
	Subscriptions SubscriptionStore
}

// UnitOfWork runs fn atomically: every write made through the Stores commits
// together or not at all.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

type pgUnitOfWork struct {
	runner *db.TxRunner
}

// NewUnitOfWork adapts a db.TxRunner to UnitOfWork.
func NewUnitOfWork(runner *db.TxRunner) UnitOfWork {
	return pgUnitOfWork{runner: runner}
}

func (u pgUnitOfWork) InTx(ctx context.Context, fn func(Stores) error) error {
	return u.runner.InTx(ctx, func(r *db.Repositories) error {
		return fn(Stores{Customers: r.Customers, Plans: r.Plans, Subscriptions: r.Subscriptions})
	})
}

// PaymentAttempt is a card payment the provider accepted synchronously.
type PaymentAttempt struct {
	Customer     types.CustomerInput
	ProductCode  string
	OrderID      string
	TotalMonthly float64
	TotalOneTime float64
	Upsells      types.UpsellList
}

// Amount is the annualised recurring total plus one-time charges.
func (a PaymentAttempt) Amount() float64 {
	return a.TotalMonthly*12 + a.TotalOneTime
}

// PaidOrder is the content of an order.paid notification.
type PaidOrder struct {
	OrderID       string
	Customer      types.CustomerInput
	SKUs          []string
	Total         float64
	PaymentMethod string
}

// PaidOutcome says what ConfirmPaid did with the local mirror.
type PaidOutcome string

const (
	OutcomeCreated  PaidOutcome = "created"
	OutcomePromoted PaidOutcome = "promoted"
	OutcomeReplayed PaidOutcome = "replayed"
	OutcomeIgnored  PaidOutcome = "ignored_cancelled"
	OutcomeNoItems  PaidOutcome = "no_items"
)

// PaidResult reports the reconciled state of an order.paid event.
type PaidResult struct {
	Outcome      PaidOutcome
	Customer     *types.Customer
	PlanName     string
	Subscription *types.Subscription
}

// Reconciler owns the state machine that mirrors provider orders locally.
type Reconciler struct {
	uow    UnitOfWork
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler returns a Reconciler writing through uow. A nil logger uses
// slog.Default.
func NewReconciler(uow UnitOfWork, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{uow: uow, logger: logger, now: time.Now}
}

// RecordPaymentAttempt stores a processando subscription for an order the
// provider has accepted but not yet confirmed. If the confirmation webhook
// already created the row, that row is returned untouched.
func (r *Reconciler) RecordPaymentAttempt(ctx context.Context, a PaymentAttempt) (*types.Subscription, error) {
	var out *types.Subscription
	err := r.uow.InTx(ctx, func(s Stores) error {
		customer, err := upsertCustomer(ctx, s.Customers, types.CustomerInput{
			Name:  a.Customer.Name,
			Email: a.Customer.Email,
			Phone: a.Customer.Phone,
		})
		if err != nil {
			return err
		}
		plan, err := resolvePlan(ctx, s.Plans, PlanNameForProduct(a.ProductCode))
		if err != nil {
			return err
		}

		upsells := a.Upsells
		if upsells == nil {
			upsells = types.UpsellList{}
		}
		sub := &types.Subscription{
			CustomerID:      customer.ID,
			PlanID:          plan.ID,
			StartAt:         r.now().UTC(),
			Status:          types.SubStatusProcessing,
			AmountPaid:      a.Amount(),
			PaymentMethod:   types.PaymentMethodCard,
			ExternalOrderID: a.OrderID,
			Upsells:         upsells,
		}
		err = s.Subscriptions.Create(ctx, sub)
		if types.HasCode(err, types.ErrCodeConflictOrderID) {
			existing, getErr := s.Subscriptions.GetByOrderID(ctx, a.OrderID, false)
			if getErr != nil {
				return getErr
			}
			r.logger.InfoContext(ctx, "order already mirrored; keeping existing subscription",
				"order_id", a.OrderID,
				"status", existing.Status,
			)
			out = existing
			return nil
		}
		if err != nil {
			return err
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ConfirmPaid applies an order.paid notification. The subscription is
// upserted by external order id: processando and suspensa rows are promoted
// to ativa, ativa rows are left as they are (replay), cancelada rows are
// never revived. An existing row keeps its customer and that customer is
// reported. Without a matching row the customer is upserted by email and a
// new ativa subscription is created.
func (r *Reconciler) ConfirmPaid(ctx context.Context, o PaidOrder) (*PaidResult, error) {
	if len(o.SKUs) == 0 {
		return &PaidResult{Outcome: OutcomeNoItems}, nil
	}
	planName := PlanNameForSKU(o.SKUs[0])
	if _, known := skuPlans[o.SKUs[0]]; !known {
		r.logger.WarnContext(ctx, "unknown sku booked on default plan",
			"order_id", o.OrderID,
			"sku", o.SKUs[0],
			"plan", planName,
		)
	}
	method := types.PaymentMethod(o.PaymentMethod)
	if method == "" {
		method = types.PaymentMethodCard
	}

	var res *PaidResult
	err := r.uow.InTx(ctx, func(s Stores) error {
		plan, err := resolvePlan(ctx, s.Plans, planName)
		if err != nil {
			return err
		}

		if o.OrderID != "" {
			existing, err := s.Subscriptions.GetByOrderID(ctx, o.OrderID, true)
			switch {
			case err == nil:
				res, err = r.applyToExisting(ctx, s, existing, plan, o.Total, method)
				return err
			case !types.HasCode(err, types.ErrCodeNotFoundSubscription):
				return err
			}
		}

		customer, err := upsertCustomer(ctx, s.Customers, o.Customer)
		if err != nil {
			return err
		}
		sub := &types.Subscription{
			CustomerID:      customer.ID,
			PlanID:          plan.ID,
			StartAt:         r.now().UTC(),
			Status:          types.SubStatusActive,
			AmountPaid:      o.Total,
			PaymentMethod:   method,
			ExternalOrderID: o.OrderID,
			Upsells:         types.UpsellList{},
		}
		err = s.Subscriptions.Create(ctx, sub)
		if types.HasCode(err, types.ErrCodeConflictOrderID) {
			// A concurrent writer mirrored the order first.
			existing, getErr := s.Subscriptions.GetByOrderID(ctx, o.OrderID, true)
			if getErr != nil {
				return getErr
			}
			res, err = r.applyToExisting(ctx, s, existing, plan, o.Total, method)
			return err
		}
		if err != nil {
			return err
		}
		res = &PaidResult{
			Outcome:      OutcomeCreated,
			Customer:     customer,
			PlanName:     plan.Name,
			Subscription: sub,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "order paid reconciled",
		"order_id", o.OrderID,
		"outcome", string(res.Outcome),
		"customer_id", res.Customer.ID,
		"plan", res.PlanName,
	)
	return res, nil
}

// applyToExisting reconciles an order that already has a local row. The
// row's owner is reported, whatever email the notification carries, so no
// second customer is created for the same order.
func (r *Reconciler) applyToExisting(
	ctx context.Context,
	s Stores,
	sub *types.Subscription,
	plan *types.Plan,
	total float64,
	method types.PaymentMethod,
) (*PaidResult, error) {
	owner, err := s.Customers.GetByID(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	res := &PaidResult{Customer: owner, PlanName: plan.Name}
	if err := r.applyPaid(ctx, s, sub, plan, total, method, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Reconciler) applyPaid(
	ctx context.Context,
	s Stores,
	sub *types.Subscription,
	plan *types.Plan,
	total float64,
	method types.PaymentMethod,
	res *PaidResult,
) error {
	res.Subscription = sub
	switch sub.Status {
	case types.SubStatusActive:
		res.Outcome = OutcomeReplayed
		return nil
	case types.SubStatusCancelled:
		r.logger.WarnContext(ctx, "paid notification for cancelled subscription ignored",
			"order_id", sub.ExternalOrderID,
			"subscription_id", sub.ID,
		)
		res.Outcome = OutcomeIgnored
		return nil
	}

	err := s.Subscriptions.Transition(ctx, sub.ID, db.Transition{
		From:          sub.Status,
		To:            types.SubStatusActive,
		AmountPaid:    &total,
		PaymentMethod: &method,
		PlanID:        &plan.ID,
	})
	if err != nil {
		return err
	}
	sub.Status = types.SubStatusActive
	sub.AmountPaid = total
	sub.PaymentMethod = method
	sub.PlanID = plan.ID
	res.Outcome = OutcomePromoted
	return nil
}

// Cancel marks the subscription for orderID as cancelada. An unknown order
// is not an error and reports found=false.
func (r *Reconciler) Cancel(ctx context.Context, orderID string) (found bool, err error) {
	if orderID == "" {
		return false, nil
	}

	err = r.uow.InTx(ctx, func(s Stores) error {
		sub, err := s.Subscriptions.GetByOrderID(ctx, orderID, true)
		if types.HasCode(err, types.ErrCodeNotFoundSubscription) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		if sub.Status == types.SubStatusCancelled {
			return nil
		}
		endAt := r.now().UTC()
		return s.Subscriptions.Transition(ctx, sub.ID, db.Transition{
			From:  sub.Status,
			To:    types.SubStatusCancelled,
			EndAt: &endAt,
		})
	})
	if err != nil {
		return false, err
	}

	if found {
		r.logger.InfoContext(ctx, "subscription cancelled", "order_id", orderID)
	} else {
		r.logger.InfoContext(ctx, "cancellation for unknown order ignored", "order_id", orderID)
	}
	return found, nil
}

// upsertCustomer returns the customer with in.Email, creating it when
// absent. Existing customers are returned unchanged. Losing a creation race
// falls back to reading the winner.
func upsertCustomer(ctx context.Context, store CustomerStore, in types.CustomerInput) (*types.Customer, error) {
	c, err := store.GetByEmail(ctx, in.Email)
	if err == nil {
		return c, nil
	}
	if !types.HasCode(err, types.ErrCodeNotFoundCustomer) {
		return nil, err
	}

	c, err = store.Create(ctx, in)
	if types.HasCode(err, types.ErrCodeConflictEmail) {
		return store.GetByEmail(ctx, in.Email)
	}
	return c, err
}

// resolvePlan returns the plan called name, creating it at its fallback
// price when absent.
func resolvePlan(ctx context.Context, store PlanStore, name string) (*types.Plan, error) {
	p, err := store.GetByName(ctx, name)
	if err == nil {
		return p, nil
	}
	if !types.HasCode(err, types.ErrCodeNotFoundPlan) {
		return nil, err
	}

	p, err = store.Create(ctx, types.Plan{
		Name:        name,
		Price:       FallbackPrice(name),
		Description: "Plano " + name,
		Active:      true,
	})
	if types.HasCode(err, types.ErrCodeConflictPlanName) {
		return store.GetByName(ctx, name)
	}
	return p, err
}
