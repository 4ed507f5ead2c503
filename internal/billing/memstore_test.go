package billing

import (
	"context"
	"sync"

	"aigrowth/internal/db"
	"aigrowth/internal/types"
)

// memStore is an in-memory UnitOfWork. Each InTx works on a copy of the data
// that replaces the committed state only when fn succeeds.
type memStore struct {
	mu   sync.Mutex
	data memData

	failSubscriptionCreate error
}

type memData struct {
	customers     []types.Customer
	plans         []types.Plan
	subscriptions []types.Subscription
}

func (d memData) clone() memData {
	return memData{
		customers:     append([]types.Customer(nil), d.customers...),
		plans:         append([]types.Plan(nil), d.plans...),
		subscriptions: append([]types.Subscription(nil), d.subscriptions...),
	}
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) InTx(_ context.Context, fn func(Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{data: m.data.clone(), failSubscriptionCreate: m.failSubscriptionCreate}
	if err := fn(Stores{Customers: memCustomers{tx}, Plans: memPlans{tx}, Subscriptions: memSubs{tx}}); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

func (m *memStore) snapshot() memData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.clone()
}

type memTx struct {
	data                   memData
	failSubscriptionCreate error
}

type memCustomers struct{ tx *memTx }

func (m memCustomers) GetByEmail(_ context.Context, email string) (*types.Customer, error) {
	t := m.tx
	for i := range t.data.customers {
		if t.data.customers[i].Email == email {
			c := t.data.customers[i]
			return &c, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
}

func (m memCustomers) GetByID(_ context.Context, id int64) (*types.Customer, error) {
	for _, c := range m.tx.data.customers {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
}

func (m memCustomers) Create(_ context.Context, in types.CustomerInput) (*types.Customer, error) {
	t := m.tx
	for _, c := range t.data.customers {
		if c.Email == in.Email {
			return nil, types.NewAppError(types.ErrCodeConflictEmail, "customer email already registered", nil)
		}
	}
	company := in.Company
	if company == "" {
		company = types.NotInformedCompany
	}
	c := types.Customer{
		ID:      int64(len(t.data.customers) + 1),
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Company: company,
		Active:  true,
	}
	t.data.customers = append(t.data.customers, c)
	return &c, nil
}

type memPlans struct{ tx *memTx }

func (m memPlans) GetByName(_ context.Context, name string) (*types.Plan, error) {
	t := m.tx
	for i := range t.data.plans {
		if t.data.plans[i].Name == name {
			p := t.data.plans[i]
			return &p, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
}

func (m memPlans) Create(_ context.Context, plan types.Plan) (*types.Plan, error) {
	t := m.tx
	for _, p := range t.data.plans {
		if p.Name == plan.Name {
			return nil, types.NewAppError(types.ErrCodeConflictPlanName, "plan name already registered", nil)
		}
	}
	plan.ID = int64(len(t.data.plans) + 1)
	t.data.plans = append(t.data.plans, plan)
	return &plan, nil
}

type memSubs struct{ tx *memTx }

func (s memSubs) Create(_ context.Context, sub *types.Subscription) error {
	if s.tx.failSubscriptionCreate != nil {
		return s.tx.failSubscriptionCreate
	}
	for _, existing := range s.tx.data.subscriptions {
		if sub.ExternalOrderID != "" && existing.ExternalOrderID == sub.ExternalOrderID {
			return types.NewAppError(types.ErrCodeConflictOrderID, "subscription already exists for order", nil)
		}
	}
	sub.ID = int64(len(s.tx.data.subscriptions) + 1)
	s.tx.data.subscriptions = append(s.tx.data.subscriptions, *sub)
	return nil
}

func (s memSubs) GetByOrderID(_ context.Context, orderID string, _ bool) (*types.Subscription, error) {
	for i := range s.tx.data.subscriptions {
		if s.tx.data.subscriptions[i].ExternalOrderID == orderID {
			sub := s.tx.data.subscriptions[i]
			return &sub, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
}

func (s memSubs) Transition(_ context.Context, id int64, t db.Transition) error {
	if !types.CanTransition(t.From, t.To) {
		return types.NewAppError(types.ErrCodeConflictTransition, "invalid transition", nil)
	}
	for i := range s.tx.data.subscriptions {
		sub := &s.tx.data.subscriptions[i]
		if sub.ID != id || sub.Status != t.From {
			continue
		}
		sub.Status = t.To
		if t.AmountPaid != nil {
			sub.AmountPaid = *t.AmountPaid
		}
		if t.PaymentMethod != nil {
			sub.PaymentMethod = *t.PaymentMethod
		}
		if t.PlanID != nil {
			sub.PlanID = *t.PlanID
		}
		if t.EndAt != nil {
			end := *t.EndAt
			sub.EndAt = &end
		}
		return nil
	}
	return types.NewAppError(types.ErrCodeConflictTransition, "subscription moved", nil)
}
