package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigrowth/internal/types"
)

type fakeCatalog struct {
	plans    []*types.Plan
	listErr  error
	seeded   []types.Plan
	inserted int
}

func (f *fakeCatalog) List(_ context.Context, activeOnly bool) ([]*types.Plan, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*types.Plan
	for _, p := range f.plans {
		if !activeOnly || p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Seed(_ context.Context, plans []types.Plan) (int, error) {
	f.seeded = plans
	return f.inserted, nil
}

func TestActivePlans_FiltersInactive(t *testing.T) {
	cat := &fakeCatalog{plans: []*types.Plan{
		{ID: 1, Name: PlanStarter, Active: true},
		{ID: 2, Name: "Legado", Active: false},
	}}
	plans, err := NewPlanService(cat, nil).ActivePlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, PlanStarter, plans[0].Name)
}

func TestActivePlans_EmptyIsNotNil(t *testing.T) {
	plans, err := NewPlanService(&fakeCatalog{}, nil).ActivePlans(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, plans)
	assert.Empty(t, plans)
}

func TestActivePlans_Error(t *testing.T) {
	_, err := NewPlanService(&fakeCatalog{listErr: errors.New("down")}, nil).ActivePlans(context.Background())
	assert.Error(t, err)
}

func TestSeedDefaults(t *testing.T) {
	cat := &fakeCatalog{inserted: 3}
	n, err := NewPlanService(cat, nil).SeedDefaults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, cat.seeded, 3)
	assert.Equal(t, PlanStarter, cat.seeded[0].Name)
}
