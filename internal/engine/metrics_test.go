package engine

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toolbox/internal/ir"
)

func TestMetrics_RecordsOutcomes(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	a := item("A", 5, ir.StatusInStock)

	env.engine.AddItem(ctx, a, 3, "")
	env.engine.AddItem(ctx, a, 4, "")
	env.engine.AddItem(ctx, a, 1, "")
	env.engine.AddItem(ctx, item("B", 0, ir.StatusOutOfStock), 1, "")

	m := env.engine.metrics
	assert.Equal(t, 1.0, promtest.ToFloat64(m.mutations.WithLabelValues("add", outcomeSuccess)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.mutations.WithLabelValues("add", outcomePartial)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.mutations.WithLabelValues("add", outcomeRejected)))
	assert.Equal(t, 5.0, promtest.ToFloat64(m.items))

	env.backend.SetUnavailable(true)
	env.engine.RemoveItem(ctx, "A")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.mutations.WithLabelValues("remove", outcomeError)))

	env.backend.SetUnavailable(false)
	env.engine.CompleteCheckout(ctx)
	assert.Equal(t, 0.0, promtest.ToFloat64(m.items))
}

func TestMetrics_RegisteredOnRegistry(t *testing.T) {
	env := newTestEngine(t)
	env.engine.AddItem(context.Background(), item("A", 5, ir.StatusInStock), 1, "")

	families, err := env.registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["toolbox_cart_mutations_total"])
	assert.True(t, names["toolbox_cart_items"])
}

func TestMetrics_NilRegistererIsUnregistered(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(nil)
		NewMetrics(nil)
	})
}

func TestParseQuantityPolicy(t *testing.T) {
	p, err := ParseQuantityPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TrustCaller, p)

	p, err = ParseQuantityPolicy("clamp")
	require.NoError(t, err)
	assert.Equal(t, ClampToBalance, p)
	assert.Equal(t, "clamp", p.String())

	_, err = ParseQuantityPolicy("strict")
	assert.Error(t, err)
}
