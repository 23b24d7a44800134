package flowplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBindings() []StageBinding {
	return []StageBinding{
		{Kind: "identification", Name: "login-identification"},
		{Kind: "password", Name: "login-password"},
		{Kind: "email", Name: "verify-email"},
	}
}

func TestNewPlan(t *testing.T) {
	t.Run("StartsAtFirstStage", func(t *testing.T) {
		plan := NewPlan("test-flow", testBindings(), nil)

		binding, ok := plan.Current()
		require.True(t, ok)
		assert.Equal(t, "login-identification", binding.Name)
		assert.False(t, plan.Completed())
	})

	t.Run("EmptyBindingsIsCompleted", func(t *testing.T) {
		plan := NewPlan("empty-flow", nil, nil)

		_, ok := plan.Current()
		assert.False(t, ok)
		assert.True(t, plan.Completed())
	})

	t.Run("CopiesInitialContext", func(t *testing.T) {
		initial := map[string]interface{}{"pending_user": "abc"}
		plan := NewPlan("test-flow", testBindings(), initial)

		initial["pending_user"] = "changed"
		assert.Equal(t, "abc", plan.Context["pending_user"])
	})
}

func TestPlanAdvance(t *testing.T) {
	plan := NewPlan("test-flow", testBindings(), nil)

	plan.Advance()
	binding, ok := plan.Current()
	require.True(t, ok)
	assert.Equal(t, "login-password", binding.Name)

	plan.Advance()
	binding, ok = plan.Current()
	require.True(t, ok)
	assert.Equal(t, "verify-email", binding.Name)

	plan.Advance()
	_, ok = plan.Current()
	assert.False(t, ok)
	assert.True(t, plan.Completed())
	assert.Equal(t, CursorCompleted, plan.Cursor)

	// Advancing a completed plan stays completed
	plan.Advance()
	assert.True(t, plan.Completed())
}

func TestPlanSnapshotRoundTrip(t *testing.T) {
	plan := NewPlan("test-flow", testBindings(), map[string]interface{}{
		ContextPendingUser: "7f9c36f1-0000-0000-0000-000000000001",
		"email_sent":       true,
	})
	plan.Advance()

	data, err := plan.Snapshot()
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)

	assert.Equal(t, plan.FlowSlug, restored.FlowSlug)
	assert.Equal(t, plan.Cursor, restored.Cursor)
	assert.Equal(t, plan.Bindings, restored.Bindings)
	assert.Equal(t, "7f9c36f1-0000-0000-0000-000000000001", restored.PendingUserID())
	assert.Equal(t, true, restored.Context["email_sent"])
}

func TestRestore(t *testing.T) {
	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := Restore([]byte("not json"))
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("UnsupportedVersion", func(t *testing.T) {
		_, err := Restore([]byte(`{"version": 99, "flow_slug": "x", "cursor": 0}`))
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("NilContextBecomesEmptyMap", func(t *testing.T) {
		restored, err := Restore([]byte(`{"version": 1, "flow_slug": "x", "cursor": 0}`))
		require.NoError(t, err)
		require.NotNil(t, restored.Context)

		restored.Context["k"] = "v"
		assert.Equal(t, "v", restored.Context["k"])
	})
}

func TestPlanIsRestored(t *testing.T) {
	plan := NewPlan("test-flow", testBindings(), nil)
	assert.False(t, plan.IsRestored())

	plan.Context[ContextIsRestored] = true
	assert.True(t, plan.IsRestored())

	plan.Context[ContextIsRestored] = "yes"
	assert.False(t, plan.IsRestored())
}

func TestPlanner(t *testing.T) {
	planner := NewPlanner(FlowDefinition{
		Slug:     "default-authentication",
		Title:    "Sign in",
		Bindings: testBindings(),
	})

	t.Run("PlanKnownFlow", func(t *testing.T) {
		plan, err := planner.Plan("default-authentication", map[string]interface{}{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, "default-authentication", plan.FlowSlug)
		assert.Len(t, plan.Bindings, 3)
		assert.Equal(t, "v", plan.Context["k"])
	})

	t.Run("UnknownFlow", func(t *testing.T) {
		_, err := planner.Plan("missing", nil)
		assert.ErrorIs(t, err, ErrUnknownFlow)
	})
}
