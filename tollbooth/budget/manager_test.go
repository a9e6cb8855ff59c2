package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(defaultBudget float64) *Manager {
	return New(defaultBudget, NewAtlasClient(noAtlasConfig()), nil, nil)
}

func TestManager_HasBudget_LazilyCreatesWithDefault(t *testing.T) {
	m := newTestManager(5.0)
	assert.True(t, m.HasBudget("alice"))
	assert.Equal(t, 5.0, m.GetBalance("alice"))
	assert.Equal(t, 1, m.BudgetsCount())
}

func TestManager_Deduct_SubtractsBalanceAndDelta(t *testing.T) {
	m := newTestManager(5.0)
	require.True(t, m.HasBudget("alice"))

	m.Deduct("alice", 1.25)
	assert.InDelta(t, 3.75, m.GetBalance("alice"), 1e-9)

	v, ok := m.entries.Load("alice")
	require.True(t, ok)
	assert.InDelta(t, -1.25, v.(*Entry).Delta.Load(), 1e-9)
}

func TestManager_Deduct_NoopForUnknownUser(t *testing.T) {
	m := newTestManager(5.0)
	m.Deduct("ghost", 1.0)
	assert.Equal(t, 0, m.BudgetsCount())
}

func TestManager_Credit_AddsToExistingEntry(t *testing.T) {
	m := newTestManager(5.0)
	require.True(t, m.HasBudget("alice"))

	m.Credit("alice", 2.0)
	assert.InDelta(t, 7.0, m.GetBalance("alice"), 1e-9)
}

func TestManager_Credit_LazilyCreatesWithDefaultPlusAmount(t *testing.T) {
	m := newTestManager(5.0)
	m.Credit("bob", 3.0)
	assert.InDelta(t, 8.0, m.GetBalance("bob"), 1e-9)
}

func TestManager_SetBudget_ZeroesDelta(t *testing.T) {
	m := newTestManager(5.0)
	require.True(t, m.HasBudget("alice"))
	m.Deduct("alice", 2.0)

	m.SetBudget("alice", 10.0)
	assert.Equal(t, 10.0, m.GetBalance("alice"))

	v, ok := m.entries.Load("alice")
	require.True(t, ok)
	assert.Equal(t, 0.0, v.(*Entry).Delta.Load())
}

func TestManager_HasBudget_FalseWhenExhausted(t *testing.T) {
	m := newTestManager(1.0)
	require.True(t, m.HasBudget("alice"))
	m.Deduct("alice", 1.0)
	assert.False(t, m.HasBudget("alice"))
}
