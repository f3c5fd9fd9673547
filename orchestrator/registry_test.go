package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryByTriggerIsCaseInsensitive(t *testing.T) {
	r := NewWorkflowRegistry()
	r.Register(WorkflowDefinition{ID: "onboarding", Triggers: []string{"Get Started"}})

	matches := r.ByTrigger("i want to get started please")
	require.Len(t, matches, 1)
	require.Equal(t, "onboarding", matches[0].ID)
}

func TestRegistryByCategory(t *testing.T) {
	r := NewWorkflowRegistry()
	r.Register(WorkflowDefinition{ID: "a", Category: "support"})
	r.Register(WorkflowDefinition{ID: "b", Category: "sales"})

	matches := r.ByCategory("support")
	require.Len(t, matches, 1)
	require.Equal(t, "a", matches[0].ID)
}

func TestRegistryAllReturnsRegistrationOrder(t *testing.T) {
	r := NewWorkflowRegistry()
	r.Register(WorkflowDefinition{ID: "third"})
	r.Register(WorkflowDefinition{ID: "first"})
	r.Register(WorkflowDefinition{ID: "second"})

	var ids []string
	for i := 0; i < 5; i++ {
		got := r.All()
		require.Len(t, got, 3)
		ids = nil
		for _, def := range got {
			ids = append(ids, def.ID)
		}
		require.Equal(t, []string{"third", "first", "second"}, ids)
	}
}

func TestRegistryClearHasSize(t *testing.T) {
	r := NewWorkflowRegistry()
	r.Register(WorkflowDefinition{ID: "a"})
	require.True(t, r.Has("a"))
	require.Equal(t, 1, r.Size())

	r.Clear()
	require.False(t, r.Has("a"))
	require.Equal(t, 0, r.Size())
}
