package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pschleger/workflow-canvas-sub000/history"
	"github.com/pschleger/workflow-canvas-sub000/logging"
	"github.com/pschleger/workflow-canvas-sub000/storage"
	"github.com/pschleger/workflow-canvas-sub000/workflow"
)

func emailWorkflow() workflow.Workflow {
	return workflow.Workflow{
		Configuration: &workflow.Configuration{
			Name:         "email",
			InitialState: "pending",
			States: map[string]workflow.StateDefinition{
				"pending": {Transitions: []workflow.TransitionDefinition{
					{Name: "send", Next: "email-sent"},
					{Name: "fail", Next: "failed"},
				}},
				"email-sent": {Transitions: []workflow.TransitionDefinition{}},
				"failed":     {Transitions: []workflow.TransitionDefinition{}},
			},
		},
		Layout: &workflow.Layout{
			WorkflowID: "wf-email",
			States: []workflow.StateLayout{
				{ID: "pending", Position: workflow.Position{X: 0, Y: 0}},
				{ID: "email-sent", Position: workflow.Position{X: 200, Y: 0}},
				{ID: "failed", Position: workflow.Position{X: 200, Y: 150}},
			},
			Transitions: []workflow.TransitionLayout{
				{ID: "pending-0"},
				{ID: "pending-1", LabelPosition: &workflow.Position{X: 100, Y: 75}},
			},
		},
	}
}

func openSession(t *testing.T) (*Session, *history.Store) {
	t.Helper()
	timelines := history.NewStore(storage.NewMemoryStore(), nil)
	timelines.Init(context.Background())
	s := NewSession(timelines)
	require.NoError(t, s.Open(context.Background(), "wf-email", emailWorkflow()))
	return s, timelines
}

func layoutIDs(w workflow.Workflow) []string {
	ids := make([]string, 0, len(w.Layout.Transitions))
	for _, tl := range w.Layout.Transitions {
		ids = append(ids, tl.ID)
	}
	return ids
}

func stateLayoutIDs(w workflow.Workflow) []string {
	ids := make([]string, 0, len(w.Layout.States))
	for _, st := range w.Layout.States {
		ids = append(ids, st.ID)
	}
	return ids
}

func TestEditsRequireOpenWorkflow(t *testing.T) {
	s := NewSession(history.NewStore(nil, nil))
	err := s.AddState(context.Background(), "x", workflow.Position{})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotOpen, logging.ErrorCode(err))
	assert.False(t, s.Undo(context.Background()))
}

func TestOpenRejectsIncompleteWorkflow(t *testing.T) {
	s := NewSession(history.NewStore(nil, nil))
	err := s.Open(context.Background(), "wf", workflow.Workflow{Configuration: &workflow.Configuration{}})
	assert.Equal(t, ErrCodeIncompleteWorkflow, logging.ErrorCode(err))
}

func TestOpenRecordsInitialLoad(t *testing.T) {
	s, timelines := openSession(t)
	entries, cursor := timelines.Entries("wf-email")
	require.Len(t, entries, 1)
	assert.Equal(t, DescriptionInitialLoad, entries[0].Description)
	assert.Equal(t, history.Head, cursor)
	assert.False(t, s.CanUndo())
}

func TestDeleteStatePrunesLayoutAndUndoRestores(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)

	require.NoError(t, s.DeleteState(ctx, "email-sent"))

	w := s.Working()
	assert.NotContains(t, w.Configuration.States, "email-sent")
	assert.Equal(t, []workflow.TransitionDefinition{{Name: "fail", Next: "failed"}},
		w.Configuration.States["pending"].Transitions)
	assert.Equal(t, []string{"pending", "failed"}, stateLayoutIDs(w))
	assert.Equal(t, []string{"pending-0"}, layoutIDs(w), "the surviving transition is renumbered")
	assert.Equal(t, &workflow.Position{X: 100, Y: 75}, w.Layout.Transitions[0].LabelPosition)

	require.True(t, s.Undo(ctx))
	assert.True(t, workflow.Equal(emailWorkflow(), s.Working()))

	require.True(t, s.Redo(ctx))
	assert.NotContains(t, s.Working().Configuration.States, "email-sent")
}

func TestDeleteInitialStateReassigns(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)

	require.NoError(t, s.DeleteState(ctx, "pending"))
	w := s.Working()
	assert.Equal(t, "email-sent", w.Configuration.InitialState)
	assert.Empty(t, w.Layout.Transitions)
}

func TestDeleteUnknownStateRecordsNothing(t *testing.T) {
	ctx := context.Background()
	s, timelines := openSession(t)

	err := s.DeleteState(ctx, "nope")
	assert.Equal(t, workflow.ErrCodeUnknownState, logging.ErrorCode(err))
	entries, _ := timelines.Entries("wf-email")
	assert.Len(t, entries, 1)
}

func TestAddStateAndConnect(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)

	require.NoError(t, s.AddState(ctx, "archived", workflow.Position{X: 400, Y: 0}))
	err := s.AddState(ctx, "archived", workflow.Position{})
	assert.Equal(t, workflow.ErrCodeDuplicateState, logging.ErrorCode(err))

	id, err := s.Connect(ctx, "email-sent", "archived", "")
	require.NoError(t, err)
	assert.Equal(t, "email-sent-0", id)

	w := s.Working()
	assert.Equal(t, []workflow.TransitionDefinition{{Name: "archived", Next: "archived"}},
		w.Configuration.States["email-sent"].Transitions)
	assert.Contains(t, layoutIDs(w), "email-sent-0")

	_, err = s.Connect(ctx, "email-sent", "ghost", "x")
	assert.Equal(t, workflow.ErrCodeUnknownState, logging.ErrorCode(err))
}

func TestAddStateToEmptyConfiguration(t *testing.T) {
	ctx := context.Background()
	s := NewSession(history.NewStore(nil, nil))
	require.NoError(t, s.Open(ctx, "wf-new", workflow.Workflow{
		Configuration: &workflow.Configuration{Name: "new"},
		Layout:        &workflow.Layout{WorkflowID: "wf-new"},
	}))

	require.NoError(t, s.AddState(ctx, "start", workflow.Position{X: 1, Y: 2}))
	w := s.Working()
	assert.Equal(t, "start", w.Configuration.InitialState)
	assert.Equal(t, []string{"start"}, stateLayoutIDs(w))

	assert.Equal(t, ErrCodeInvalidStateID, logging.ErrorCode(s.AddState(ctx, " ", workflow.Position{})))
}

func TestDisconnectRenumbersLaterTransitions(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)

	require.NoError(t, s.Disconnect(ctx, "pending-0"))

	w := s.Working()
	assert.Equal(t, []workflow.TransitionDefinition{{Name: "fail", Next: "failed"}},
		w.Configuration.States["pending"].Transitions)
	require.Equal(t, []string{"pending-0"}, layoutIDs(w))
	assert.Equal(t, &workflow.Position{X: 100, Y: 75}, w.Layout.Transitions[0].LabelPosition)

	err := s.Disconnect(ctx, "pending-5")
	assert.Equal(t, ErrCodeUnknownTransition, logging.ErrorCode(err))
}

func TestDisconnectByTargetFormID(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)

	require.NoError(t, s.Disconnect(ctx, "pending-to-failed"))
	w := s.Working()
	assert.Equal(t, []workflow.TransitionDefinition{{Name: "send", Next: "email-sent"}},
		w.Configuration.States["pending"].Transitions)
	assert.Equal(t, []string{"pending-0"}, layoutIDs(w))
	assert.Nil(t, w.Layout.Transitions[0].LabelPosition)
}

func TestDisconnectByTargetFormIDKeepsRowForParallelTransition(t *testing.T) {
	ctx := context.Background()
	w := emailWorkflow()
	pending := w.Configuration.States["pending"]
	pending.Transitions = append(pending.Transitions, workflow.TransitionDefinition{Name: "resend", Next: "email-sent"})
	w.Configuration.States["pending"] = pending
	label := &workflow.Position{X: 40, Y: -20}
	w.Layout.Transitions = append(w.Layout.Transitions, workflow.TransitionLayout{ID: "pending-to-email-sent", LabelPosition: label})

	timelines := history.NewStore(nil, nil)
	s := NewSession(timelines)
	require.NoError(t, s.Open(ctx, "wf-email", w))

	require.NoError(t, s.Disconnect(ctx, "pending-to-email-sent"))

	got := s.Working()
	assert.Equal(t, []workflow.TransitionDefinition{
		{Name: "fail", Next: "failed"},
		{Name: "resend", Next: "email-sent"},
	}, got.Configuration.States["pending"].Transitions)
	tl, ok := got.Layout.TransitionLayout("pending-to-email-sent")
	require.True(t, ok, "row of the surviving parallel transition is kept")
	assert.Equal(t, label, tl.LabelPosition)

	require.NoError(t, s.Disconnect(ctx, "pending-to-email-sent"))
	_, ok = s.Working().Layout.TransitionLayout("pending-to-email-sent")
	assert.False(t, ok, "row goes with the last transition to its target")
}

func TestMoveStateAndLabel(t *testing.T) {
	ctx := context.Background()
	s, timelines := openSession(t)

	require.NoError(t, s.MoveState(ctx, "failed", workflow.Position{X: 5, Y: 6}))
	st, ok := s.Working().Layout.StateLayout("failed")
	require.True(t, ok)
	assert.Equal(t, workflow.Position{X: 5, Y: 6}, st.Position)

	require.NoError(t, s.MoveTransitionLabel(ctx, "pending-0", workflow.Position{X: 9, Y: 9}))
	tl, ok := s.Working().Layout.TransitionLayout("pending-0")
	require.True(t, ok)
	assert.Equal(t, &workflow.Position{X: 9, Y: 9}, tl.LabelPosition)

	assert.Equal(t, workflow.ErrCodeUnknownState, logging.ErrorCode(s.MoveState(ctx, "ghost", workflow.Position{})))
	assert.Equal(t, 2, timelines.UndoCount("wf-email"))
}

func TestReplaceConfigurationPrunesStaleLayout(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)

	imported := &workflow.Configuration{
		Name:         "email",
		InitialState: "pending",
		States: map[string]workflow.StateDefinition{
			"pending": {Transitions: []workflow.TransitionDefinition{{Name: "fail", Next: "failed"}}},
			"failed":  {Transitions: []workflow.TransitionDefinition{}},
		},
	}
	require.NoError(t, s.ReplaceConfiguration(ctx, imported))

	w := s.Working()
	assert.Equal(t, []string{"pending", "failed"}, stateLayoutIDs(w))
	assert.Equal(t, []string{"pending-0", "pending-1"}, layoutIDs(w), "ordinal ids with a known source survive")

	imported.Name = "mutated"
	assert.Equal(t, "email", s.Working().Configuration.Name)

	assert.Equal(t, ErrCodeIncompleteWorkflow, logging.ErrorCode(s.ReplaceConfiguration(ctx, nil)))
}

func TestWorkingReturnsCopy(t *testing.T) {
	s, _ := openSession(t)
	w := s.Working()
	w.Configuration.States["pending"].Transitions[0].Name = "changed"
	assert.Equal(t, "send", s.Working().Configuration.States["pending"].Transitions[0].Name)
}

func TestNewEditAfterUndoDropsRedo(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)

	require.NoError(t, s.MoveState(ctx, "failed", workflow.Position{X: 1}))
	require.NoError(t, s.MoveState(ctx, "failed", workflow.Position{X: 2}))
	require.True(t, s.Undo(ctx))
	require.True(t, s.CanRedo())

	require.NoError(t, s.MoveState(ctx, "failed", workflow.Position{X: 3}))
	assert.False(t, s.CanRedo())
	assert.False(t, s.Redo(ctx))

	require.True(t, s.Undo(ctx))
	st, _ := s.Working().Layout.StateLayout("failed")
	assert.Equal(t, 1.0, st.Position.X)
}

func TestDiagnosticsReflectWorkingCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := openSession(t)
	assert.False(t, workflow.HasErrors(s.Diagnostics()))

	require.NoError(t, s.AddState(ctx, "orphan", workflow.Position{}))
	diags := s.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Equal(t, "orphan", diags[len(diags)-1].StateID)
}
