package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pschleger/workflow-canvas-sub000/logging"
	"github.com/pschleger/workflow-canvas-sub000/settings"
	"github.com/pschleger/workflow-canvas-sub000/storage"
	"github.com/pschleger/workflow-canvas-sub000/workflow"
)

type fixedDepth int

func (d fixedDepth) MaxDepth() int { return int(d) }

func fixedClock() func() time.Time {
	ts := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

// sample builds a workflow whose configuration name identifies it.
func sample(name string) workflow.Workflow {
	return workflow.Workflow{
		Configuration: &workflow.Configuration{
			Name:         name,
			InitialState: "pending",
			States: map[string]workflow.StateDefinition{
				"pending": {Transitions: []workflow.TransitionDefinition{
					{Name: "send", Next: "sent", Criterion: map[string]any{"op": "eq", "value": 1.0}},
				}},
				"sent": {},
			},
		},
		Layout: &workflow.Layout{
			WorkflowID: "wf-1",
			States: []workflow.StateLayout{
				{ID: "pending", Position: workflow.Position{X: 10, Y: 20}},
				{ID: "sent", Position: workflow.Position{X: 200, Y: 20}},
			},
			Transitions: []workflow.TransitionLayout{{ID: "pending-0"}},
		},
	}
}

func names(entries []workflow.Snapshot) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Workflow.Configuration.Name)
	}
	return out
}

func newStore(t *testing.T, backend storage.Store, depth DepthSource) *Store {
	t.Helper()
	s := NewStore(backend, depth, WithClock(fixedClock()))
	s.Init(context.Background())
	return s
}

func TestAddEntryStartsAtHead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryStore(), nil)

	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), "Initial load"))

	entries, cursor := s.Entries("wf-1")
	assert.Equal(t, []string{"A"}, names(entries))
	assert.Equal(t, Head, cursor)
	assert.Equal(t, "Initial load", entries[0].Description)
	assert.Equal(t, int64(1_700_000_001_000), entries[0].Timestamp)
}

func TestUndoNeedsTwoEntries(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)

	_, ok := s.Undo(ctx, "unknown")
	assert.False(t, ok)

	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), "a"))
	assert.False(t, s.CanUndo("wf-1"))
	_, ok = s.Undo(ctx, "wf-1")
	assert.False(t, ok)

	entries, cursor := s.Entries("wf-1")
	assert.Len(t, entries, 1)
	assert.Equal(t, Head, cursor)
}

func TestUndoRedoWalk(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, s.AddEntry(ctx, "wf-1", sample(name), name))
	}
	assert.Equal(t, 2, s.UndoCount("wf-1"))
	assert.Equal(t, 0, s.RedoCount("wf-1"))

	w, ok := s.Undo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "B", w.Configuration.Name)

	w, ok = s.Undo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "A", w.Configuration.Name)

	_, ok = s.Undo(ctx, "wf-1")
	assert.False(t, ok, "cursor at index 0 cannot go back")
	assert.Equal(t, 0, s.UndoCount("wf-1"))
	assert.Equal(t, 2, s.RedoCount("wf-1"))

	w, ok = s.Redo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "B", w.Configuration.Name)

	w, ok = s.Redo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "C", w.Configuration.Name)

	_, ok = s.Redo(ctx, "wf-1")
	assert.False(t, ok, "last entry has nothing to redo")
	_, cursor := s.Entries("wf-1")
	assert.Equal(t, 2, cursor, "cursor stays on the last index after redo")
}

func TestRedoAtHeadIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), "a"))
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("B"), "b"))

	_, ok := s.Redo(ctx, "wf-1")
	assert.False(t, ok)
	assert.False(t, s.CanRedo("wf-1"))
}

func TestAddEntryTruncatesBranch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, s.AddEntry(ctx, "wf-1", sample(name), name))
	}
	_, ok := s.Undo(ctx, "wf-1")
	require.True(t, ok)
	_, ok = s.Undo(ctx, "wf-1")
	require.True(t, ok)

	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("D"), "d"))

	entries, cursor := s.Entries("wf-1")
	assert.Equal(t, []string{"A", "D"}, names(entries))
	assert.Equal(t, Head, cursor)
	assert.False(t, s.CanRedo("wf-1"))
}

func TestDepthBoundEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, fixedDepth(3))
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.AddEntry(ctx, "wf-1", sample(fmt.Sprintf("E%d", i)), ""))
	}

	entries, _ := s.Entries("wf-1")
	assert.Equal(t, []string{"E2", "E3", "E4"}, names(entries))
	assert.Equal(t, 2, s.UndoCount("wf-1"))

	w, ok := s.Undo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "E3", w.Configuration.Name)
	w, ok = s.Undo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "E2", w.Configuration.Name)
	_, ok = s.Undo(ctx, "wf-1")
	assert.False(t, ok)
}

func TestDepthChangeAppliesOnNextAdd(t *testing.T) {
	ctx := context.Background()
	provider := settings.NewProvider(storage.NewMemoryStore())
	provider.Init(ctx)
	s := newStore(t, nil, provider)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.AddEntry(ctx, "wf-1", sample(fmt.Sprintf("E%d", i)), ""))
	}
	depth := 2
	provider.Update(ctx, settings.Patch{History: &settings.HistoryPatch{MaxDepth: &depth}})

	entries, _ := s.Entries("wf-1")
	assert.Len(t, entries, 5, "existing timeline is not trimmed until the next add")

	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("E6"), ""))
	entries, _ = s.Entries("wf-1")
	assert.Equal(t, []string{"E5", "E6"}, names(entries))
}

func TestSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)
	w := sample("A")
	require.NoError(t, s.AddEntry(ctx, "wf-1", w, "a"))
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("B"), "b"))

	// mutate the caller's copy after recording
	w.Configuration.Name = "mutated"
	w.Configuration.States["pending"].Transitions[0].Criterion["op"] = "ne"
	w.Layout.States[0].Position.X = 999

	got, ok := s.Undo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "A", got.Configuration.Name)
	assert.Equal(t, "eq", got.Configuration.States["pending"].Transitions[0].Criterion["op"])
	assert.Equal(t, 10.0, got.Layout.States[0].Position.X)

	// mutate the returned copy
	got.Layout.States[0].Position.X = -1
	entries, _ := s.Entries("wf-1")
	assert.Equal(t, 10.0, entries[0].Workflow.Layout.States[0].Position.X)
}

func TestAddEntryRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)

	err := s.AddEntry(ctx, "  ", sample("A"), "")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidWorkflowID, logging.ErrorCode(err))

	w := sample("A")
	w.Layout.States[0].Properties = map[string]any{"onClick": func() {}}
	err = s.AddEntry(ctx, "wf-1", w, "")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidSnapshot, logging.ErrorCode(err))
	assert.Empty(t, s.WorkflowIDs())
}

func TestTimelinesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), ""))
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("B"), ""))
	require.NoError(t, s.AddEntry(ctx, "wf-2", sample("X"), ""))

	assert.Equal(t, []string{"wf-1", "wf-2"}, s.WorkflowIDs())
	assert.True(t, s.CanUndo("wf-1"))
	assert.False(t, s.CanUndo("wf-2"))
}

func TestPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	s := newStore(t, backend, nil)
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), "a"))
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("B"), "b"))
	_, ok := s.Undo(ctx, "wf-1")
	require.True(t, ok)

	raw, ok, err := backend.Get(ctx, StorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	var record map[string]struct {
		Entries []struct {
			Timestamp   int64             `json:"timestamp"`
			Workflow    workflow.Workflow `json:"workflow"`
			Description string            `json:"description"`
		} `json:"entries"`
		CurrentIndex int `json:"currentIndex"`
	}
	require.NoError(t, json.Unmarshal(raw, &record))
	require.Contains(t, record, "wf-1")
	assert.Len(t, record["wf-1"].Entries, 2)
	assert.Equal(t, 0, record["wf-1"].CurrentIndex)
	assert.Equal(t, "b", record["wf-1"].Entries[1].Description)

	reloaded := newStore(t, backend, nil)
	assert.Equal(t, 1, reloaded.RedoCount("wf-1"))
	w, ok := reloaded.Redo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "B", w.Configuration.Name)
}

func TestInitToleratesCorruptRecord(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	require.NoError(t, backend.Set(ctx, StorageKey, []byte("[not json")))

	var logs bytes.Buffer
	s := NewStore(backend, nil, WithLogger(logging.NewConsole(&logs)))
	assert.NotPanics(t, func() { s.Init(ctx) })
	assert.Empty(t, s.WorkflowIDs())
	assert.Contains(t, logs.String(), "corrupt record")
}

func TestInitResetsOutOfRangeCursor(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	payload := `{"wf-1":{"entries":[{"timestamp":1,"workflow":{"configuration":null,"layout":null},"description":"a"}],"currentIndex":7},"wf-2":{"entries":[],"currentIndex":-1}}`
	require.NoError(t, backend.Set(ctx, StorageKey, []byte(payload)))

	s := newStore(t, backend, nil)
	assert.Equal(t, []string{"wf-1"}, s.WorkflowIDs())
	_, cursor := s.Entries("wf-1")
	assert.Equal(t, Head, cursor)
}

func TestInitDefaultsMissingCursorToHead(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	payload := `{"wf-1":{"entries":[` +
		`{"timestamp":1,"workflow":{"configuration":null,"layout":null},"description":"a"},` +
		`{"timestamp":2,"workflow":{"configuration":null,"layout":null},"description":"b"}]}}`
	require.NoError(t, backend.Set(ctx, StorageKey, []byte(payload)))

	s := newStore(t, backend, nil)
	_, cursor := s.Entries("wf-1")
	assert.Equal(t, Head, cursor)
	assert.Equal(t, 1, s.UndoCount("wf-1"))
	assert.Equal(t, 0, s.RedoCount("wf-1"))
}

func TestPaddedWorkflowIDsAddressTheSameTimeline(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)
	require.NoError(t, s.AddEntry(ctx, " wf ", sample("A"), "a"))
	require.NoError(t, s.AddEntry(ctx, " wf ", sample("B"), "b"))

	assert.Equal(t, []string{"wf"}, s.WorkflowIDs())
	assert.Equal(t, 1, s.UndoCount(" wf "))
	assert.True(t, s.CanUndo("wf\t"))

	w, ok := s.Undo(ctx, " wf ")
	require.True(t, ok)
	assert.Equal(t, "A", w.Configuration.Name)
	assert.Equal(t, 1, s.RedoCount(" wf"))

	w, ok = s.Redo(ctx, "wf ")
	require.True(t, ok)
	assert.Equal(t, "B", w.Configuration.Name)

	entries, cursor := s.Entries(" wf ")
	assert.Len(t, entries, 2)
	assert.Equal(t, 1, cursor)

	info, ok := s.Info(" wf ")
	require.True(t, ok)
	assert.Equal(t, 2, info.Entries)

	s.ClearWorkflowHistory(ctx, " wf ")
	assert.Empty(t, s.WorkflowIDs())
	_, ok = s.Info("wf")
	assert.False(t, ok)
}

func TestStorageFailureKeepsTimeline(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	s := NewStore(storage.NewMemoryStore(storage.WithQuota(8)), nil,
		WithLogger(logging.NewConsole(&logs)))
	s.Init(ctx)

	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), "a"))
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("B"), "b"))

	assert.Equal(t, 1, s.UndoCount("wf-1"))
	w, ok := s.Undo(ctx, "wf-1")
	require.True(t, ok)
	assert.Equal(t, "A", w.Configuration.Name)
	assert.Contains(t, logs.String(), storage.ErrCodeQuotaExceeded)
}

func TestClearOperations(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	s := newStore(t, backend, nil)
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), ""))
	require.NoError(t, s.AddEntry(ctx, "wf-2", sample("B"), ""))

	s.ClearWorkflowHistory(ctx, "wf-1")
	assert.Equal(t, []string{"wf-2"}, s.WorkflowIDs())
	assert.False(t, s.CanUndo("wf-1"))

	s.ClearAllHistory(ctx)
	assert.Empty(t, s.WorkflowIDs())
	_, ok, err := backend.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.False(t, ok, "an empty record is removed from the store")
}

func TestDebugInfo(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, nil, nil)
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, s.AddEntry(ctx, "wf-1", sample(name), ""))
	}
	_, ok := s.Undo(ctx, "wf-1")
	require.True(t, ok)

	info := s.DebugInfo()
	assert.Equal(t, DebugInfo{Entries: 3, CurrentIndex: 1, UndoCount: 1, RedoCount: 1}, info["wf-1"])

	raw, err := json.Marshal(info["wf-1"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"entries":3,"currentIndex":1,"undoCount":1,"redoCount":1}`, string(raw))
}

func TestTeardownPersistsAndReleases(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	s := newStore(t, backend, nil)
	require.NoError(t, s.AddEntry(ctx, "wf-1", sample("A"), ""))

	s.Teardown(ctx)
	assert.Empty(t, s.WorkflowIDs())

	s.Init(ctx)
	assert.Equal(t, []string{"wf-1"}, s.WorkflowIDs())
}
