// Package history keeps a bounded undo/redo timeline of workflow snapshots
// per workflow id.
//
// Each timeline is a list of snapshots plus a cursor. The cursor is either
// Head (the latest entry is the implicit current state) or an index into the
// list. Recording a new entry while the cursor sits on an index discards
// everything after it, and the oldest entries are evicted once the list
// outgrows the configured depth.
//
// Every workflow handed out is a fresh deep copy. Persistence is best effort:
// storage failures are logged and the in-memory timeline stays authoritative.
package history

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pschleger/workflow-canvas-sub000/logging"
	"github.com/pschleger/workflow-canvas-sub000/settings"
	"github.com/pschleger/workflow-canvas-sub000/storage"
	"github.com/pschleger/workflow-canvas-sub000/workflow"
)

const (
	// StorageKey is where the timeline record lives in the session store.
	StorageKey = "workflow-history"

	// Head marks a cursor that sits past the last entry.
	Head = -1
)

// DepthSource supplies the maximum number of retained entries. It is read on
// every AddEntry so a runtime change applies to the next write.
type DepthSource interface {
	MaxDepth() int
}

// DebugInfo summarizes one timeline.
type DebugInfo struct {
	Entries      int `json:"entries"`
	CurrentIndex int `json:"currentIndex"`
	UndoCount    int `json:"undoCount"`
	RedoCount    int `json:"redoCount"`
}

type timeline struct {
	Entries      []workflow.Snapshot `json:"entries"`
	CurrentIndex int                 `json:"currentIndex"`
}

// UnmarshalJSON treats a record without a cursor as sitting at Head.
func (t *timeline) UnmarshalJSON(data []byte) error {
	type plain timeline
	decoded := plain{CurrentIndex: Head}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*t = timeline(decoded)
	return nil
}

func (t *timeline) undoCount() int {
	if t == nil {
		return 0
	}
	if t.CurrentIndex == Head {
		if len(t.Entries) <= 1 {
			return 0
		}
		return len(t.Entries) - 1
	}
	return t.CurrentIndex
}

func (t *timeline) redoCount() int {
	if t == nil || t.CurrentIndex == Head {
		return 0
	}
	return len(t.Entries) - 1 - t.CurrentIndex
}

func (t *timeline) info() DebugInfo {
	return DebugInfo{
		Entries:      len(t.Entries),
		CurrentIndex: t.CurrentIndex,
		UndoCount:    t.undoCount(),
		RedoCount:    t.redoCount(),
	}
}

// normalizeID is applied to every workflow id the store receives, so padded
// ids address the same timeline they were recorded under.
func normalizeID(workflowID string) string {
	return strings.TrimSpace(workflowID)
}

// Store owns the timelines of every workflow edited in one session.
type Store struct {
	mu        sync.Mutex
	backend   storage.Store
	depth     DepthSource
	logger    logging.Logger
	now       func() time.Time
	timelines map[string]*timeline
}

type Option func(*Store)

func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		s.logger = logging.Normalize(logger)
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore builds an empty store. backend may be nil to keep history in
// memory only; depth may be nil to use settings.DefaultMaxDepth.
func NewStore(backend storage.Store, depth DepthSource, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		depth:     depth,
		logger:    logging.Nop(),
		now:       time.Now,
		timelines: make(map[string]*timeline),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Init restores timelines persisted earlier in the session. An unreadable
// record is logged and ignored.
func (s *Store) Init(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines = s.load(ctx)
}

// Teardown writes the final state and releases the in-memory timelines.
func (s *Store) Teardown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist(ctx)
	s.timelines = make(map[string]*timeline)
}

// AddEntry records w as the newest snapshot of workflowID. Errors are only
// returned for input that cannot be recorded.
func (s *Store) AddEntry(ctx context.Context, workflowID string, w workflow.Workflow, description string) error {
	workflowID = normalizeID(workflowID)
	if workflowID == "" {
		return ErrInvalidWorkflowID
	}
	if err := workflow.CheckPlainData(w); err != nil {
		return invalidSnapshot(workflowID, err)
	}
	snapshot := workflow.Snapshot{
		Timestamp:   s.now().UnixMilli(),
		Workflow:    workflow.Clone(w),
		Description: description,
	}
	maxDepth := s.maxDepth()

	s.mu.Lock()
	defer s.mu.Unlock()

	tl, ok := s.timelines[workflowID]
	if !ok {
		tl = &timeline{CurrentIndex: Head}
		s.timelines[workflowID] = tl
	}
	if tl.CurrentIndex != Head {
		tl.Entries = tl.Entries[:tl.CurrentIndex+1]
	}
	tl.Entries = append(tl.Entries, snapshot)
	if excess := len(tl.Entries) - maxDepth; excess > 0 {
		tl.Entries = append([]workflow.Snapshot(nil), tl.Entries[excess:]...)
	}
	tl.CurrentIndex = Head

	s.logFor(workflowID, "add").Debug("history: recorded %q (%d entries)", description, len(tl.Entries))
	s.persist(ctx)
	return nil
}

// Undo steps back one entry and returns its workflow. It reports false when
// there is nothing before the current state.
func (s *Store) Undo(ctx context.Context, workflowID string) (workflow.Workflow, bool) {
	workflowID = normalizeID(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelines[workflowID]
	if tl == nil || len(tl.Entries) == 0 {
		return workflow.Workflow{}, false
	}
	switch {
	case tl.CurrentIndex == Head:
		if len(tl.Entries) <= 1 {
			return workflow.Workflow{}, false
		}
		tl.CurrentIndex = len(tl.Entries) - 2
	case tl.CurrentIndex > 0:
		tl.CurrentIndex--
	default:
		return workflow.Workflow{}, false
	}

	entry := tl.Entries[tl.CurrentIndex]
	s.logFor(workflowID, "undo").Debug("history: undo to %q", entry.Description)
	s.persist(ctx)
	return workflow.Clone(entry.Workflow), true
}

// Redo steps forward one entry and returns its workflow. It reports false at
// Head and at the last entry.
func (s *Store) Redo(ctx context.Context, workflowID string) (workflow.Workflow, bool) {
	workflowID = normalizeID(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelines[workflowID]
	if tl == nil || tl.CurrentIndex == Head || tl.CurrentIndex >= len(tl.Entries)-1 {
		return workflow.Workflow{}, false
	}
	tl.CurrentIndex++

	entry := tl.Entries[tl.CurrentIndex]
	s.logFor(workflowID, "redo").Debug("history: redo to %q", entry.Description)
	s.persist(ctx)
	return workflow.Clone(entry.Workflow), true
}

func (s *Store) CanUndo(workflowID string) bool { return s.UndoCount(workflowID) > 0 }
func (s *Store) CanRedo(workflowID string) bool { return s.RedoCount(workflowID) > 0 }

func (s *Store) UndoCount(workflowID string) int {
	workflowID = normalizeID(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelines[workflowID].undoCount()
}

func (s *Store) RedoCount(workflowID string) int {
	workflowID = normalizeID(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelines[workflowID].redoCount()
}

// Entries returns deep copies of the retained snapshots, oldest first, and
// the cursor.
func (s *Store) Entries(workflowID string) ([]workflow.Snapshot, int) {
	workflowID = normalizeID(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()

	tl := s.timelines[workflowID]
	if tl == nil {
		return nil, Head
	}
	out := make([]workflow.Snapshot, 0, len(tl.Entries))
	for _, entry := range tl.Entries {
		out = append(out, workflow.CloneSnapshot(entry))
	}
	return out, tl.CurrentIndex
}

// WorkflowIDs lists workflows that have a timeline, sorted.
func (s *Store) WorkflowIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.timelines))
	for id := range s.timelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearWorkflowHistory drops one timeline.
func (s *Store) ClearWorkflowHistory(ctx context.Context, workflowID string) {
	workflowID = normalizeID(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timelines[workflowID]; !ok {
		return
	}
	delete(s.timelines, workflowID)
	s.logFor(workflowID, "clear").Debug("history: cleared")
	s.persist(ctx)
}

// ClearAllHistory drops every timeline.
func (s *Store) ClearAllHistory(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines = make(map[string]*timeline)
	s.logger.Debug("history: cleared all timelines")
	s.persist(ctx)
}

// Info reports one timeline's shape.
func (s *Store) Info(workflowID string) (DebugInfo, bool) {
	workflowID = normalizeID(workflowID)
	s.mu.Lock()
	defer s.mu.Unlock()
	tl, ok := s.timelines[workflowID]
	if !ok {
		return DebugInfo{CurrentIndex: Head}, false
	}
	return tl.info(), true
}

// DebugInfo reports every timeline's shape, keyed by workflow id.
func (s *Store) DebugInfo() map[string]DebugInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]DebugInfo, len(s.timelines))
	for id, tl := range s.timelines {
		out[id] = tl.info()
	}
	return out
}

func (s *Store) maxDepth() int {
	if s.depth == nil {
		return settings.DefaultMaxDepth
	}
	if depth := s.depth.MaxDepth(); depth > 0 {
		return depth
	}
	return settings.DefaultMaxDepth
}

func (s *Store) logFor(workflowID, action string) logging.Logger {
	return logging.WithFields(s.logger, map[string]any{
		"workflow_id": workflowID,
		"action":      action,
	})
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context) {
	if s.backend == nil {
		return
	}
	var err error
	if len(s.timelines) == 0 {
		err = s.backend.Delete(ctx, StorageKey)
	} else {
		var payload []byte
		payload, err = json.Marshal(s.timelines)
		if err == nil {
			err = s.backend.Set(ctx, StorageKey, payload)
		}
	}
	if err != nil {
		logging.WithError(logging.WithFields(s.logger, map[string]any{"key": StorageKey}), err).Warn("history: persist failed, keeping in-memory timeline: %v", err)
	}
}

func (s *Store) load(ctx context.Context) map[string]*timeline {
	out := make(map[string]*timeline)
	if s.backend == nil {
		return out
	}
	raw, ok, err := s.backend.Get(ctx, StorageKey)
	if err != nil {
		s.logger.Warn("history: load failed, starting empty: %v", err)
		return out
	}
	if !ok {
		return out
	}
	var record map[string]*timeline
	if err := json.Unmarshal(raw, &record); err != nil {
		s.logger.Warn("history: corrupt record, starting empty: %v", err)
		return out
	}
	for id, tl := range record {
		id = normalizeID(id)
		if tl == nil || len(tl.Entries) == 0 || id == "" {
			continue
		}
		if tl.CurrentIndex < Head || tl.CurrentIndex >= len(tl.Entries) {
			tl.CurrentIndex = Head
		}
		out[id] = tl
	}
	return out
}
