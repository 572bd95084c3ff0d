// Package editor applies structural edits to one workflow on behalf of a
// canvas host.
//
// Every edit works on a copy of the current workflow, runs it through the
// reconciler and records the result as one timeline entry before it becomes
// the working copy. Undo and redo replace the working copy wholesale with the
// snapshot the timeline returns.
package editor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pschleger/workflow-canvas-sub000/history"
	"github.com/pschleger/workflow-canvas-sub000/logging"
	"github.com/pschleger/workflow-canvas-sub000/reconcile"
	"github.com/pschleger/workflow-canvas-sub000/transitionid"
	"github.com/pschleger/workflow-canvas-sub000/workflow"
)

const DescriptionInitialLoad = "Initial load"

// Session owns the working copy of one workflow.
type Session struct {
	mu         sync.Mutex
	history    *history.Store
	codec      transitionid.Codec
	logger     logging.Logger
	reconciler *reconcile.Reconciler

	workflowID string
	working    workflow.Workflow
}

type Option func(*Session)

func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logging.Normalize(logger)
	}
}

// WithCodec changes how new transition ids are minted and validated.
func WithCodec(codec transitionid.Codec) Option {
	return func(s *Session) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// NewSession builds a session recording into timelines.
func NewSession(timelines *history.Store, opts ...Option) *Session {
	s := &Session{
		history: timelines,
		codec:   transitionid.Default,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.reconciler = reconcile.New(reconcile.WithCodec(s.codec), reconcile.WithLogger(s.logger))
	return s
}

// Open adopts a freshly loaded workflow and records it as the first entry.
func (s *Session) Open(ctx context.Context, workflowID string, w workflow.Workflow) error {
	if !w.Complete() {
		return ErrIncompleteWorkflow
	}
	workflowID = strings.TrimSpace(workflowID)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.reconciler.Reconcile(w)
	if err := s.history.AddEntry(ctx, workflowID, next, DescriptionInitialLoad); err != nil {
		return err
	}
	s.workflowID = workflowID
	s.working = next
	s.logger.Debug("editor: opened workflow %s", workflowID)
	return nil
}

// WorkflowID is the id of the open workflow, or "".
func (s *Session) WorkflowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflowID
}

// Working returns a copy of the current workflow.
func (s *Session) Working() workflow.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workflow.Clone(s.working)
}

// Diagnostics validates the working configuration.
func (s *Session) Diagnostics() []workflow.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workflow.Validate(s.working.Configuration)
}

// AddState creates an empty state placed at pos. The first state of an empty
// configuration becomes its initial state.
func (s *Session) AddState(ctx context.Context, stateID string, pos workflow.Position) error {
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return ErrInvalidStateID
	}
	return s.edit(ctx, "Add state "+stateID, func(w *workflow.Workflow) error {
		if _, exists := w.Configuration.States[stateID]; exists {
			return workflow.DuplicateState(stateID)
		}
		if w.Configuration.States == nil {
			w.Configuration.States = map[string]workflow.StateDefinition{}
		}
		w.Configuration.States[stateID] = workflow.StateDefinition{Transitions: []workflow.TransitionDefinition{}}
		if w.Configuration.InitialState == "" {
			w.Configuration.InitialState = stateID
		}
		setStatePosition(w.Layout, stateID, pos)
		return nil
	})
}

// DeleteState removes a state together with every transition pointing at
// it. Layout entries that no longer match are left to the reconciler.
func (s *Session) DeleteState(ctx context.Context, stateID string) error {
	return s.edit(ctx, "Delete state "+stateID, func(w *workflow.Workflow) error {
		if _, exists := w.Configuration.States[stateID]; !exists {
			return workflow.UnknownState(stateID)
		}
		delete(w.Configuration.States, stateID)
		for _, source := range sortedStateIDs(w.Configuration) {
			s.removeTransitions(w, source, func(_ int, tr workflow.TransitionDefinition) bool {
				return tr.Next == stateID
			})
		}
		if w.Configuration.InitialState == stateID {
			w.Configuration.InitialState = ""
			if remaining := sortedStateIDs(w.Configuration); len(remaining) > 0 {
				w.Configuration.InitialState = remaining[0]
			}
		}
		return nil
	})
}

// Connect appends a transition from source to target and returns its id.
func (s *Session) Connect(ctx context.Context, source, target, name string) (string, error) {
	var id string
	err := s.edit(ctx, fmt.Sprintf("Connect %s to %s", source, target), func(w *workflow.Workflow) error {
		st, ok := w.Configuration.States[source]
		if !ok {
			return workflow.UnknownState(source)
		}
		if _, ok := w.Configuration.States[target]; !ok {
			return workflow.UnknownState(target)
		}
		if strings.TrimSpace(name) == "" {
			name = target
		}
		st.Transitions = append(st.Transitions, workflow.TransitionDefinition{Name: name, Next: target})
		w.Configuration.States[source] = st

		id = s.codec.GenerateOrdinal(source, len(st.Transitions)-1)
		w.Layout.Transitions = append(w.Layout.Transitions, workflow.TransitionLayout{ID: id})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Disconnect removes the transition addressed by transitionID. Ordinal ids
// of the source's later transitions shift down by one.
func (s *Session) Disconnect(ctx context.Context, transitionID string) error {
	return s.edit(ctx, "Disconnect "+transitionID, func(w *workflow.Workflow) error {
		ref, ok := transitionid.Resolve(transitionID, w.Configuration)
		if !ok {
			return unknownTransition(transitionID)
		}
		// A target-form row labels every transition from source to its
		// target, so it stays while a parallel one survives.
		st := w.Configuration.States[ref.Source]
		if transitionID == s.codec.GenerateOrdinal(ref.Source, ref.Ordinal) ||
			!leadsTo(st, ref.Ordinal, st.Transitions[ref.Ordinal].Next) {
			w.Layout.Transitions = removeLayoutEntry(w.Layout.Transitions, transitionID)
		}
		s.removeTransitions(w, ref.Source, func(idx int, _ workflow.TransitionDefinition) bool {
			return idx == ref.Ordinal
		})
		return nil
	})
}

// MoveState places a state's node at pos.
func (s *Session) MoveState(ctx context.Context, stateID string, pos workflow.Position) error {
	return s.edit(ctx, "Move state "+stateID, func(w *workflow.Workflow) error {
		if _, exists := w.Configuration.States[stateID]; !exists {
			return workflow.UnknownState(stateID)
		}
		setStatePosition(w.Layout, stateID, pos)
		return nil
	})
}

// MoveTransitionLabel places a transition's label at pos. An existing layout
// entry is updated under its own id; otherwise one is added under the
// ordinal id.
func (s *Session) MoveTransitionLabel(ctx context.Context, transitionID string, pos workflow.Position) error {
	return s.edit(ctx, "Move transition label "+transitionID, func(w *workflow.Workflow) error {
		ref, ok := transitionid.Resolve(transitionID, w.Configuration)
		if !ok {
			return unknownTransition(transitionID)
		}
		ordinalID := s.codec.GenerateOrdinal(ref.Source, ref.Ordinal)
		for idx := range w.Layout.Transitions {
			id := w.Layout.Transitions[idx].ID
			if id == transitionID || id == ordinalID {
				p := pos
				w.Layout.Transitions[idx].LabelPosition = &p
				return nil
			}
		}
		p := pos
		w.Layout.Transitions = append(w.Layout.Transitions, workflow.TransitionLayout{ID: ordinalID, LabelPosition: &p})
		return nil
	})
}

// ReplaceConfiguration swaps in an imported configuration and keeps whatever
// layout still matches it.
func (s *Session) ReplaceConfiguration(ctx context.Context, cfg *workflow.Configuration) error {
	if cfg == nil {
		return ErrIncompleteWorkflow
	}
	return s.edit(ctx, "Import configuration", func(w *workflow.Workflow) error {
		w.Configuration = workflow.Clone(workflow.Workflow{Configuration: cfg}).Configuration
		return nil
	})
}

// Undo steps the timeline back and adopts the snapshot as the working copy.
func (s *Session) Undo(ctx context.Context) bool {
	return s.travel(ctx, s.history.Undo)
}

// Redo steps the timeline forward and adopts the snapshot as the working copy.
func (s *Session) Redo(ctx context.Context) bool {
	return s.travel(ctx, s.history.Redo)
}

func (s *Session) CanUndo() bool { return s.history.CanUndo(s.WorkflowID()) }
func (s *Session) CanRedo() bool { return s.history.CanRedo(s.WorkflowID()) }

func (s *Session) travel(ctx context.Context, step func(context.Context, string) (workflow.Workflow, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflowID == "" {
		return false
	}
	w, ok := step(ctx, s.workflowID)
	if !ok {
		return false
	}
	s.working = w
	return true
}

func (s *Session) edit(ctx context.Context, description string, apply func(*workflow.Workflow) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflowID == "" {
		return ErrNotOpen
	}

	next := workflow.Clone(s.working)
	if err := apply(&next); err != nil {
		return err
	}
	next, report := s.reconciler.ReconcileWithReport(next)
	if err := s.history.AddEntry(ctx, s.workflowID, next, description); err != nil {
		return err
	}
	s.working = next

	logging.WithFields(s.logger, map[string]any{
		"workflow_id":        s.workflowID,
		"pruned_states":      len(report.PrunedStates),
		"pruned_transitions": len(report.PrunedTransitions),
	}).Debug("editor: %s", description)
	return nil
}

// removeTransitions drops the transitions of source selected by drop and
// renumbers the ordinal layout ids of those that remain.
func (s *Session) removeTransitions(w *workflow.Workflow, source string, drop func(int, workflow.TransitionDefinition) bool) {
	st, ok := w.Configuration.States[source]
	if !ok {
		return
	}
	remap := make(map[int]int, len(st.Transitions))
	kept := make([]workflow.TransitionDefinition, 0, len(st.Transitions))
	for idx, tr := range st.Transitions {
		if drop(idx, tr) {
			continue
		}
		remap[idx] = len(kept)
		kept = append(kept, tr)
	}
	if len(kept) == len(st.Transitions) {
		return
	}
	st.Transitions = kept
	w.Configuration.States[source] = st

	if w.Layout == nil || w.Layout.Transitions == nil {
		return
	}
	layouts := make([]workflow.TransitionLayout, 0, len(w.Layout.Transitions))
	for _, tl := range w.Layout.Transitions {
		src, ordinal, ok := transitionid.ParseOrdinal(tl.ID)
		if !ok || src != source {
			layouts = append(layouts, tl)
			continue
		}
		next, survived := remap[ordinal]
		if !survived {
			continue
		}
		tl.ID = s.codec.GenerateOrdinal(source, next)
		layouts = append(layouts, tl)
	}
	w.Layout.Transitions = layouts
}

// leadsTo reports whether a transition of st other than the one at skip
// goes to next.
func leadsTo(st workflow.StateDefinition, skip int, next string) bool {
	for idx, tr := range st.Transitions {
		if idx != skip && tr.Next == next {
			return true
		}
	}
	return false
}

func removeLayoutEntry(entries []workflow.TransitionLayout, id string) []workflow.TransitionLayout {
	if entries == nil {
		return nil
	}
	out := make([]workflow.TransitionLayout, 0, len(entries))
	for _, tl := range entries {
		if tl.ID != id {
			out = append(out, tl)
		}
	}
	return out
}

func setStatePosition(layout *workflow.Layout, stateID string, pos workflow.Position) {
	for idx := range layout.States {
		if layout.States[idx].ID == stateID {
			layout.States[idx].Position = pos
			return
		}
	}
	layout.States = append(layout.States, workflow.StateLayout{ID: stateID, Position: pos})
}

func sortedStateIDs(cfg *workflow.Configuration) []string {
	ids := make([]string, 0, len(cfg.States))
	for id := range cfg.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
