// Package reconcile sweeps canvas layout entries that no longer correspond to
// anything in the workflow configuration.
//
// Layout rows are keyed by derived strings rather than by object identity, so
// deleting a state or transition anywhere in the editor leaves orphaned rows
// behind. Reconcile is the single place that sweep happens, independent of how
// the deletion was performed. It never touches the configuration.
package reconcile

import (
	"github.com/pschleger/workflow-canvas-sub000/logging"
	"github.com/pschleger/workflow-canvas-sub000/transitionid"
	"github.com/pschleger/workflow-canvas-sub000/workflow"
)

// Report lists what a reconciliation pass removed.
type Report struct {
	PrunedStates      []string `json:"pruned_states,omitempty"`
	PrunedTransitions []string `json:"pruned_transitions,omitempty"`
}

// Changed reports whether anything was pruned.
func (r Report) Changed() bool {
	return len(r.PrunedStates) > 0 || len(r.PrunedTransitions) > 0
}

// Reconciler prunes orphaned layout entries.
type Reconciler struct {
	codec  transitionid.Codec
	logger logging.Logger
}

type Option func(*Reconciler)

// WithCodec swaps the identifier codec used to validate transition ids.
func WithCodec(codec transitionid.Codec) Option {
	return func(r *Reconciler) {
		if codec != nil {
			r.codec = codec
		}
	}
}

// WithLogger sets the logger used to trace pruning.
func WithLogger(logger logging.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logging.Normalize(logger)
	}
}

// New builds a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		codec:  transitionid.Default,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

var defaultReconciler = New()

// Reconcile prunes w's layout with the default reconciler.
func Reconcile(w workflow.Workflow) workflow.Workflow {
	return defaultReconciler.Reconcile(w)
}

// Reconcile returns a corrected copy of w. Input with a missing configuration
// or layout is returned unchanged since the caller may still be loading.
func (r *Reconciler) Reconcile(w workflow.Workflow) workflow.Workflow {
	out, _ := r.ReconcileWithReport(w)
	return out
}

// ReconcileWithReport is Reconcile plus the list of pruned ids.
func (r *Reconciler) ReconcileWithReport(w workflow.Workflow) (workflow.Workflow, Report) {
	if !w.Complete() {
		return w, Report{}
	}
	if r == nil {
		r = defaultReconciler
	}

	out := workflow.Clone(w)
	known := out.Configuration.StateIDs()
	report := Report{}

	states := make([]workflow.StateLayout, 0, len(out.Layout.States))
	for _, st := range out.Layout.States {
		if _, ok := known[st.ID]; !ok {
			report.PrunedStates = append(report.PrunedStates, st.ID)
			continue
		}
		states = append(states, st)
	}

	transitions := make([]workflow.TransitionLayout, 0, len(out.Layout.Transitions))
	for _, tr := range out.Layout.Transitions {
		if !r.codec.Validate(tr.ID, known) {
			report.PrunedTransitions = append(report.PrunedTransitions, tr.ID)
			continue
		}
		transitions = append(transitions, tr)
	}

	// nil stays nil so a clean layout reconciles to a structurally equal value
	if out.Layout.States != nil {
		out.Layout.States = states
	}
	if out.Layout.Transitions != nil {
		out.Layout.Transitions = transitions
	}

	if report.Changed() {
		logging.WithFields(r.logger, map[string]any{
			"workflow_id":        out.Layout.WorkflowID,
			"pruned_states":      len(report.PrunedStates),
			"pruned_transitions": len(report.PrunedTransitions),
		}).Debug("reconcile pruned orphaned layout entries")
	}
	return out, report
}
