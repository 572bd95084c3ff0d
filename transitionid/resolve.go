package transitionid

import "github.com/pschleger/workflow-canvas-sub000/workflow"

// Ref addresses one transition inside a configuration.
type Ref struct {
	Source  string
	Ordinal int
}

// Resolve maps id to a concrete transition of cfg. Ordinal ids must point at
// an existing index; target ids resolve to the first transition of the source
// whose next state matches. When both readings are possible the ordinal one
// wins, since it is the only form that tells parallel transitions apart.
func Resolve(id string, cfg *workflow.Configuration) (Ref, bool) {
	if cfg == nil || id == "" {
		return Ref{}, false
	}
	if source, ordinal, ok := ParseOrdinal(id); ok {
		if st, exists := cfg.States[source]; exists && ordinal < len(st.Transitions) {
			return Ref{Source: source, Ordinal: ordinal}, true
		}
	}
	pair, ok := Parse(id)
	if !ok {
		return Ref{}, false
	}
	st, exists := cfg.States[pair.Source]
	if !exists {
		return Ref{}, false
	}
	for idx, tr := range st.Transitions {
		if tr.Next == pair.Target {
			return Ref{Source: pair.Source, Ordinal: idx}, true
		}
	}
	return Ref{}, false
}

// Transition returns the definition ref points at.
func (r Ref) Transition(cfg *workflow.Configuration) (workflow.TransitionDefinition, bool) {
	if cfg == nil {
		return workflow.TransitionDefinition{}, false
	}
	st, ok := cfg.States[r.Source]
	if !ok || r.Ordinal < 0 || r.Ordinal >= len(st.Transitions) {
		return workflow.TransitionDefinition{}, false
	}
	return st.Transitions[r.Ordinal], true
}

// IDs returns the ordinal and target form ids for every transition of cfg,
// keyed by ordinal id.
func IDs(cfg *workflow.Configuration) map[string]string {
	out := map[string]string{}
	if cfg == nil {
		return out
	}
	for source, st := range cfg.States {
		for idx, tr := range st.Transitions {
			out[GenerateOrdinal(source, idx)] = Generate(source, tr.Next)
		}
	}
	return out
}
