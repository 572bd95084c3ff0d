package workflow

import (
	"fmt"
	"sort"
	"strings"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

const (
	DiagCodeMissingConfiguration = "WF000_MISSING_CONFIGURATION"
	DiagCodeEmptyStateID         = "WF001_EMPTY_STATE_ID"
	DiagCodeUnknownInitialState  = "WF002_UNKNOWN_INITIAL_STATE"
	DiagCodeUnknownTarget        = "WF003_UNKNOWN_TARGET"
	DiagCodeMissingTransition    = "WF004_MISSING_TRANSITION_NAME"
	DiagCodeDuplicateTransition  = "WF005_DUPLICATE_TRANSITION_NAME"
	DiagCodeUnreachableState     = "WF006_UNREACHABLE_STATE"
)

// Diagnostic is a deterministic validation message for editor tooling.
// Diagnostics are advisory: they never block history or reconciliation.
type Diagnostic struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Path     string `json:"path"`
	StateID  string `json:"state_id,omitempty"`
}

// Validate checks the configuration for structural problems the editor
// should surface.
func Validate(cfg *Configuration) []Diagnostic {
	diags := make([]Diagnostic, 0)
	if cfg == nil {
		return append(diags, Diagnostic{
			Code:     DiagCodeMissingConfiguration,
			Severity: SeverityError,
			Message:  "workflow configuration is required",
			Path:     "$.configuration",
		})
	}

	if initial := cfg.InitialState; initial != "" {
		if _, ok := cfg.States[initial]; !ok {
			diags = append(diags, Diagnostic{
				Code:     DiagCodeUnknownInitialState,
				Severity: SeverityError,
				Message:  fmt.Sprintf("initial state %q is not defined", initial),
				Path:     "$.initialState",
				StateID:  initial,
			})
		}
	} else if len(cfg.States) > 0 {
		diags = append(diags, Diagnostic{
			Code:     DiagCodeUnknownInitialState,
			Severity: SeverityError,
			Message:  "initial state is required",
			Path:     "$.initialState",
		})
	}

	for stateID, st := range cfg.States {
		path := fmt.Sprintf("$.states[%q]", stateID)
		if strings.TrimSpace(stateID) == "" {
			diags = append(diags, Diagnostic{
				Code:     DiagCodeEmptyStateID,
				Severity: SeverityError,
				Message:  "state id must not be empty",
				Path:     path,
			})
		}
		seen := make(map[string]struct{}, len(st.Transitions))
		for idx, tr := range st.Transitions {
			trPath := fmt.Sprintf("%s.transitions[%d]", path, idx)
			if strings.TrimSpace(tr.Name) == "" {
				diags = append(diags, Diagnostic{
					Code:     DiagCodeMissingTransition,
					Severity: SeverityWarning,
					Message:  "transition name is empty",
					Path:     trPath + ".name",
					StateID:  stateID,
				})
			} else {
				key := strings.ToLower(strings.TrimSpace(tr.Name))
				if _, dup := seen[key]; dup {
					diags = append(diags, Diagnostic{
						Code:     DiagCodeDuplicateTransition,
						Severity: SeverityWarning,
						Message:  fmt.Sprintf("transition %q is declared more than once", tr.Name),
						Path:     trPath + ".name",
						StateID:  stateID,
					})
				}
				seen[key] = struct{}{}
			}
			if _, ok := cfg.States[tr.Next]; !ok {
				diags = append(diags, Diagnostic{
					Code:     DiagCodeUnknownTarget,
					Severity: SeverityError,
					Message:  fmt.Sprintf("transition targets unknown state %q", tr.Next),
					Path:     trPath + ".next",
					StateID:  stateID,
				})
			}
		}
	}

	for _, stateID := range unreachableStates(cfg) {
		diags = append(diags, Diagnostic{
			Code:     DiagCodeUnreachableState,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("state %q is not reachable from the initial state", stateID),
			Path:     fmt.Sprintf("$.states[%q]", stateID),
			StateID:  stateID,
		})
	}

	sortDiagnostics(diags)
	return diags
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func unreachableStates(cfg *Configuration) []string {
	if _, ok := cfg.States[cfg.InitialState]; !ok {
		return nil
	}
	visited := map[string]struct{}{cfg.InitialState: {}}
	queue := []string{cfg.InitialState}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, tr := range cfg.States[current].Transitions {
			if _, ok := cfg.States[tr.Next]; !ok {
				continue
			}
			if _, seen := visited[tr.Next]; seen {
				continue
			}
			visited[tr.Next] = struct{}{}
			queue = append(queue, tr.Next)
		}
	}
	var out []string
	for id := range cfg.States {
		if _, ok := visited[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func sortDiagnostics(diags []Diagnostic) {
	sort.Slice(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		return a.Message < b.Message
	})
}
