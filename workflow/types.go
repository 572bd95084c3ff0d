package workflow

// Configuration is the functional description of a workflow. Transitions have
// no identifier of their own: their position in the owning state's list is
// their identity.
type Configuration struct {
	Name         string                     `json:"name" yaml:"name"`
	Version      string                     `json:"version,omitempty" yaml:"version,omitempty"`
	Description  string                     `json:"desc,omitempty" yaml:"desc,omitempty"`
	InitialState string                     `json:"initialState" yaml:"initialState"`
	States       map[string]StateDefinition `json:"states" yaml:"states"`
}

type StateDefinition struct {
	Name        string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Transitions []TransitionDefinition `json:"transitions" yaml:"transitions"`
}

type TransitionDefinition struct {
	Name       string           `json:"name" yaml:"name"`
	Next       string           `json:"next" yaml:"next"`
	Manual     bool             `json:"manual" yaml:"manual"`
	Disabled   bool             `json:"disabled" yaml:"disabled"`
	Criterion  map[string]any   `json:"criterion,omitempty" yaml:"criterion,omitempty"`
	Processors []map[string]any `json:"processors,omitempty" yaml:"processors,omitempty"`
}

// Layout persists canvas geometry for one workflow. Entries are optional
// annotations over the configuration.
type Layout struct {
	WorkflowID  string             `json:"workflowId" yaml:"workflowId"`
	Viewport    *Viewport          `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	States      []StateLayout      `json:"states" yaml:"states"`
	Transitions []TransitionLayout `json:"transitions" yaml:"transitions"`
	UpdatedAt   string             `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

type Viewport struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type StateLayout struct {
	ID         string         `json:"id" yaml:"id"`
	Position   Position       `json:"position" yaml:"position"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

type TransitionLayout struct {
	ID            string    `json:"id" yaml:"id"`
	LabelPosition *Position `json:"labelPosition,omitempty" yaml:"labelPosition,omitempty"`
	SourceHandle  string    `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle  string    `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// Workflow pairs a configuration with its layout. Either side may be nil
// while a document is still loading.
type Workflow struct {
	Configuration *Configuration `json:"configuration" yaml:"configuration"`
	Layout        *Layout        `json:"layout" yaml:"layout"`
}

// Snapshot is one immutable timeline entry. Timestamp is epoch milliseconds.
//
// A snapshot only ever holds plain data (see CheckPlainData) so that a
// structural deep copy fully isolates it.
type Snapshot struct {
	Timestamp   int64    `json:"timestamp"`
	Workflow    Workflow `json:"workflow"`
	Description string   `json:"description"`
}

// Complete reports whether both sections are present.
func (w Workflow) Complete() bool {
	return w.Configuration != nil && w.Layout != nil
}

// StateIDs returns the configured state identifiers.
func (c *Configuration) StateIDs() map[string]struct{} {
	if c == nil {
		return map[string]struct{}{}
	}
	ids := make(map[string]struct{}, len(c.States))
	for id := range c.States {
		ids[id] = struct{}{}
	}
	return ids
}

// StateLayout returns the layout entry for id.
func (l *Layout) StateLayout(id string) (StateLayout, bool) {
	if l == nil {
		return StateLayout{}, false
	}
	for _, st := range l.States {
		if st.ID == id {
			return st, true
		}
	}
	return StateLayout{}, false
}

// TransitionLayout returns the layout entry for id.
func (l *Layout) TransitionLayout(id string) (TransitionLayout, bool) {
	if l == nil {
		return TransitionLayout{}, false
	}
	for _, tr := range l.Transitions {
		if tr.ID == id {
			return tr, true
		}
	}
	return TransitionLayout{}, false
}
