// Package transitionid mints and reads the string identifiers the canvas
// layout uses to address transitions.
//
// Transitions have no key of their own in a workflow configuration, so their
// layout entries are keyed by a derived string. Two forms exist:
//
//	<source>-to-<target>   target form; hyphens inside state ids are escaped
//	<source>-<ordinal>     ordinal form; position in the source's transition list
//
// In the target form every '-' inside a state id is written as `\-` and every
// `\` as `\\`, so the first unescaped "-to-" is always the separator.
package transitionid

import (
	"strconv"
	"strings"

	"github.com/pschleger/workflow-canvas-sub000/workflow"
)

const (
	Separator  = "-to-"
	escapeRune = '\\'
)

// Pair is a parsed target-form identifier.
type Pair struct {
	Source string
	Target string
}

// Codec is the identifier contract callers depend on, so the separator and
// escaping scheme can change without touching them.
type Codec interface {
	Generate(source, target string) string
	GenerateOrdinal(source string, ordinal int) string
	Parse(id string) (Pair, bool)
	Validate(id string, known map[string]struct{}) bool
}

// Default is the codec used by the engine.
var Default Codec = defaultCodec{}

type defaultCodec struct{}

func (defaultCodec) Generate(source, target string) string { return Generate(source, target) }
func (defaultCodec) GenerateOrdinal(source string, ordinal int) string {
	return GenerateOrdinal(source, ordinal)
}
func (defaultCodec) Parse(id string) (Pair, bool) { return Parse(id) }
func (defaultCodec) Validate(id string, known map[string]struct{}) bool {
	return Validate(id, known)
}

// Generate builds the target-form identifier for a source/target pair.
func Generate(source, target string) string {
	return escape(source) + Separator + escape(target)
}

// GenerateOrdinal builds the ordinal-form identifier for the transition at
// position ordinal in source's transition list.
func GenerateOrdinal(source string, ordinal int) string {
	return source + "-" + strconv.Itoa(ordinal)
}

// Parse splits a target-form identifier at its first unescaped separator.
// It fails closed: malformed input yields false, never a panic.
func Parse(id string) (Pair, bool) {
	idx := separatorIndex(id)
	if idx < 0 {
		return Pair{}, false
	}
	source, ok := unescape(id[:idx])
	if !ok || source == "" {
		return Pair{}, false
	}
	target, ok := unescape(id[idx+len(Separator):])
	if !ok || target == "" {
		return Pair{}, false
	}
	return Pair{Source: source, Target: target}, true
}

// ParseOrdinal splits an ordinal-form identifier at its last hyphen.
func ParseOrdinal(id string) (string, int, bool) {
	idx := strings.LastIndexByte(id, '-')
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, false
	}
	digits := id[idx+1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", 0, false
		}
	}
	ordinal, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, false
	}
	return id[:idx], ordinal, true
}

// Validate reports whether every state referenced by id is in known. The
// target form is tried first; when it does not resolve to known states the
// ordinal form's source prefix is checked.
func Validate(id string, known map[string]struct{}) bool {
	if id == "" || len(known) == 0 {
		return false
	}
	if pair, ok := Parse(id); ok {
		_, srcOK := known[pair.Source]
		_, dstOK := known[pair.Target]
		if srcOK && dstOK {
			return true
		}
	}
	source, _, ok := ParseOrdinal(id)
	if !ok {
		return false
	}
	_, srcOK := known[source]
	return srcOK
}

// KnownStates returns the state id set of cfg.
func KnownStates(cfg *workflow.Configuration) map[string]struct{} {
	return cfg.StateIDs()
}

// escape and unescape walk bytes so ids that are not valid UTF-8 survive a
// round trip unchanged.
func escape(value string) string {
	if !strings.ContainsAny(value, "-\\") {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 4)
	for i := 0; i < len(value); i++ {
		if c := value[i]; c == '-' || c == escapeRune {
			b.WriteByte(escapeRune)
		}
		b.WriteByte(value[i])
	}
	return b.String()
}

func unescape(value string) (string, bool) {
	if strings.IndexByte(value, escapeRune) < 0 {
		return value, true
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] == escapeRune {
			i++
			if i == len(value) {
				// dangling escape marker
				return "", false
			}
		}
		b.WriteByte(value[i])
	}
	return b.String(), true
}

func separatorIndex(id string) int {
	for i := 0; i < len(id); i++ {
		switch id[i] {
		case escapeRune:
			i++
		case '-':
			if strings.HasPrefix(id[i:], Separator) {
				return i
			}
		}
	}
	return -1
}
