package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// leadingFields identify the record a line is about and are printed first,
// in this order. Other fields follow sorted by key.
var leadingFields = []string{"session_id", "workflow_id", "action", "error_code"}

// Console writes one plain-text line per entry:
//
//	15:04:05.000 WARN  history: persist failed workflow_id=wf-1 action=add error_code=STORAGE_QUOTA_EXCEEDED
//
// Loggers derived through WithFields share the writer and its lock.
type Console struct {
	sink   *sink
	fields map[string]any
}

type sink struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole writes to out, or to stderr when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{sink: &sink{out: out, now: time.Now}}
}

func (c *Console) Trace(msg string, args ...any) { c.write("TRACE", msg, args) }
func (c *Console) Debug(msg string, args ...any) { c.write("DEBUG", msg, args) }
func (c *Console) Info(msg string, args ...any)  { c.write("INFO", msg, args) }
func (c *Console) Warn(msg string, args ...any)  { c.write("WARN", msg, args) }
func (c *Console) Error(msg string, args ...any) { c.write("ERROR", msg, args) }
func (c *Console) Fatal(msg string, args ...any) { c.write("FATAL", msg, args) }

// WithContext returns c; the console has nothing to read from a context.
func (c *Console) WithContext(context.Context) Logger { return c }

func (c *Console) WithFields(fields map[string]any) Logger {
	merged := make(map[string]any, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Console{sink: c.sink, fields: merged}
}

func (c *Console) write(level, msg string, args []any) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	var b strings.Builder
	b.WriteString(c.sink.now().UTC().Format("15:04:05.000"))
	fmt.Fprintf(&b, " %-5s %s", level, strings.TrimSpace(msg))
	for _, key := range fieldOrder(c.fields) {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(fieldValue(c.fields[key]))
	}
	b.WriteByte('\n')

	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	io.WriteString(c.sink.out, b.String())
}

func fieldOrder(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for _, key := range leadingFields {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
		}
	}
	rest := make([]string, 0, len(fields)-len(keys))
	for key := range fields {
		if !slices.Contains(leadingFields, key) {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// fieldValue quotes values that would otherwise break key=value parsing.
func fieldValue(v any) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
