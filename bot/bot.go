package bot

import (
	"context"
	"strings"
	"sync"
)

// Result tells the dispatcher how a command went.
type Result int

const (
	ResultSuccess Result = iota
	ResultInternalError
	ResultInvalidSyntax
	ResultUnknownCommand
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInternalError:
		return "internal_error"
	case ResultInvalidSyntax:
		return "invalid_syntax"
	case ResultUnknownCommand:
		return "unknown_command"
	}
	return "unknown"
}

// Handler executes a command. A non-nil error is reported to the user as an internal error.
type Handler func(ctx context.Context, c *Context) (Result, error)

// Record is a registered command.
type Record struct {
	Name    string
	Aliases []string
	Handler Handler
}

// Registry maps command names and aliases to handlers.
type Registry struct {
	mu       sync.Mutex
	byLabel  map[string]*Record
	commands []*Record
}

func NewRegistry() *Registry {
	return &Registry{byLabel: make(map[string]*Record)}
}

// Register adds the command under its name and aliases. Nothing is registered and false is
// returned when any of the labels is already taken.
func (r *Registry) Register(name string, h Handler, aliases ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	labels := append([]string{name}, aliases...)
	seen := make(map[string]bool, len(labels))
	for i, l := range labels {
		l = strings.ToLower(l)
		labels[i] = l
		if _, ok := r.byLabel[l]; ok || seen[l] || l == "" {
			return false
		}
		seen[l] = true
	}

	rec := &Record{Name: labels[0], Aliases: labels[1:], Handler: h}
	for _, l := range labels {
		r.byLabel[l] = rec
	}
	r.commands = append(r.commands, rec)
	return true
}

// Lookup finds a command by its name or alias, ignoring case.
func (r *Registry) Lookup(label string) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byLabel[strings.ToLower(label)]
	return rec, ok
}

// Commands returns the commands in registration order.
func (r *Registry) Commands() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.commands))
	for _, rec := range r.commands {
		out = append(out, *rec)
	}
	return out
}
