// Package dispatch maps console command names to handlers and contains
// every failure a handler can produce.
package dispatch

import (
	"errors"
	"runtime/debug"
	"sort"
	"sync"

	"qlbridge/internal/command"
	"qlbridge/internal/engine"
	"qlbridge/internal/entity"
	"qlbridge/internal/log"
)

// Handler runs one console command
type Handler func(inv command.Invocation) error

// CommandDef describes a registered console command
type CommandDef struct {
	Name    string
	Usage   string
	MinArgs int // arguments after the command name
	Handler Handler
}

// Table is the command dispatch table
type Table struct {
	host engine.Host

	mu       sync.RWMutex
	commands map[string]*CommandDef
}

func NewTable(host engine.Host) *Table {
	return &Table{
		host:     host,
		commands: make(map[string]*CommandDef),
	}
}

// Register adds or replaces a command. Names are case-insensitive.
func (t *Table) Register(name, usage string, minArgs int, handler Handler) {
	inv := command.Parse(name, command.SourceConsole)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[inv.Name] = &CommandDef{
		Name:    inv.Name,
		Usage:   usage,
		MinArgs: minArgs,
		Handler: handler,
	}
}

// Lookup returns the command registered under name
func (t *Table) Lookup(name string) (*CommandDef, bool) {
	inv := command.Parse(name, command.SourceConsole)

	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.commands[inv.Name]
	return def, ok
}

// Names returns every registered command name, sorted
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute tokenizes and runs one console line. It returns false when the
// line is empty or names no registered command. Handler failures, including
// panics, never escape.
func (t *Table) Execute(line string, source command.Source) bool {
	inv := command.Parse(line, source)
	if inv.Empty() {
		return false
	}

	def, ok := t.Lookup(inv.Name)
	if !ok {
		t.host.Printf("Unknown command \"%s\"\n", inv.Argv(0))
		return false
	}

	log.LogCommandLine(source.String(), line)
	t.run(def, inv)
	return true
}

func (t *Table) run(def *CommandDef, inv command.Invocation) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("PANIC in command handler", "command", def.Name, "error", r, "stack", string(debug.Stack()))
			t.host.Printf("Command %s failed unexpectedly.\n", def.Name)
		}
	}()

	if inv.Argc()-1 < def.MinArgs {
		t.report(def, &command.UsageError{Usage: def.Usage})
		return
	}

	if err := def.Handler(inv); err != nil {
		t.report(def, err)
	}
}

// report prints operator diagnostics to the console and logs anything else
func (t *Table) report(def *CommandDef, err error) {
	var usage *command.UsageError
	var rangeErr *entity.RangeError
	var inactive *entity.InactiveTargetError

	switch {
	case errors.As(err, &usage), errors.As(err, &rangeErr), errors.As(err, &inactive):
		t.host.Printf("%s\n", err.Error())
	default:
		log.Error("Command failed", "command", def.Name, "error", err)
		t.host.Printf("%s: %v\n", def.Name, err)
	}
}
