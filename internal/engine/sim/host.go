// Package sim provides an in-memory engine.Host used by the operator harness
// and by tests.
package sim

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"qlbridge/internal/engine"
)

// ServerCommand is a recorded SendServerCommand call
type ServerCommand struct {
	Target int
	Text   string
}

// Event is a recorded AddEvent call
type Event struct {
	Entity int
	Kind   engine.EventKind
	Param  int
}

// Host is an engine.Host backed by plain slices
type Host struct {
	mu         sync.Mutex
	maxClients int
	entities   []engine.Entity
	names      []string

	commands []ServerCommand
	events   []Event
	console  strings.Builder
	output   io.Writer
}

// New creates a host with maxClients empty slots
func New(maxClients int) *Host {
	h := &Host{
		maxClients: maxClients,
		entities:   make([]engine.Entity, maxClients),
		names:      make([]string, maxClients),
	}
	for i := range h.entities {
		h.entities[i].Number = i
	}
	return h
}

// SetOutput mirrors console output and server commands to w
func (h *Host) SetOutput(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.output = w
}

// Connect puts a player into a slot
func (h *Host) Connect(index int, name string, health int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities[index] = engine.Entity{Number: index, InUse: true, Health: health}
	h.names[index] = name
}

// Disconnect frees a slot
func (h *Host) Disconnect(index int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities[index] = engine.Entity{Number: index}
	h.names[index] = ""
}

func (h *Host) MaxClients() int {
	return h.maxClients
}

func (h *Host) Entity(index int) *engine.Entity {
	if index < 0 || index >= len(h.entities) {
		return nil
	}
	return &h.entities[index]
}

func (h *Host) ClientName(index int) string {
	if index < 0 || index >= len(h.names) {
		return ""
	}
	return h.names[index]
}

func (h *Host) SendServerCommand(target int, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, ServerCommand{Target: target, Text: text})
	if h.output != nil {
		dest := "all"
		if target != engine.AllClients {
			dest = fmt.Sprintf("client %d", target)
		}
		fmt.Fprintf(h.output, "> %s: %s", dest, text)
	}
}

func (h *Host) AddEvent(ent *engine.Entity, kind engine.EventKind, param int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, Event{Entity: ent.Number, Kind: kind, Param: param})
}

func (h *Host) Printf(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	text := fmt.Sprintf(format, args...)
	h.console.WriteString(text)
	if h.output != nil {
		io.WriteString(h.output, text)
	}
}

// ServerCommands returns every server command sent so far
func (h *Host) ServerCommands() []ServerCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ServerCommand(nil), h.commands...)
}

// Events returns every event emitted so far
func (h *Host) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// Console returns everything printed to the local console
func (h *Host) Console() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.console.String()
}

// Reset clears recorded commands, events and console output
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = nil
	h.events = nil
	h.console.Reset()
}

var _ engine.Host = (*Host)(nil)
