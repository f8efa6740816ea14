// Package entity validates client indices against the host entity table.
package entity

import (
	"fmt"

	"qlbridge/internal/engine"
)

// RangeError reports a client index outside the accepted range
type RangeError struct {
	Index int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("client_id must be a number between 0 and %d.", e.Max)
}

// InactiveTargetError reports a valid index whose entity is not in play
type InactiveTargetError struct {
	Index int
}

func (e *InactiveTargetError) Error() string {
	return "The player is currently not active."
}

// Accessor looks up entities by client index. Results are never cached:
// slots are reused as players connect and disconnect, so every call goes back
// to the host.
type Accessor struct {
	host engine.Host
}

func NewAccessor(host engine.Host) *Accessor {
	return &Accessor{host: host}
}

// ValidateAndFetch checks 0 <= index <= MaxClients and returns the entity in
// that slot. The returned entity may be nil or not in use; the reference is
// only valid for the current dispatch call.
func (a *Accessor) ValidateAndFetch(index int) (*engine.Entity, error) {
	maxClients := a.host.MaxClients()
	if index < 0 || index > maxClients {
		return nil, &RangeError{Index: index, Max: maxClients}
	}
	return a.host.Entity(index), nil
}

// FetchLiving is ValidateAndFetch plus the requirement that the entity is in
// use with positive health.
func (a *Accessor) FetchLiving(index int) (*engine.Entity, error) {
	ent, err := a.ValidateAndFetch(index)
	if err != nil {
		return nil, err
	}
	if ent == nil || !ent.InUse || ent.Health <= 0 {
		return nil, &InactiveTargetError{Index: index}
	}
	return ent, nil
}

// Name returns the display name of the client in a slot
func (a *Accessor) Name(index int) string {
	return a.host.ClientName(index)
}
