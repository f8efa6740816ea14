// Package actions implements the administrative commands that affect players
// and the print family.
package actions

import (
	"context"
	"fmt"
	"math/rand/v2"

	"qlbridge/internal/command"
	"qlbridge/internal/engine"
	"qlbridge/internal/entity"
	"qlbridge/internal/log"
	"qlbridge/internal/messaging"
	"qlbridge/internal/store"
)

const (
	// SlapHorizontalScale bounds the random horizontal knockback per axis
	SlapHorizontalScale = 200.0
	// SlapVerticalImpulse is added to vertical velocity on every slap
	SlapVerticalImpulse = 300.0
	// PainEventParam selects the pain100 sound on clients
	PainEventParam = 99
	// OverkillHealth is the health a slain player is left with
	OverkillHealth = -40
)

// Recorder receives completed actions for auditing
type Recorder interface {
	RecordAction(ctx context.Context, action store.Action) error
}

// Actions runs admin actions against the host
type Actions struct {
	host     engine.Host
	entities *entity.Accessor
	msg      *messaging.Gateway
	rng      *rand.Rand
	recorder Recorder
}

// New creates an Actions. recorder may be nil.
func New(host engine.Host, recorder Recorder) *Actions {
	return &Actions{
		host:     host,
		entities: entity.NewAccessor(host),
		msg:      messaging.New(host),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		recorder: recorder,
	}
}

// SetRand replaces the knockback random source
func (a *Actions) SetRand(rng *rand.Rand) {
	a.rng = rng
}

// Gateway returns the messaging gateway used for broadcasts
func (a *Actions) Gateway() *messaging.Gateway {
	return a.msg
}

// Entities returns the entity accessor
func (a *Actions) Entities() *entity.Accessor {
	return a.entities
}

// Slap knocks a living player around and optionally damages them. Damage 0
// is cosmetic and never changes health.
func (a *Actions) Slap(index, damage int) error {
	if damage < 0 {
		return &command.UsageError{Usage: "slap <client_id> [damage]"}
	}

	ent, err := a.entities.FetchLiving(index)
	if err != nil {
		return err
	}

	name := a.entities.Name(index)
	a.host.Printf("Slapping...\n")
	if damage != 0 {
		a.msg.Broadcast(fmt.Sprintf("%s^7 was slapped for %d damage!", name, damage))
	} else {
		a.msg.Broadcast(fmt.Sprintf("%s^7 was slapped!", name))
	}

	ent.Velocity[0] += a.signedUnit() * SlapHorizontalScale
	ent.Velocity[1] += a.signedUnit() * SlapHorizontalScale
	ent.Velocity[2] += SlapVerticalImpulse
	ent.Health -= damage

	if ent.Health > 0 {
		a.host.AddEvent(ent, engine.EventPain, PainEventParam)
	} else {
		a.host.AddEvent(ent, engine.EventDeath1, ent.Number)
	}

	a.record("slap", index, name, damage, ent.Health)
	return nil
}

// Slay kills a living player outright
func (a *Actions) Slay(index int) error {
	ent, err := a.entities.FetchLiving(index)
	if err != nil {
		return err
	}

	name := a.entities.Name(index)
	a.host.Printf("Slaying player...\n")
	a.msg.Broadcast(fmt.Sprintf("%s^7 was slain!", name))
	log.Debug("Slaying player", "client", index, "name", name)

	ent.Health = OverkillHealth
	a.host.AddEvent(ent, engine.EventGibPlayer, ent.Number)

	a.record("slay", index, name, 0, ent.Health)
	return nil
}

// SendServerCommand forwards text verbatim to every client. Empty text
// still sends the bare newline.
func (a *Actions) SendServerCommand(args string) error {
	a.msg.Raw(args)
	return nil
}

// CenterPrint shows text in the centre of every client's screen
func (a *Actions) CenterPrint(args string) error {
	a.msg.BroadcastCentered(args)
	return nil
}

// RegularPrint prints text in every client's message area
func (a *Actions) RegularPrint(args string) error {
	a.msg.Broadcast(args)
	return nil
}

// signedUnit returns a uniform value in [-1, 1)
func (a *Actions) signedUnit() float32 {
	return float32(a.rng.Float64()*2 - 1)
}

func (a *Actions) record(kind string, index int, name string, damage, health int) {
	if a.recorder == nil {
		return
	}
	err := a.recorder.RecordAction(context.Background(), store.Action{
		Kind:        kind,
		ClientIndex: index,
		ClientName:  name,
		Damage:      damage,
		HealthAfter: health,
	})
	if err != nil {
		log.Error("Failed to record admin action", "kind", kind, "client", index, "error", err)
	}
}
