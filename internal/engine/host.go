// Package engine describes the host game server as seen by the bridge.
// Everything here is owned by the host; the bridge reads it and mutates only
// entity health and velocity.
package engine

// AllClients targets a server command at every connected client
const AllClients = -1

// Vec3 is a three component vector in engine units
type Vec3 [3]float32

// Entity is the host's record for the actor occupying a client slot
type Entity struct {
	Number   int
	InUse    bool
	Health   int
	Velocity Vec3
}

// EventKind identifies a network event attached to an entity
type EventKind int

const (
	EventPain EventKind = iota + 1
	EventDeath1
	EventGibPlayer
)

func (k EventKind) String() string {
	switch k {
	case EventPain:
		return "pain"
	case EventDeath1:
		return "death1"
	case EventGibPlayer:
		return "gib_player"
	default:
		return "unknown"
	}
}

// Host is the set of engine primitives the bridge consumes.
//
// All methods are called from the host's dispatch thread.
type Host interface {
	// MaxClients returns the configured client slot count
	MaxClients() int

	// Entity returns the entity for a client slot, or nil when the slot
	// has no player entity
	Entity(index int) *Entity

	// ClientName returns the display name of the client in a slot
	ClientName(index int) string

	// SendServerCommand sends a formatted server command to one client,
	// or to all of them when target is AllClients
	SendServerCommand(target int, text string)

	// AddEvent attaches a network event to an entity
	AddEvent(ent *Entity, kind EventKind, param int)

	// Printf writes to the local server console
	Printf(format string, args ...any)
}
