package scripting

import (
	"context"

	"github.com/Shopify/go-lua"

	"qlbridge/internal/engine"
	"qlbridge/internal/log"
)

// registerAPI installs the qlbridge table into a new session. The functions
// run while the caller holds the bridge lock, so none of them may call back
// into the Bridge's locking methods.
func (b *Bridge) registerAPI(s *Session) {
	l := s.state
	lua.NewLibrary(l, []lua.RegistryFunction{
		{Name: "set_command_handler", Function: b.luaSetCommandHandler},
		{Name: "add_hook", Function: func(l *lua.State) int { return b.luaAddHook(s, l) }},
		{Name: "send_server_command", Function: b.luaSendServerCommand},
		{Name: "center_print", Function: b.luaCenterPrint},
		{Name: "print", Function: b.luaPrint},
		{Name: "console_print", Function: b.luaConsolePrint},
		{Name: "console_command", Function: b.luaConsoleCommand},
		{Name: "max_clients", Function: b.luaMaxClients},
		{Name: "player_name", Function: b.luaPlayerName},
		{Name: "player_health", Function: b.luaPlayerHealth},
		{Name: "player_in_use", Function: b.luaPlayerInUse},
		{Name: "slap", Function: b.luaSlap},
		{Name: "slay", Function: b.luaSlay},
		{Name: "db_get", Function: b.luaDBGet},
		{Name: "db_set", Function: b.luaDBSet},
		{Name: "db_delete", Function: b.luaDBDelete},
		{Name: "log", Function: b.luaLog},
	})
	l.SetGlobal("qlbridge")
}

// set_command_handler(fn | nil)
func (b *Bridge) luaSetCommandHandler(l *lua.State) int {
	if l.IsNoneOrNil(1) {
		l.PushNil()
	} else {
		lua.CheckType(l, 1, lua.TypeFunction)
		l.PushValue(1)
	}
	l.SetField(lua.RegistryIndex, handlerKey)
	return 0
}

// add_hook(event, fn)
func (b *Bridge) luaAddHook(s *Session, l *lua.State) int {
	event := lua.CheckString(l, 1)
	if !knownEvents[event] {
		lua.ArgumentError(l, 1, "unknown event '"+event+"'")
		return 0
	}
	lua.CheckType(l, 2, lua.TypeFunction)

	n := s.hooks[event] + 1
	l.PushValue(2)
	l.SetField(lua.RegistryIndex, hookKey(event, n))
	s.hooks[event] = n
	return 0
}

// send_server_command(target | nil, text)
func (b *Bridge) luaSendServerCommand(l *lua.State) int {
	target := engine.AllClients
	if !l.IsNoneOrNil(1) {
		target = lua.CheckInteger(l, 1)
	}
	text := lua.CheckString(l, 2)

	if target != engine.AllClients {
		if target < 0 || target >= b.host.MaxClients() {
			lua.ArgumentError(l, 1, "client id out of range")
			return 0
		}
	}
	b.actions.Gateway().RawTo(target, text)
	return 0
}

// center_print(text)
func (b *Bridge) luaCenterPrint(l *lua.State) int {
	b.actions.Gateway().BroadcastCentered(lua.CheckString(l, 1))
	return 0
}

// print(text)
func (b *Bridge) luaPrint(l *lua.State) int {
	b.actions.Gateway().Broadcast(lua.CheckString(l, 1))
	return 0
}

// console_print(text)
func (b *Bridge) luaConsolePrint(l *lua.State) int {
	b.host.Printf("%s\n", lua.CheckString(l, 1))
	return 0
}

// console_command(line) runs line through the command table after the
// current script call returns
func (b *Bridge) luaConsoleCommand(l *lua.State) int {
	b.enqueue(lua.CheckString(l, 1))
	return 0
}

// max_clients()
func (b *Bridge) luaMaxClients(l *lua.State) int {
	l.PushInteger(b.host.MaxClients())
	return 1
}

// player_name(i) returns nil for an empty or invalid slot
func (b *Bridge) luaPlayerName(l *lua.State) int {
	index := lua.CheckInteger(l, 1)
	ent, err := b.actions.Entities().ValidateAndFetch(index)
	if err != nil || ent == nil || !ent.InUse {
		l.PushNil()
		return 1
	}
	l.PushString(b.actions.Entities().Name(index))
	return 1
}

// player_health(i) returns nil for an empty or invalid slot
func (b *Bridge) luaPlayerHealth(l *lua.State) int {
	ent, err := b.actions.Entities().ValidateAndFetch(lua.CheckInteger(l, 1))
	if err != nil || ent == nil || !ent.InUse {
		l.PushNil()
		return 1
	}
	l.PushInteger(ent.Health)
	return 1
}

// player_in_use(i)
func (b *Bridge) luaPlayerInUse(l *lua.State) int {
	ent, err := b.actions.Entities().ValidateAndFetch(lua.CheckInteger(l, 1))
	l.PushBoolean(err == nil && ent != nil && ent.InUse)
	return 1
}

// slap(i, damage) returns true, or false and a message
func (b *Bridge) luaSlap(l *lua.State) int {
	index := lua.CheckInteger(l, 1)
	damage := lua.OptInteger(l, 2, 0)
	return pushOutcome(l, b.actions.Slap(index, damage))
}

// slay(i) returns true, or false and a message
func (b *Bridge) luaSlay(l *lua.State) int {
	return pushOutcome(l, b.actions.Slay(lua.CheckInteger(l, 1)))
}

// db_get(key) returns the stored string or nil
func (b *Bridge) luaDBGet(l *lua.State) int {
	key := lua.CheckString(l, 1)
	if b.vars == nil {
		lua.Errorf(l, "no database configured")
		return 0
	}
	value, ok, err := b.vars.GetVar(context.Background(), key)
	if err != nil {
		lua.Errorf(l, "db_get: %s", err.Error())
		return 0
	}
	if !ok {
		l.PushNil()
		return 1
	}
	l.PushString(value)
	return 1
}

// db_set(key, value)
func (b *Bridge) luaDBSet(l *lua.State) int {
	key := lua.CheckString(l, 1)
	value := lua.CheckString(l, 2)
	if b.vars == nil {
		lua.Errorf(l, "no database configured")
		return 0
	}
	if err := b.vars.SetVar(context.Background(), key, value); err != nil {
		lua.Errorf(l, "db_set: %s", err.Error())
	}
	return 0
}

// db_delete(key)
func (b *Bridge) luaDBDelete(l *lua.State) int {
	key := lua.CheckString(l, 1)
	if b.vars == nil {
		lua.Errorf(l, "no database configured")
		return 0
	}
	if err := b.vars.DeleteVar(context.Background(), key); err != nil {
		lua.Errorf(l, "db_delete: %s", err.Error())
	}
	return 0
}

// log(level, message)
func (b *Bridge) luaLog(l *lua.State) int {
	level := lua.CheckString(l, 1)
	msg := lua.CheckString(l, 2)
	switch level {
	case "debug":
		log.Debug(msg, "source", "script")
	case "warn":
		log.Warn(msg, "source", "script")
	case "error":
		log.Error(msg, "source", "script")
	default:
		log.Info(msg, "source", "script")
	}
	return 0
}

func pushOutcome(l *lua.State, err error) int {
	if err != nil {
		l.PushBoolean(false)
		l.PushString(err.Error())
		return 2
	}
	l.PushBoolean(true)
	return 1
}
