package scripting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qlbridge/internal/actions"
	"qlbridge/internal/command"
	"qlbridge/internal/engine"
	"qlbridge/internal/engine/sim"
	"qlbridge/internal/store"
)

type recordingExecutor struct {
	bridge *Bridge
	lines  []string
	held   []bool
}

func (e *recordingExecutor) Execute(line string, source command.Source) bool {
	e.lines = append(e.lines, source.String()+": "+line)
	e.held = append(e.held, e.bridge.lock.Held())
	return true
}

type fixture struct {
	host   *sim.Host
	bridge *Bridge
	store  *store.Store
	exec   *recordingExecutor
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := sim.New(8)
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := NewBridge(host, actions.New(host, st))
	b.SetVarStore(st)
	dir := t.TempDir()
	b.SetPluginDir(dir)
	exec := &recordingExecutor{bridge: b}
	b.SetExecutor(exec)

	return &fixture{host: host, bridge: b, store: st, exec: exec, dir: dir}
}

func (f *fixture) plugin(t *testing.T, name, source string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name+".lua"), []byte(source), 0o644))
}

func (f *fixture) init(t *testing.T) *Session {
	t.Helper()
	s, err := f.bridge.Initialize()
	require.NoError(t, err)
	return s
}

func TestInitialize_Twice(t *testing.T) {
	f := newFixture(t)
	s := f.init(t)

	again, err := f.bridge.Initialize()
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Nil(t, again)
	assert.Same(t, s, f.bridge.Session())
	assert.True(t, f.bridge.Initialized())
}

func TestFinalize_Uninitialized(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.bridge.Finalize(), ErrNotInitialized)
	assert.False(t, f.bridge.Initialized())
	assert.Nil(t, f.bridge.Session())
}

func TestFinalize_FiresUnloadAndDropsHandler(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "greeter", `
qlbridge.set_command_handler(function(args) return true end)
qlbridge.add_hook("unload", function() qlbridge.console_print("bye") end)
`)
	f.init(t)

	result, err := f.bridge.DispatchCommand("hi")
	require.NoError(t, err)
	assert.Equal(t, ResultHandled, result)

	require.NoError(t, f.bridge.Finalize())
	assert.Equal(t, 1, strings.Count(f.host.Console(), "bye\n"))
	assert.False(t, f.bridge.Initialized())

	result, err = f.bridge.DispatchCommand("hi")
	require.NoError(t, err)
	assert.Equal(t, ResultUnregistered, result)
}

func TestDispatchCommand_Uninitialized(t *testing.T) {
	f := newFixture(t)

	result, err := f.bridge.DispatchCommand("anything")
	require.NoError(t, err)
	assert.Equal(t, ResultUnregistered, result)
	assert.Empty(t, f.host.Console())
	assert.False(t, f.bridge.lock.Held())
}

func TestDispatchCommand_NoHandler(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	result, err := f.bridge.DispatchCommand("anything")
	require.NoError(t, err)
	assert.Equal(t, ResultUnregistered, result)
	assert.Empty(t, f.host.Console())
}

func TestDispatchCommand_Results(t *testing.T) {
	tests := []struct {
		name    string
		handler string
		want    Result
		wantErr bool
	}{
		{"true", `return true`, ResultHandled, false},
		{"nil", `return nil`, ResultHandled, false},
		{"no return", ``, ResultHandled, false},
		{"string", `return "done"`, ResultHandled, false},
		{"zero", `return 0`, ResultHandled, false},
		{"false", `return false`, ResultDeclined, false},
		{"error", `error("boom")`, ResultDeclined, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.plugin(t, "handler", "qlbridge.set_command_handler(function(args) "+tt.handler+" end)")
			s := f.init(t)
			top := s.state.Top()

			result, err := f.bridge.DispatchCommand("x")
			assert.Equal(t, tt.want, result)
			if tt.wantErr {
				assert.ErrorContains(t, err, "boom")
			} else {
				assert.NoError(t, err)
			}
			assert.False(t, f.bridge.lock.Held())
			assert.Equal(t, top, s.state.Top())
		})
	}
}

func TestDispatchCommand_PassesArgs(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "echo", `
qlbridge.set_command_handler(function(args)
	qlbridge.console_print("got [" .. args .. "]")
	return args ~= "nope"
end)
`)
	f.init(t)

	result, err := f.bridge.DispatchCommand("!elo Anarki")
	require.NoError(t, err)
	assert.Equal(t, ResultHandled, result)
	assert.Contains(t, f.host.Console(), "got [!elo Anarki]\n")

	result, err = f.bridge.DispatchCommand("nope")
	require.NoError(t, err)
	assert.Equal(t, ResultDeclined, result)
}

func TestDispatchCommand_HandlerCanBeCleared(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "once", `
qlbridge.set_command_handler(function(args)
	qlbridge.set_command_handler(nil)
	return true
end)
`)
	f.init(t)

	result, _ := f.bridge.DispatchCommand("a")
	assert.Equal(t, ResultHandled, result)
	result, _ = f.bridge.DispatchCommand("b")
	assert.Equal(t, ResultUnregistered, result)
}

func TestRestart_FromUninitialized(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "tracker", `
qlbridge.add_hook("new_game", function(restart)
	qlbridge.console_print("new_game " .. tostring(restart))
end)
`)

	require.NoError(t, f.bridge.Restart())

	assert.True(t, f.bridge.Initialized())
	assert.Equal(t, 1, strings.Count(f.host.Console(), "new_game "))
	assert.Contains(t, f.host.Console(), "new_game false\n")
	assert.Contains(t, f.host.Console(), "Restarting scripting runtime...")
}

func TestRestart_FromInitialized(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "tracker", `
counter = (counter or 0) + 1
qlbridge.add_hook("new_game", function(restart)
	qlbridge.console_print("new_game counter=" .. counter)
end)
qlbridge.add_hook("unload", function() qlbridge.console_print("unloaded") end)
qlbridge.set_command_handler(function(args) return true end)
`)
	first := f.init(t)

	require.NoError(t, f.bridge.Restart())

	second := f.bridge.Session()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, strings.Count(f.host.Console(), "unloaded\n"))
	// globals do not survive a restart
	assert.Equal(t, 1, strings.Count(f.host.Console(), "new_game counter=1\n"))

	result, err := f.bridge.DispatchCommand("x")
	require.NoError(t, err)
	assert.Equal(t, ResultHandled, result)
}

func TestRestart_HookFailureStillInitializes(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "broken", `qlbridge.add_hook("new_game", function() error("no map") end)`)

	err := f.bridge.Restart()
	assert.ErrorContains(t, err, "no map")
	assert.True(t, f.bridge.Initialized())
	assert.False(t, f.bridge.lock.Held())
}

func TestNewGame(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "tracker", `
qlbridge.add_hook("new_game", function(restart)
	qlbridge.console_print("new_game " .. tostring(restart))
end)
`)

	require.NoError(t, f.bridge.NewGame(true))
	assert.Empty(t, f.host.Console())

	f.init(t)
	require.NoError(t, f.bridge.NewGame(true))
	assert.Equal(t, "new_game true\n", f.host.Console())
}

func TestDispatchRcon(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "rcon", `
qlbridge.add_hook("rcon", function(line, who)
	qlbridge.console_print(who .. " ran " .. line)
end)
`)

	assert.ErrorIs(t, f.bridge.DispatchRcon("kick 3"), ErrNotInitialized)

	f.init(t)
	require.NoError(t, f.bridge.DispatchRcon("kick 3"))
	assert.Equal(t, "owner ran kick 3\n", f.host.Console())
}

func TestDispatchRcon_NoHook(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	assert.NoError(t, f.bridge.DispatchRcon("kick 3"))
	assert.Equal(t, "No rcon hook is registered, command ignored.\n", f.host.Console())
	assert.Empty(t, f.host.ServerCommands())
}

func TestConsoleCommand_RunsAfterLockRelease(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "relay", `
qlbridge.set_command_handler(function(args)
	qlbridge.console_command("slap " .. args)
	qlbridge.console_command("print done")
	return true
end)
`)
	f.init(t)

	result, err := f.bridge.DispatchCommand("3")
	require.NoError(t, err)
	assert.Equal(t, ResultHandled, result)

	assert.Equal(t, []string{"script: slap 3", "script: print done"}, f.exec.lines)
	assert.Equal(t, []bool{false, false}, f.exec.held)
}

func TestConsoleCommand_WithoutExecutorIsDropped(t *testing.T) {
	f := newFixture(t)
	f.bridge.SetExecutor(nil)
	f.plugin(t, "relay", `qlbridge.set_command_handler(function(args) qlbridge.console_command("slay 1") end)`)
	f.init(t)

	_, err := f.bridge.DispatchCommand("x")
	require.NoError(t, err)
	assert.Empty(t, f.bridge.pending)
}

func TestAPI_PlayersAndActions(t *testing.T) {
	f := newFixture(t)
	f.host.Connect(2, "Anarki", 100)
	f.plugin(t, "admin", `
qlbridge.set_command_handler(function(args)
	qlbridge.console_print("max " .. qlbridge.max_clients())
	qlbridge.console_print("name " .. qlbridge.player_name(2))
	qlbridge.console_print("empty " .. tostring(qlbridge.player_name(5)))
	qlbridge.console_print("in_use " .. tostring(qlbridge.player_in_use(2)) .. " " .. tostring(qlbridge.player_in_use(99)))
	local ok = qlbridge.slap(2, 30)
	qlbridge.console_print("slap " .. tostring(ok) .. " health " .. qlbridge.player_health(2))
	local ok2, msg = qlbridge.slay(6)
	qlbridge.console_print("slay " .. tostring(ok2) .. " " .. msg)
	return true
end)
`)
	f.init(t)

	_, err := f.bridge.DispatchCommand("")
	require.NoError(t, err)

	out := f.host.Console()
	assert.Contains(t, out, "max 8\n")
	assert.Contains(t, out, "name Anarki\n")
	assert.Contains(t, out, "empty nil\n")
	assert.Contains(t, out, "in_use true false\n")
	assert.Contains(t, out, "slap true health 70\n")
	assert.Contains(t, out, "slay false The player is currently not active.\n")
	assert.Equal(t, 70, f.host.Entity(2).Health)
}

func TestAPI_Messaging(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "msg", `
qlbridge.set_command_handler(function(args)
	qlbridge.print("hello")
	qlbridge.center_print("big")
	qlbridge.send_server_command(nil, "cs 5 x")
	qlbridge.send_server_command(3, "chat hi")
end)
`)
	f.init(t)

	_, err := f.bridge.DispatchCommand("")
	require.NoError(t, err)

	assert.Equal(t, []sim.ServerCommand{
		{Target: engine.AllClients, Text: "print \"hello\n\"\n"},
		{Target: engine.AllClients, Text: "cp \"big\"\n"},
		{Target: engine.AllClients, Text: "cs 5 x\n"},
		{Target: 3, Text: "chat hi\n"},
	}, f.host.ServerCommands())
}

func TestAPI_SendServerCommandRejectsBadTarget(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "msg", `qlbridge.set_command_handler(function(args) qlbridge.send_server_command(42, "x") end)`)
	f.init(t)

	result, err := f.bridge.DispatchCommand("")
	assert.Equal(t, ResultDeclined, result)
	assert.ErrorContains(t, err, "out of range")
	assert.Empty(t, f.host.ServerCommands())
}

func TestAPI_Database(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "db", `
qlbridge.set_command_handler(function(args)
	local n = tonumber(qlbridge.db_get("slaps") or "0") + 1
	qlbridge.db_set("slaps", n)
	qlbridge.db_set("scratch", "x")
	qlbridge.db_delete("scratch")
	return true
end)
`)
	f.init(t)

	for i := 0; i < 3; i++ {
		_, err := f.bridge.DispatchCommand("")
		require.NoError(t, err)
	}

	ctx := context.Background()
	value, ok, err := f.store.GetVar(ctx, "slaps")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", value)

	_, ok, err = f.store.GetVar(ctx, "scratch")
	require.NoError(t, err)
	assert.False(t, ok)

	// values survive a runtime restart
	require.NoError(t, f.bridge.Restart())
	_, err = f.bridge.DispatchCommand("")
	require.NoError(t, err)
	value, _, _ = f.store.GetVar(ctx, "slaps")
	assert.Equal(t, "4", value)
}

func TestAPI_DatabaseNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.bridge.SetVarStore(nil)
	f.plugin(t, "db", `qlbridge.set_command_handler(function(args) return qlbridge.db_get("k") end)`)
	f.init(t)

	_, err := f.bridge.DispatchCommand("")
	assert.ErrorContains(t, err, "no database configured")
}

func TestAPI_UnknownHookEvent(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "bad", `qlbridge.add_hook("tick", function() end)`)
	s := f.init(t)

	assert.Empty(t, s.Plugins())
	assert.Contains(t, f.host.Console(), "Failed to load plugin bad")
	assert.Contains(t, f.host.Console(), "unknown event 'tick'")
}

func TestPlugins_LoadOrderAndFailures(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "zeta", "--@requires core\nqlbridge.console_print(\"zeta sees \" .. core_version)\n")
	f.plugin(t, "core", "core_version = \"1.0\"\n")
	f.plugin(t, "broken", "this is not lua\n")

	s := f.init(t)

	assert.Equal(t, []string{"core", "zeta"}, s.Plugins())
	assert.Contains(t, f.host.Console(), "zeta sees 1.0\n")
	assert.Contains(t, f.host.Console(), "Failed to load plugin broken")
	assert.Equal(t, 0, s.HookCount(EventNewGame))
}

func TestPlugins_MissingDirectory(t *testing.T) {
	f := newFixture(t)
	f.bridge.SetPluginDir(filepath.Join(f.dir, "missing"))

	s := f.init(t)
	assert.Empty(t, s.Plugins())
}

func TestHookErrorsDoNotStopOtherHooks(t *testing.T) {
	f := newFixture(t)
	f.plugin(t, "hooks", `
qlbridge.add_hook("rcon", function() error("first") end)
qlbridge.add_hook("rcon", function(line) qlbridge.console_print("second " .. line) end)
`)
	s := f.init(t)
	require.Equal(t, 2, s.HookCount(EventRcon))

	err := f.bridge.DispatchRcon("status")
	assert.ErrorContains(t, err, "first")
	assert.Contains(t, f.host.Console(), "second status\n")
	assert.False(t, errors.Is(err, ErrNotInitialized))
}
