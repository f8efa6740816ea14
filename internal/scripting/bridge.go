// Package scripting embeds a Lua runtime and bridges console commands into
// handlers registered by scripts.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/go-lua"

	"qlbridge/internal/actions"
	"qlbridge/internal/command"
	"qlbridge/internal/engine"
	"qlbridge/internal/log"
)

var (
	ErrAlreadyInitialized = errors.New("scripting runtime is already initialized")
	ErrNotInitialized     = errors.New("scripting runtime is not initialized")
)

const (
	handlerKey = "qlbridge.command_handler"

	// maxFlushDepth bounds script commands that queue further script commands
	maxFlushDepth = 8
)

// Hook events scripts may subscribe to with qlbridge.add_hook
const (
	EventNewGame = "new_game"
	EventRcon    = "rcon"
	EventUnload  = "unload"
)

var knownEvents = map[string]bool{
	EventNewGame: true,
	EventRcon:    true,
	EventUnload:  true,
}

// VarStore persists script variables
type VarStore interface {
	GetVar(ctx context.Context, name string) (string, bool, error)
	SetVar(ctx context.Context, name, value string) error
	DeleteVar(ctx context.Context, name string) error
}

// Executor runs console lines queued by scripts
type Executor interface {
	Execute(line string, source command.Source) bool
}

// Session is a live interpreter. A nil *Session on the Bridge means the
// runtime is uninitialized.
type Session struct {
	state     *lua.State
	hooks     map[string]int
	plugins   []string
	startedAt time.Time
}

// Plugins returns the plugins loaded into the session, in load order
func (s *Session) Plugins() []string {
	return append([]string(nil), s.plugins...)
}

// HookCount returns how many hooks are registered for an event
func (s *Session) HookCount(event string) int {
	return s.hooks[event]
}

// StartedAt returns when the session was initialized
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Bridge owns the interpreter session and the protocol for calling into it
type Bridge struct {
	lock    Lock
	session *Session

	host      engine.Host
	actions   *actions.Actions
	vars      VarStore
	executor  Executor
	pluginDir string

	pendingMu  sync.Mutex
	pending    []string
	flushDepth int
}

// NewBridge creates a bridge with an uninitialized runtime
func NewBridge(host engine.Host, acts *actions.Actions) *Bridge {
	return &Bridge{
		host:    host,
		actions: acts,
	}
}

// SetVarStore sets the store behind qlbridge.db_* functions
func (b *Bridge) SetVarStore(vars VarStore) {
	b.vars = vars
}

// SetExecutor sets where qlbridge.console_command lines are executed
func (b *Bridge) SetExecutor(exec Executor) {
	b.executor = exec
}

// SetPluginDir sets the directory plugins are loaded from at Initialize.
// An empty dir loads no plugins.
func (b *Bridge) SetPluginDir(dir string) {
	b.pluginDir = dir
}

// Initialized reports whether a session is live
func (b *Bridge) Initialized() bool {
	guard := b.lock.Acquire()
	defer guard.Release()
	return b.session != nil
}

// Session returns the live session, or nil
func (b *Bridge) Session() *Session {
	guard := b.lock.Acquire()
	defer guard.Release()
	return b.session
}

// Initialize starts a new session and loads plugins. It fails with
// ErrAlreadyInitialized if a session is live.
func (b *Bridge) Initialize() (*Session, error) {
	var s *Session
	err := b.withLock(func() (err error) {
		s, err = b.initializeLocked()
		return err
	})
	b.flushPending()
	return s, err
}

// Finalize fires unload hooks and drops the session along with every
// reference held inside it, including the command handler.
func (b *Bridge) Finalize() error {
	err := b.withLock(b.finalizeLocked)
	b.flushPending()
	return err
}

// Restart finalizes any live session, initializes a new one and replays a
// new game notification, since the genuine one may have fired already.
func (b *Bridge) Restart() error {
	b.host.Printf("Restarting scripting runtime...\n")

	err := b.withLock(func() error {
		if b.session != nil {
			if err := b.finalizeLocked(); err != nil {
				return err
			}
		}
		if _, err := b.initializeLocked(); err != nil {
			return err
		}
		return b.runHooksLocked(EventNewGame, pushBool(false))
	})
	b.flushPending()
	return err
}

// NewGame notifies scripts that a game started. restart is true for a map
// restart. It does nothing while uninitialized.
func (b *Bridge) NewGame(restart bool) error {
	err := b.withLock(func() error {
		if b.session == nil {
			return nil
		}
		return b.runHooksLocked(EventNewGame, pushBool(restart))
	})
	b.flushPending()
	return err
}

// DispatchRcon hands a console line to the rcon hooks as if the server owner
// had issued it. Output is whatever the hooks print.
func (b *Bridge) DispatchRcon(args string) error {
	err := b.withLock(func() error {
		if b.session == nil {
			return ErrNotInitialized
		}
		if b.session.hooks[EventRcon] == 0 {
			log.Debug("Rcon line dropped, no rcon hook registered", "args", args)
			b.host.Printf("No rcon hook is registered, command ignored.\n")
			return nil
		}
		return b.runHooksLocked(EventRcon, func(l *lua.State) int {
			l.PushString(args)
			l.PushString("owner")
			return 2
		})
	})
	b.flushPending()
	return err
}

// DispatchCommand calls the registered command handler with args. Without a
// handler it is a silent no-op reporting ResultUnregistered. A handler that
// raises an error yields ResultDeclined and the error.
func (b *Bridge) DispatchCommand(args string) (Result, error) {
	result, err := b.callCommandHandler(args)
	b.flushPending()
	return result, err
}

func (b *Bridge) callCommandHandler(args string) (Result, error) {
	guard := b.lock.Acquire()
	defer guard.Release()

	s := b.session
	if s == nil {
		return ResultUnregistered, nil
	}

	l := s.state
	top := l.Top()
	// drops the handler and its result from the stack on every path
	defer l.SetTop(top)

	l.Field(lua.RegistryIndex, handlerKey)
	if !l.IsFunction(-1) {
		return ResultUnregistered, nil
	}

	l.PushString(args)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		log.Error("Command handler raised an error", "args", args, "error", err)
		return ResultDeclined, fmt.Errorf("command handler: %w", err)
	}

	if l.IsBoolean(-1) && !l.ToBoolean(-1) {
		return ResultDeclined, nil
	}
	return ResultHandled, nil
}

func (b *Bridge) withLock(fn func() error) error {
	guard := b.lock.Acquire()
	defer guard.Release()
	return fn()
}

func (b *Bridge) initializeLocked() (*Session, error) {
	if b.session != nil {
		return nil, ErrAlreadyInitialized
	}

	l := lua.NewState()
	lua.OpenLibraries(l)

	s := &Session{
		state:     l,
		hooks:     make(map[string]int),
		startedAt: time.Now(),
	}
	b.registerAPI(s)
	b.session = s

	if b.pluginDir != "" {
		b.loadPlugins(s)
	}

	log.Info("Scripting runtime initialized", "plugins", len(s.plugins))
	return s, nil
}

func (b *Bridge) finalizeLocked() error {
	if b.session == nil {
		return ErrNotInitialized
	}

	if err := b.runHooksLocked(EventUnload, nil); err != nil {
		log.Warn("Unload hooks failed", "error", err)
	}

	b.session = nil
	log.Info("Scripting runtime finalized")
	return nil
}

// runHooksLocked calls every hook registered for event in registration
// order. push places the hook arguments on the stack and returns their count.
// A failing hook does not stop the others.
func (b *Bridge) runHooksLocked(event string, push func(*lua.State) int) error {
	s := b.session
	l := s.state

	var errs []error
	for i := 1; i <= s.hooks[event]; i++ {
		top := l.Top()
		l.Field(lua.RegistryIndex, hookKey(event, i))
		if !l.IsFunction(-1) {
			l.SetTop(top)
			continue
		}

		argc := 0
		if push != nil {
			argc = push(l)
		}
		if err := l.ProtectedCall(argc, 0, 0); err != nil {
			log.Error("Hook raised an error", "event", event, "hook", i, "error", err)
			errs = append(errs, fmt.Errorf("%s hook %d: %w", event, i, err))
		}
		l.SetTop(top)
	}
	return errors.Join(errs...)
}

// enqueue schedules a console line to run once the current interpreter call
// has returned and released the lock
func (b *Bridge) enqueue(line string) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pending = append(b.pending, line)
}

func (b *Bridge) dequeue() (string, bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if len(b.pending) == 0 {
		return "", false
	}
	line := b.pending[0]
	b.pending = b.pending[1:]
	return line, true
}

func (b *Bridge) flushPending() {
	if b.executor == nil {
		b.pendingMu.Lock()
		b.pending = nil
		b.pendingMu.Unlock()
		return
	}
	if b.flushDepth >= maxFlushDepth {
		log.Warn("Script command nesting too deep, dropping queued commands")
		b.pendingMu.Lock()
		b.pending = nil
		b.pendingMu.Unlock()
		return
	}

	b.flushDepth++
	defer func() { b.flushDepth-- }()

	for {
		line, ok := b.dequeue()
		if !ok {
			return
		}
		b.executor.Execute(line, command.SourceScript)
	}
}

func hookKey(event string, n int) string {
	return fmt.Sprintf("qlbridge.hook.%s.%d", event, n)
}

func pushBool(v bool) func(*lua.State) int {
	return func(l *lua.State) int {
		l.PushBoolean(v)
		return 1
	}
}
