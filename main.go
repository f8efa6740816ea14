package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"qlbridge/internal/actions"
	"qlbridge/internal/command"
	"qlbridge/internal/config"
	"qlbridge/internal/console"
	"qlbridge/internal/dispatch"
	"qlbridge/internal/engine/sim"
	"qlbridge/internal/log"
	"qlbridge/internal/scripting"
	"qlbridge/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const startingHealth = 125

func main() {
	// Set up global panic handler first
	defer func() {
		if r := recover(); r != nil {
			log.Error("GLOBAL PANIC recovered", "error", r, "stack", string(debug.Stack()))
			fmt.Fprintf(os.Stderr, "Application crashed. See the debug log for details.\n")
			os.Exit(1)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		config.Exitf("Invalid configuration: %v", err)
	}

	if err := log.SetFileOutput(cfg.LogFile); err != nil {
		fmt.Printf("Warning: Could not configure debug logging to file: %v\n", err)
	}
	defer log.Close()
	log.SetCommandJournal(cfg.CommandLog)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGABRT, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signalChan
		log.Error("SIGNAL RECEIVED", "signal", sig.String(), "stack", string(debug.Stack()))
		fmt.Fprintf(os.Stderr, "Application received signal %s. See %s for details.\n", sig.String(), cfg.LogFile)
		os.Exit(1)
	}()

	go func() {
		for {
			time.Sleep(30 * time.Second)
			log.Debug("HEARTBEAT: Application is alive")
		}
	}()

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Println("qlbridge operator console")
		fmt.Println("This application requires a terminal/TTY to run properly.")
		fmt.Println("Please run this in a proper terminal environment.")
		os.Exit(1)
	}

	host := sim.New(cfg.MaxClients)
	for i, name := range cfg.Players {
		host.Connect(i, name, startingHealth)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		config.Exitf("Error opening database: %v", err)
	}
	defer st.Close()

	acts := actions.New(host, st)
	acts.Gateway().SetLatin1(cfg.Latin1Output)
	bridge := scripting.NewBridge(host, acts)
	bridge.SetVarStore(st)
	bridge.SetPluginDir(cfg.PluginDir)

	table := dispatch.NewTable(host)
	dispatch.Install(table, acts, bridge, version)
	registerHarnessCommands(table, host)

	ui := console.New(table, fmt.Sprintf("qlbridge %s (%s, %s)", version, commit, date))
	host.SetOutput(ui)

	if _, err := bridge.Initialize(); err != nil {
		log.Error("Failed to initialize scripting runtime", "error", err)
		host.Printf("Failed to initialize scripting runtime: %v\n", err)
	}
	if err := bridge.NewGame(false); err != nil {
		host.Printf("new_game hooks failed: %v\n", err)
	}

	if err := ui.Run(); err != nil {
		fmt.Printf("Error running console: %v\n", err)
		os.Exit(1)
	}

	if err := bridge.Finalize(); err != nil {
		log.Warn("Scripting runtime finalize failed", "error", err)
	}
}

// registerHarnessCommands adds commands that stand in for players joining
// and leaving the simulated server
func registerHarnessCommands(table *dispatch.Table, host *sim.Host) {
	const connectUsage = "connect <client_id> <name>"
	table.Register("connect", connectUsage, 2, func(inv command.Invocation) error {
		index, err := inv.IntArg(1, connectUsage)
		if err != nil {
			return err
		}
		if index < 0 || index >= host.MaxClients() {
			return &command.UsageError{Usage: connectUsage}
		}
		host.Connect(index, inv.Argv(2), startingHealth)
		host.Printf("%s^7 connected\n", inv.Argv(2))
		return nil
	})

	const disconnectUsage = "disconnect <client_id>"
	table.Register("disconnect", disconnectUsage, 1, func(inv command.Invocation) error {
		index, err := inv.IntArg(1, disconnectUsage)
		if err != nil {
			return err
		}
		if index < 0 || index >= host.MaxClients() {
			return &command.UsageError{Usage: disconnectUsage}
		}
		host.Disconnect(index)
		return nil
	})

	table.Register("status", "status", 0, func(inv command.Invocation) error {
		var b strings.Builder
		b.WriteString("num health name\n")
		for i := 0; i < host.MaxClients(); i++ {
			ent := host.Entity(i)
			if ent == nil || !ent.InUse {
				continue
			}
			fmt.Fprintf(&b, "%3d %6d %s^7\n", i, ent.Health, host.ClientName(i))
		}
		host.Printf("%s", b.String())
		return nil
	})
}
