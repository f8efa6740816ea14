package dispatch

import (
	"errors"

	"qlbridge/internal/actions"
	"qlbridge/internal/command"
	"qlbridge/internal/engine"
	"qlbridge/internal/scripting"
)

const (
	slapUsage = "slap <client_id> [damage]"
	slayUsage = "slay <client_id>"
)

// Install registers the bridge's console commands and makes the table the
// executor for lines queued by scripts.
func Install(t *Table, acts *actions.Actions, bridge *scripting.Bridge, version string) {
	host := t.host

	t.Register("cmd", "cmd <server command>", 0, func(inv command.Invocation) error {
		return acts.SendServerCommand(inv.Args())
	})
	t.Register("cp", "cp <text>", 0, func(inv command.Invocation) error {
		return acts.CenterPrint(inv.Args())
	})
	t.Register("print", "print <text>", 0, func(inv command.Invocation) error {
		return acts.RegularPrint(inv.Args())
	})

	t.Register("slap", slapUsage, 1, func(inv command.Invocation) error {
		index, err := inv.IntArg(1, slapUsage)
		if err != nil {
			return err
		}
		damage := 0
		if inv.Argc() > 2 {
			if damage, err = inv.IntArg(2, slapUsage); err != nil {
				return err
			}
		}
		return acts.Slap(index, damage)
	})
	t.Register("slay", slayUsage, 1, func(inv command.Invocation) error {
		index, err := inv.IntArg(1, slayUsage)
		if err != nil {
			return err
		}
		return acts.Slay(index)
	})

	t.Register("pyrcon", "pyrcon <command>", 0, func(inv command.Invocation) error {
		err := bridge.DispatchRcon(inv.Args())
		if errors.Is(err, scripting.ErrNotInitialized) {
			host.Printf("Scripting runtime is not initialized.\n")
			return nil
		}
		return err
	})
	t.Register("py_command", "py_command <args>", 0, func(inv command.Invocation) error {
		result, err := bridge.DispatchCommand(inv.Args())
		if err != nil {
			return err
		}
		if result == scripting.ResultDeclined {
			host.Printf("The command failed to be executed. No script handler accepted it.\n")
		}
		return nil
	})
	t.Register("restart_python", "restart_python", 0, func(inv command.Invocation) error {
		return bridge.Restart()
	})
	t.Register("new_game", "new_game [restart]", 0, func(inv command.Invocation) error {
		return bridge.NewGame(inv.Argv(1) == "restart")
	})

	t.Register("qlbridge_version", "qlbridge_version", 0, func(inv command.Invocation) error {
		host.Printf("qlbridge %s\n", version)
		return nil
	})
	t.Register("cmdlist", "cmdlist", 0, func(inv command.Invocation) error {
		listCommands(host, t)
		return nil
	})

	bridge.SetExecutor(t)
}

func listCommands(host engine.Host, t *Table) {
	names := t.Names()
	for _, name := range names {
		def, _ := t.Lookup(name)
		host.Printf("  %s\n", def.Usage)
	}
	host.Printf("%d commands\n", len(names))
}
