package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"qlbridge/internal/config"
	"qlbridge/internal/console"
	"qlbridge/internal/store"
)

func main() {
	var (
		dbPath = flag.String("db", "qlbridge.db", "Path to the qlbridge database")
		limit  = flag.Int("limit", 20, "Number of most recent actions to print")
	)
	flag.Parse()

	if *limit <= 0 {
		config.Exitf("-limit must be positive, got %d", *limit)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		config.Exitf("Error opening database: %v", err)
	}
	defer st.Close()

	actions, err := st.RecentActions(context.Background(), *limit)
	if err != nil {
		config.Exitf("Error reading audit log: %v", err)
	}

	printActions(os.Stdout, actions)
}

// printActions writes actions oldest first, one per line
func printActions(w io.Writer, actions []store.Action) {
	if len(actions) == 0 {
		fmt.Fprintln(w, "No admin actions recorded.")
		return
	}
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		fmt.Fprintf(w, "%s #%d %-4s client %d (%s) damage %d health %d\n",
			a.CreatedAt.Local().Format(time.DateTime), a.ID, a.Kind, a.ClientIndex,
			console.StripColors(a.ClientName), a.Damage, a.HealthAfter)
	}
}
