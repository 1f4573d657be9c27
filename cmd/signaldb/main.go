// Command signaldb is the command-line front end for the signaldb
// storage and revisioning engine.
//
// Commands:
//
//	signaldb upsert <file.json>   Merge a batch of instruments from a JSON file
//	signaldb get <source> <ticker> Fetch an instrument by alias
//	signaldb find <key>=<value>   Find instruments by a property filter
//	signaldb list [source]        List tickers, optionally filtered by source
//	signaldb rollback <time>      Roll the database back to an instant
//	signaldb info                 Show collection counts
//
// Connection settings are read from the environment (mongodb_host,
// mongodb_port, mongodb_user, mongodb_pwd, signaldb_collection) unless
// overridden by the global --host/--port/--user/--pwd/--db flags.
package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.New()

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var conn connFlags

	root := &cobra.Command{
		Use:   "signaldb",
		Short: "Bitemporal market-data storage and revisioning engine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			traceID := uuid.NewString()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			log.WithField("trace_id", traceID).Debug("signaldb: invocation started")
			cmd.SetContext(withTraceID(cmd.Context(), traceID))
		},
	}

	root.PersistentFlags().StringVar(&conn.host, "host", "", "document store host (overrides mongodb_host)")
	root.PersistentFlags().IntVar(&conn.port, "port", 0, "document store port (overrides mongodb_port)")
	root.PersistentFlags().StringVar(&conn.user, "user", "", "document store user (overrides mongodb_user)")
	root.PersistentFlags().StringVar(&conn.pwd, "pwd", "", "document store password (overrides mongodb_pwd)")
	root.PersistentFlags().StringVar(&conn.db, "db", "", "database name (overrides signaldb_collection)")

	root.AddCommand(
		newUpsertCmd(&conn),
		newGetCmd(&conn),
		newFindCmd(&conn),
		newListCmd(&conn),
		newConsolidateCmd(&conn),
		newRollbackCmd(&conn),
		newInfoCmd(&conn),
	)
	return root
}
