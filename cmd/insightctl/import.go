package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/messages"
)

func newImportCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Import JSONL message history into the local message store",
		Long: `Import messages from a JSON Lines file into the SQLite message store
read by insightd. One message per line:

  {"conversation_id":"conv-42","sender_id":"u1","sender_name":"Ada","text":"...","timestamp":1760600000000}

Examples:
  # Import a file into the default store
  insightctl import history.jsonl

  # Import from stdin into another database
  cat history.jsonl | insightctl import --db ./messages.db -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			path, err := config.DataPath(dbPath)
			if err != nil {
				return err
			}
			store, err := messages.NewSQLiteStore(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := messages.ImportJSONL(cmd.Context(), store, in)
			if err != nil {
				return fmt.Errorf("import stopped after %d messages: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d messages\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", config.Default().Messages.SQLite.Path, "SQLite message database")
	return cmd
}
