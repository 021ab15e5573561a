package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/apexdraft/internal/backup"
)

type backupResult struct {
	File    string `json:"file"`
	Entries int    `json:"entries"`
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the store to a JSONL file",
		Long: `Export writes every key (or every key under --prefix) to a JSONL file, one
{"key":...,"value":...} object per line. The file is replaced atomically.

Example:
  apexdraft export backup.jsonl
  apexdraft export users.jsonl --prefix users:`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, cmd, flags, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := backup.Export(ctx, st.kv, prefix, args[0])
			if err != nil {
				return commandError(err)
			}
			return printBackup(cmd, flags, backupResult{File: args[0], Entries: n}, "exported")
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only export keys with this prefix")
	return cmd
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a JSONL file written by export",
		Long: `Import writes every entry of a JSONL export into the store, overwriting
existing keys. Malformed lines are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, cmd, flags, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := backup.Import(ctx, st.kv, args[0])
			if err != nil {
				return commandError(err)
			}
			return printBackup(cmd, flags, backupResult{File: args[0], Entries: n}, "imported")
		},
	}
}

func printBackup(cmd *cobra.Command, flags *rootFlags, res backupResult, verb string) error {
	if flags.jsonMode {
		return writeJSONOut(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d entries (%s)\n", verb, res.Entries, res.File)
	return nil
}
