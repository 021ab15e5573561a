// Package cli implements the apexdraft command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is the release version, overridden at build time with -ldflags -X.
var Version = "0.1.0-dev"

const modulePath = "github.com/mesh-intelligence/apexdraft"

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	jsonMode  bool
}

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// sysError marks err as a system failure (exit code 2).
func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitSysError, err: err}
}

// NewRootCmd creates the top-level "apexdraft" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "apexdraft",
		Short: "Backend for the ApexDraft fantasy racing dashboard",
		Long: "apexdraft serves the ApexDraft JSON API (users, chat boards, driver data)\n" +
			"and manages its paginated entity store.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "sqlite data directory (default: $(CWD)/.apexdraft-db)")
	pf.StringVar(&flags.backend, "backend", "", "storage backend: sqlite, redis or postgres")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(flags),
		newServeCmd(flags),
		newListCmd(flags),
		newCreateCmd(flags),
		newDeleteCmd(flags),
		newExportCmd(flags),
		newImportCmd(flags),
	)
	return root
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the apexdraft version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "apexdraft v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
