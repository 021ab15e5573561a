package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/apexdraft/internal/backend"
)

// initResult is printed by init in JSON mode.
type initResult struct {
	ConfigFile string `json:"config_file"`
	Backend    string `json:"backend"`
	Store      string `json:"store"`
	Users      int    `json:"users"`
	Chats      int    `json:"chats"`
}

func newInitCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: `Create the configuration directory with a default config.yaml, open the
storage backend and write the seed users and chats to empty collections.
Running init again is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, cmd, flags, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ensureSeed(ctx); err != nil {
				return commandError(err)
			}
			users, err := st.users.Len(ctx)
			if err != nil {
				return commandError(err)
			}
			chats, err := st.chats.Len(ctx)
			if err != nil {
				return commandError(err)
			}

			res := initResult{
				ConfigFile: filepath.Join(st.configDir, configFileExt),
				Backend:    st.cfg.Backend,
				Store:      backend.Describe(st.cfg),
				Users:      users,
				Chats:      chats,
			}
			out := cmd.OutOrStdout()
			if flags.jsonMode {
				return json.NewEncoder(out).Encode(res)
			}
			fmt.Fprintf(out, "ApexDraft initialized (%s)\nconfig: %s\nusers: %d, chats: %d\n",
				res.Store, res.ConfigFile, res.Users, res.Chats)
			return nil
		},
	}
	cmd.Flags().String("seed-file", "", "YAML file with seed users and chats")
	return cmd
}
