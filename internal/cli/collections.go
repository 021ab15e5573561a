package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

func checkCollection(name string) error {
	if !slices.Contains(collectionNames, name) {
		return fmt.Errorf("unknown collection %q (valid: %s)", name, strings.Join(collectionNames, ", "))
	}
	return nil
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCmd(flags *rootFlags) *cobra.Command {
	var (
		cursor string
		limit  int
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List records of a collection",
		Long: `List prints one page of users or chats in insertion order. Pass the
printed cursor back with --cursor to fetch the next page, or use --all.

Example:
  apexdraft list users --limit 2
  apexdraft list users --cursor <cursor>
  apexdraft list chats --all --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := checkCollection(name); err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStore(ctx, cmd, flags, nil)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.ensureSeed(ctx); err != nil {
				return commandError(err)
			}

			out := cmd.OutOrStdout()
			switch name {
			case types.UsersCollection:
				return commandError(listPages(ctx, out, flags.jsonMode, cursor, limit, all, st.users.List,
					func(u types.User) string { return u.ID + "\t" + u.Name }))
			default:
				return commandError(listPages(ctx, out, flags.jsonMode, cursor, limit, all, st.chats.List,
					func(c types.Chat) string {
						return fmt.Sprintf("%s\t%s\t(%d messages)", c.ID, c.Title, len(c.Messages))
					}))
			}
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume after a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default from config)")
	cmd.Flags().BoolVar(&all, "all", false, "follow cursors to the end of the collection")
	return cmd
}

// listPages prints one page, or every page when all is set. In JSON mode a
// single page prints the page object and --all prints the item array.
func listPages[T any](
	ctx context.Context, w io.Writer, jsonMode bool, cursor string, limit int, all bool,
	list func(context.Context, string, int) (types.Page[T], error),
	line func(T) string,
) error {
	var items []T
	for {
		page, err := list(ctx, cursor, limit)
		if err != nil {
			return err
		}
		if !all {
			if jsonMode {
				return writeJSONOut(w, page)
			}
			for _, it := range page.Items {
				fmt.Fprintln(w, line(it))
			}
			if page.Next != nil {
				fmt.Fprintf(w, "next: %s\n", *page.Next)
			}
			return nil
		}
		items = append(items, page.Items...)
		if page.Next == nil {
			break
		}
		cursor = *page.Next
	}

	if jsonMode {
		if items == nil {
			items = []T{}
		}
		return writeJSONOut(w, items)
	}
	for _, it := range items {
		fmt.Fprintln(w, line(it))
	}
	return nil
}

func newCreateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create <user|chat> <name or title>",
		Short: "Create a user or a chat board",
		Long: `Create adds a user with the given name or a chat board with the given
title. The id is generated.

Example:
  apexdraft create user "Max"
  apexdraft create chat "Paddock"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, text := args[0], strings.Join(args[1:], " ")
			if kind != "user" && kind != "chat" {
				return fmt.Errorf("unknown kind %q (valid: user, chat)", kind)
			}
			ctx := cmd.Context()
			st, err := openStore(ctx, cmd, flags, nil)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.ensureSeed(ctx); err != nil {
				return commandError(err)
			}

			var (
				created any
				id      string
			)
			if kind == "user" {
				u, err := st.users.Add(ctx, text)
				if err != nil {
					return commandError(err)
				}
				created, id = u, u.ID
			} else {
				c, err := st.chats.Add(ctx, text)
				if err != nil {
					return commandError(err)
				}
				created, id = c.Summary(), c.ID
			}
			if flags.jsonMode {
				return writeJSONOut(cmd.OutOrStdout(), created)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// deleteResult is printed by delete in JSON mode.
type deleteResult struct {
	Collection   string   `json:"collection"`
	IDs          []string `json:"ids"`
	DeletedCount int      `json:"deletedCount"`
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>...",
		Short: "Delete records by id",
		Long: `Delete removes the given ids from a collection. Ids that do not exist
are ignored; the number of records actually removed is reported.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ids := args[0], args[1:]
			if err := checkCollection(name); err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStore(ctx, cmd, flags, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			del := st.users.DeleteMany
			if name == types.ChatsCollection {
				del = st.chats.DeleteMany
			}
			n, err := del(ctx, ids)
			if err != nil {
				return commandError(err)
			}
			if flags.jsonMode {
				return writeJSONOut(cmd.OutOrStdout(), deleteResult{Collection: name, IDs: ids, DeletedCount: n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d\n", n, len(ids))
			return nil
		},
	}
}
