package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"draftcrane-agent/internal/config"
	"draftcrane-agent/internal/draftstore"
	"draftcrane-agent/pkg/words"
)

// NewDraftsCommand creates the drafts command tree for inspecting the local
// draft store while the agent is offline.
func NewDraftsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect and manage the local draft store",
	}

	cmd.AddCommand(newDraftsListCommand())
	cmd.AddCommand(newDraftsShowCommand())
	cmd.AddCommand(newDraftsDeleteCommand())
	cmd.AddCommand(newDraftsClearCommand())

	return cmd
}

func newDraftsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != "sqlite" {
				return fmt.Errorf("drafts list requires the sqlite driver (configured: %s)", cfg.Store.Driver)
			}

			store, err := draftstore.OpenSQLite(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			drafts, err := store.ListDrafts(context.Background())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHAPTER\tVERSION\tWORDS\tSYNCED\tUPDATED")
			for _, d := range drafts {
				fmt.Fprintf(w, "%s\t%d\t%d\t%t\t%s\n",
					d.ChapterID, d.Version, d.WordCount, d.Synced,
					d.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func newDraftsShowCommand() *cobra.Command {
	var asText bool

	cmd := &cobra.Command{
		Use:   "show <chapter-id>",
		Short: "Print one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfiguredStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := store.LoadDraft(context.Background(), args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("no draft for chapter %s", args[0])
			}

			if asText {
				fmt.Println(words.StripTags(entry.Content))
				return nil
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}

	cmd.Flags().BoolVar(&asText, "text", false, "print plain text instead of JSON")
	return cmd
}

func newDraftsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chapter-id>",
		Short: "Delete one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfiguredStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return store.DeleteDraft(context.Background(), args[0])
		},
	}
}

func newDraftsClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openConfiguredStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return store.ClearAll(context.Background())
		},
	}
}

func openConfiguredStore() (draftstore.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}
