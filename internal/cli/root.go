package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for the agent CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draftcrane-agent",
		Short: "Local autosave agent for the DraftCrane editor",
		Long: `draftcrane-agent sits between the editor UI and the content service.
It keeps a durable local draft per chapter, debounces remote saves, detects
version conflicts, and streams save status to the UI.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewDraftsCommand())

	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
