package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagPanesFilter string

var panesCmd = &cobra.Command{
	Use:   "panes",
	Short: "List all pane targets",
	Long: `List all terminal multiplexer panes as structured targets.

Each line is a target of the form session:window.pane that can be passed
to other commands (capture, send). Optionally filter by session name
using a regex pattern. With --verbose, the native handle and current
command are shown alongside each target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		panes, err := m.ListPanes(cmd.Context(), flagPanesFilter)
		if err != nil {
			return fmt.Errorf("failed to list panes: %w", err)
		}

		for _, p := range panes {
			if flagVerbose {
				fmt.Printf("%s\t%s\t%s\n", p.Target, p.Native, p.Command)
				continue
			}
			fmt.Println(p.Target)
		}
		return nil
	},
}

func init() {
	panesCmd.Flags().StringVar(&flagPanesFilter, "filter", "", "regex pattern to filter by session name")
	rootCmd.AddCommand(panesCmd)
}
