package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/model"
)

var (
	flagWindowName    string
	flagSplitVertical bool
)

var windowCmd = &cobra.Command{
	Use:   "window <session>",
	Short: "Create a window in a session",
	Long: `Create a new window in a session, creating the session if it does
not exist yet, and print the new pane's target.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		target, err := m.NewWindow(cmd.Context(), args[0], flagWindowName)
		if err != nil {
			return fmt.Errorf("failed to create window in %q: %w", args[0], err)
		}
		fmt.Println(target)
		return nil
	},
}

var splitCmd = &cobra.Command{
	Use:   "split <target>",
	Short: "Split a pane and print the new pane's target",
	Long: `Split the target pane side by side, or top/bottom with --vertical,
and print the new pane's target.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		target, err := m.SplitPane(cmd.Context(), args[0], flagSplitVertical)
		if err != nil {
			return fmt.Errorf("failed to split pane %q: %w", args[0], err)
		}
		fmt.Println(target)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <target> <name>",
	Short: "Rename the window containing a pane",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		if err := m.RenameWindow(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to rename window of %q: %w", args[0], err)
		}
		return nil
	},
}

var killCmd = &cobra.Command{
	Use:   "kill <target|session>",
	Short: "Kill a pane or a whole session",
	Long: `Kill a pane given a structured target (session:window.pane), or a
whole session given a bare session name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		if model.IsValidTarget(args[0]) || model.IsNativeHandle(args[0]) {
			if err := m.KillPane(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to kill pane %q: %w", args[0], err)
			}
			return nil
		}
		if err := m.KillSession(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to kill session %q: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	windowCmd.Flags().StringVar(&flagWindowName, "name", "", "window name (default: multiplexer default)")
	splitCmd.Flags().BoolVar(&flagSplitVertical, "vertical", false, "stack the panes top/bottom instead of side by side")
	rootCmd.AddCommand(windowCmd, splitCmd, renameCmd, killCmd)
}
