package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/safety"
)

var (
	flagSendForce  bool
	flagSendDryRun bool
	flagSendKeys   bool
)

var sendCmd = &cobra.Command{
	Use:   "send <target> <command> [args...]",
	Short: "Type a command into a pane and press Enter",
	Long: `Send a command line into a terminal multiplexer pane.

The command is validated against a denylist of destructive commands
(rm, dd, mkfs, shutdown, ...) before anything touches the pane. Use
--force to override the denylist; chained or substituted destructive
commands are rejected regardless. The line is escaped so the pane's
shell receives it verbatim, followed by an explicit Enter.

With --keys, the arguments are sent as raw key sequences (e.g. "C-c",
"Enter") with no escaping, validation, or trailing Enter.

The target is session:window.pane or a native handle like "%12".`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		command := args[1]
		cmdArgs := args[2:]

		if !model.IsValidTarget(target) && !model.IsNativeHandle(target) {
			return fmt.Errorf("invalid target %q: want session:window.pane or a native handle", target)
		}

		if flagSendKeys {
			m, err := getMultiplexer()
			if err != nil {
				return err
			}
			for _, keys := range args[1:] {
				if err := m.SendKeys(cmd.Context(), target, keys); err != nil {
					return fmt.Errorf("failed to send keys to pane %q: %w", target, err)
				}
			}
			return nil
		}

		v := &safety.Validator{AllowDangerous: flagSendForce}

		if flagSendDryRun {
			ok, reason := v.Check(command, cmdArgs)
			if !ok {
				fmt.Printf("rejected: %s\n", reason)
				return nil
			}
			fmt.Printf("ok: %s\n", safety.FormatForDisplay(command, cmdArgs))
			return nil
		}

		if err := v.Validate(command, cmdArgs); err != nil {
			return err
		}

		m, err := getMultiplexer()
		if err != nil {
			return err
		}

		line := strings.Join(append([]string{command}, cmdArgs...), " ")
		if err := m.SendCommand(cmd.Context(), target, line); err != nil {
			return fmt.Errorf("failed to send to pane %q: %w", target, err)
		}

		if flagVerbose {
			fmt.Fprintf(os.Stderr, "sent: %s\n", safety.FormatForDisplay(command, cmdArgs))
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolVar(&flagSendForce, "force", false, "permit denylisted commands (injection checks still apply)")
	sendCmd.Flags().BoolVar(&flagSendDryRun, "dry-run", false, "validate and print the command without sending it")
	sendCmd.Flags().BoolVar(&flagSendKeys, "keys", false, "send raw key sequences instead of an escaped command line")
	rootCmd.AddCommand(sendCmd)
}
