package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/mux"
	"github.com/rixmerz/muxpilot/internal/safety"
)

var (
	flagRunTimeout time.Duration
	flagRunForce   bool
	flagRunJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a command once with a timeout and report how it ended",
	Long: `Run a command as a one-shot subprocess with combined output capture.

The command is validated against the destructive-command denylist first.
A run that exceeds the timeout is reported with a distinguished
"timeout" status rather than a bare error. The exit code of muxpilot
mirrors the command's outcome: 0 for ok, the command's exit code for
error, 124 for timeout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := args[0]
		cmdArgs := args[1:]

		v := &safety.Validator{AllowDangerous: flagRunForce}
		if err := v.Validate(command, cmdArgs); err != nil {
			return err
		}

		res := mux.Exec(cmd.Context(), flagRunTimeout, command, cmdArgs...)

		if flagRunJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else {
			fmt.Print(res.Output)
			if res.Status != mux.StatusOK {
				fmt.Fprintf(os.Stderr, "%s: %s (exit %d)\n",
					safety.FormatForDisplay(command, cmdArgs), res.Status, res.ExitCode)
			}
		}

		switch res.Status {
		case mux.StatusTimeout:
			os.Exit(124)
		case mux.StatusError:
			if res.ExitCode > 0 {
				os.Exit(res.ExitCode)
			}
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().DurationVar(&flagRunTimeout, "timeout", mux.DefaultExecTimeout, "kill the command after this long")
	runCmd.Flags().BoolVar(&flagRunForce, "force", false, "permit denylisted commands (injection checks still apply)")
	runCmd.Flags().BoolVar(&flagRunJSON, "json", false, "emit the result as JSON")
	rootCmd.AddCommand(runCmd)
}
