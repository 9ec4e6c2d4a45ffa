package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/procscan"
)

var flagPortsJSON bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List ports in use on this host",
	Long: `List ports in use, with protocol, state, and owning PID.

Uses lsof when available and falls back to ss. Parsing is best effort;
lines that do not fit the expected shape are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := procscan.ListPorts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}

		if flagPortsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ports)
		}

		for _, p := range ports {
			fmt.Printf("%5d  %-4s  %-12s  pid %d\n", p.Port, p.Protocol, p.State, p.PID)
		}
		return nil
	},
}

func init() {
	portsCmd.Flags().BoolVar(&flagPortsJSON, "json", false, "emit the port list as JSON")
	rootCmd.AddCommand(portsCmd)
}
