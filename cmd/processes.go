package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/procscan"
)

var (
	flagProcsJSON   bool
	flagProcsFilter string
	flagProcsTop    int
)

var processesCmd = &cobra.Command{
	Use:   "processes",
	Short: "List running processes",
	Long: `List running processes with CPU and memory usage.

Use --filter to restrict by name substring and --top to keep only the
heaviest CPU consumers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		procs, err := procscan.ListProcesses(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list processes: %w", err)
		}

		if flagProcsFilter != "" {
			kept := procs[:0]
			for _, p := range procs {
				if strings.Contains(p.Name, flagProcsFilter) {
					kept = append(kept, p)
				}
			}
			procs = kept
		}

		if flagProcsTop > 0 {
			sort.Slice(procs, func(i, j int) bool { return procs[i].CPUPercent > procs[j].CPUPercent })
			if len(procs) > flagProcsTop {
				procs = procs[:flagProcsTop]
			}
		}

		if flagProcsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(procs)
		}

		for _, p := range procs {
			fmt.Printf("%7d  %5.1f%%  %5.1f%%  %-4s  %s\n",
				p.PID, p.CPUPercent, p.MemPercent, p.Status, p.Name)
		}
		return nil
	},
}

func init() {
	processesCmd.Flags().BoolVar(&flagProcsJSON, "json", false, "emit the process list as JSON")
	processesCmd.Flags().StringVar(&flagProcsFilter, "filter", "", "keep only processes whose name contains this substring")
	processesCmd.Flags().IntVar(&flagProcsTop, "top", 0, "keep only the N heaviest CPU consumers")
	rootCmd.AddCommand(processesCmd)
}
