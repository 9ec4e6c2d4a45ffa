package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"github.com/rixmerz/muxpilot/internal/bus"
	"github.com/rixmerz/muxpilot/internal/classify"
	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/stream"
	"github.com/rixmerz/muxpilot/internal/tail"
)

var (
	flagErrorsTarget   string
	flagErrorsLanguage string
	flagErrorsJSON     bool
	flagErrorsTop      int
	flagErrorsRecent   int
)

// errorsReport is the JSON shape of a one-shot classification run.
type errorsReport struct {
	Target   string              `json:"target"`
	Counts   stream.Counts       `json:"counts"`
	TopFiles []stream.NamedCount `json:"top_files,omitempty"`
	TopKinds []stream.NamedCount `json:"top_kinds,omitempty"`
	Recent   []model.Diagnostic  `json:"recent,omitempty"`
}

var errorsCmd = &cobra.Command{
	Use:   "errors [files...]",
	Short: "Classify log files once and summarize the errors",
	Long: `Run the pattern classification engine over log files and print a
summary of the errors, warnings, and info lines found.

Reads the named files, or stdin when none are given. Use --language to
prefer one language's patterns when several could match, and --json for
machine-readable output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tailer, err := tail.New()
		if err != nil {
			return fmt.Errorf("tailer: %w", err)
		}
		defer tailer.StopAll()

		b := bus.New()
		defer b.Close()

		coord := stream.NewCoordinator(stream.Config{
			Engine: classify.NewEngine(),
			Tailer: tailer,
			Bus:    b,
		})

		if len(args) == 0 {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			coord.ClassifyText(flagErrorsTarget, string(data), flagErrorsLanguage)
		}
		// The coordinator is safe for concurrent classification; only the
		// relative order of lines from different files is unspecified.
		var g errgroup.Group
		g.SetLimit(4)
		for _, path := range args {
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				coord.ClassifyText(flagErrorsTarget, string(data), flagErrorsLanguage)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		report := errorsReport{
			Target:   flagErrorsTarget,
			Counts:   coord.Summary(flagErrorsTarget, stream.WindowAll),
			TopFiles: coord.TopFiles(flagErrorsTop, stream.WindowAll),
			TopKinds: coord.TopKinds(flagErrorsTop, stream.WindowAll),
			Recent:   coord.Recent(flagErrorsTarget, flagErrorsRecent),
		}

		if flagErrorsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("errors: %d  warnings: %d  info: %d\n",
			report.Counts.Errors, report.Counts.Warnings, report.Counts.Infos)
		if len(report.TopFiles) > 0 {
			fmt.Println("\ntop files:")
			for _, nc := range report.TopFiles {
				fmt.Printf("  %4d  %s\n", nc.Count, nc.Name)
			}
		}
		if len(report.TopKinds) > 0 {
			fmt.Println("\ntop patterns:")
			for _, nc := range report.TopKinds {
				fmt.Printf("  %4d  %s\n", nc.Count, nc.Name)
			}
		}
		if len(report.Recent) > 0 {
			fmt.Println("\nrecent:")
			for _, d := range report.Recent {
				loc := ""
				if d.File != "" {
					loc = fmt.Sprintf(" %s:%d:%d", d.File, d.Line, d.Column)
				}
				fmt.Printf("  [%s]%s %s\n", d.Kind, loc, d.Message)
			}
		}
		return nil
	},
}

func init() {
	errorsCmd.Flags().StringVar(&flagErrorsTarget, "target", "cli:0.0", "target id to attribute diagnostics to")
	errorsCmd.Flags().StringVar(&flagErrorsLanguage, "language", "", "prefer this language's patterns (e.g. go, typescript)")
	errorsCmd.Flags().BoolVar(&flagErrorsJSON, "json", false, "emit the report as JSON")
	errorsCmd.Flags().IntVar(&flagErrorsTop, "top", 5, "how many top files and patterns to show")
	errorsCmd.Flags().IntVar(&flagErrorsRecent, "recent", 10, "how many recent diagnostics to show")
	rootCmd.AddCommand(errorsCmd)
}
