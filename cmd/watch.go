package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/analyzer"
	"github.com/rixmerz/muxpilot/internal/bus"
	"github.com/rixmerz/muxpilot/internal/classify"
	"github.com/rixmerz/muxpilot/internal/config"
	"github.com/rixmerz/muxpilot/internal/dashboard"
	"github.com/rixmerz/muxpilot/internal/identity"
	"github.com/rixmerz/muxpilot/internal/ingest"
	"github.com/rixmerz/muxpilot/internal/model"
	telem "github.com/rixmerz/muxpilot/internal/otel"
	"github.com/rixmerz/muxpilot/internal/store"
	"github.com/rixmerz/muxpilot/internal/stream"
	"github.com/rixmerz/muxpilot/internal/tail"
	"github.com/rixmerz/muxpilot/internal/trigger"
)

var (
	flagWatchHeadless bool
	flagWatchTheme    string
	flagWatchSocket   string
	flagWatchAnalyze  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [target=logfile[:buildcmd]...]",
	Short: "Monitor targets for build errors with an interactive dashboard",
	Long: `Watch log files and build subprocesses for the configured targets,
classify every line, and surface errors in an interactive dashboard.

Targets come from the watch section of .muxpilot.yaml, plus any
target=logfile[:buildcmd] arguments. A target without a log file must
name a live pane; its output is piped to a temporary file and tailed
from there. External hooks can push diagnostics over the unix ingest
socket.

Use --headless to run without the dashboard and log trigger activity to
stderr instead. With --analyze, fired triggers are sent to the LLM for
a root-cause hypothesis.

Configuration is loaded from .muxpilot.yaml or environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&flagWatchHeadless, "headless", false,
		"run without the dashboard, logging trigger activity to stderr")
	watchCmd.Flags().StringVar(&flagWatchTheme, "theme", "dark",
		"color theme: dark, light")
	watchCmd.Flags().StringVar(&flagWatchSocket, "socket", "",
		"unix datagram socket path for pushed diagnostics")
	watchCmd.Flags().BoolVar(&flagWatchAnalyze, "analyze", false,
		"send fired triggers to the LLM for a root-cause hypothesis")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration: defaults -> config file -> env vars.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "config: loaded %s\n", cfg.ConfigFile)
	}

	targets := append([]config.WatchTarget(nil), cfg.Watch...)
	for _, arg := range args {
		wt, err := parseWatchArg(arg)
		if err != nil {
			return err
		}
		targets = append(targets, wt)
	}
	if len(targets) == 0 {
		return fmt.Errorf("nothing to watch: configure watch targets or pass target=logfile arguments")
	}

	// Wire build version into OTEL service metadata.
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured).
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: otel init failed: %v\n", err)
	}
	if tel != nil {
		defer tel.Shutdown(ctx)
	}
	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
	}

	log := slog.Default()

	tailer, err := tail.New()
	if err != nil {
		return fmt.Errorf("tailer: %w", err)
	}
	defer tailer.StopAll()

	b := bus.New()
	defer b.Close()

	coord := stream.NewCoordinator(stream.Config{
		Engine:          classify.NewEngine(),
		Tailer:          tailer,
		Bus:             b,
		HistoryCapacity: cfg.HistoryCapacity,
		Logger:          log,
		Metrics:         metrics,
	})
	defer coord.StopAll()

	orch := trigger.New(coord, b, trigger.Config{
		Cooldowns:           cfg.CooldownDurations,
		MultiErrorThreshold: cfg.MultiErrorThreshold,
		MultiErrorWindow:    cfg.MultiErrorWindowDuration,
		NoveltyPrefixLen:    cfg.NoveltyPrefixLen,
		Metrics:             metrics,
	}, log)
	go orch.Run(ctx)

	// Identity mappings for the panes we can see; swept on the idle TTL.
	resolver := identity.NewResolver(
		identity.WithIdleTTL(cfg.IdleTTLDuration),
		identity.WithLogger(log),
	)
	go resolver.Run(ctx)

	m, muxErr := getMultiplexer()
	if muxErr == nil {
		if panes, err := m.ListPanes(ctx, ""); err == nil {
			for _, p := range panes {
				resolver.Register(p.Native, p.Session, p.Window, p.Pane)
			}
		}
	}

	// Ingest socket for externally pushed diagnostics.
	socketPath := flagWatchSocket
	if socketPath == "" {
		socketPath = cfg.SocketPath
	}
	if socketPath == "" {
		socketPath = ingest.DefaultSocketPath()
	}
	collector := ingest.NewCollector(coord, socketPath)
	if err := collector.Start(ctx); err != nil {
		return fmt.Errorf("ingest socket: %w", err)
	}
	fmt.Fprintf(os.Stderr, "ingest: listening on %s\n", collector.SocketPath())

	// Optional persistence of trigger diagnostics.
	var st *store.Store
	if cfg.DBPath != "" {
		st, err = store.Open(ctx, cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: store open failed: %v\n", err)
			st = nil
		} else {
			defer st.Close()
		}
	}

	var an analyzer.Analyzer
	if flagWatchAnalyze {
		an, err = getAnalyzer()
		if err != nil {
			return fmt.Errorf("--analyze: %w", err)
		}
	}

	go consumeTriggers(ctx, b, st, an, metrics, log)

	pipeDir := ""
	for _, wt := range targets {
		logPath := wt.LogFile
		if logPath == "" {
			if muxErr != nil {
				return fmt.Errorf("target %s has no log file and no multiplexer is available: %w", wt.Target, muxErr)
			}
			if pipeDir == "" {
				pipeDir = filepath.Join(os.TempDir(), fmt.Sprintf("muxpilot-%d", os.Getpid()))
				if err := os.MkdirAll(pipeDir, 0o700); err != nil {
					return fmt.Errorf("pipe dir: %w", err)
				}
			}
			logPath = filepath.Join(pipeDir, sanitizeTarget(wt.Target)+".log")
			if err := m.PipePane(ctx, wt.Target, logPath); err != nil {
				return fmt.Errorf("pipe pane %s: %w", wt.Target, err)
			}
			target := wt.Target
			defer m.PipePane(context.Background(), target, "")
		}
		if err := coord.WatchTarget(ctx, wt.Target, logPath, wt.Command); err != nil {
			return fmt.Errorf("watch %s: %w", wt.Target, err)
		}
		fmt.Fprintf(os.Stderr, "watching %s (%s)\n", wt.Target, logPath)
	}

	if flagWatchHeadless {
		<-ctx.Done()
		return nil
	}

	d := &dashboard.Dashboard{
		Coord: coord,
		Bus:   b,
		Theme: flagWatchTheme,
	}
	if muxErr == nil {
		d.Send = m.SendCommand
	}
	return d.Run(ctx)
}

// consumeTriggers persists and optionally analyzes every fired trigger.
func consumeTriggers(ctx context.Context, b *bus.Bus, st *store.Store, an analyzer.Analyzer, metrics *telem.Metrics, log *slog.Logger) {
	triggers := b.SubscribeTriggers()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-triggers:
			if !ok {
				return
			}
			log.Info("trigger fired",
				"category", ev.Category,
				"target", ev.Target,
				"diagnostics", len(ev.Diagnostics))

			if st != nil {
				if err := st.SaveDiagnostics(ctx, ev.Diagnostics); err != nil {
					log.Error("store diagnostics", "error", err)
				}
			}

			if an == nil {
				continue
			}
			res, err := an.Analyze(ctx, ev)
			if err != nil {
				log.Error("analysis failed", "category", ev.Category, "target", ev.Target, "error", err)
				continue
			}
			metrics.RecordTokens(ctx, an.Provider(), an.Model(), res.Usage.InputTokens, res.Usage.OutputTokens)
			log.Info("analysis",
				"target", ev.Target,
				"summary", res.Summary,
				"root_cause", res.RootCause,
				"suggestion", res.Suggestion,
				"confidence", res.Confidence)
		}
	}
}

// parseWatchArg parses "target=logfile[:buildcmd]". The logfile may be
// empty ("target=") to pipe a live pane instead.
func parseWatchArg(arg string) (config.WatchTarget, error) {
	eq := strings.IndexByte(arg, '=')
	if eq <= 0 {
		return config.WatchTarget{}, fmt.Errorf("invalid watch argument %q: want target=logfile[:buildcmd]", arg)
	}
	wt := config.WatchTarget{Target: arg[:eq]}
	if !model.IsValidTarget(wt.Target) {
		return config.WatchTarget{}, fmt.Errorf("invalid target %q in %q", wt.Target, arg)
	}
	rest := arg[eq+1:]
	// A ':' after the first path byte separates the optional build command.
	// Absolute paths keep their leading '/' unambiguous.
	if idx := strings.LastIndexByte(rest, ':'); idx > 0 {
		wt.LogFile, wt.Command = rest[:idx], rest[idx+1:]
	} else {
		wt.LogFile = rest
	}
	return wt, nil
}

func sanitizeTarget(target string) string {
	r := strings.NewReplacer(":", "_", ".", "_", "/", "_")
	return r.Replace(target)
}
