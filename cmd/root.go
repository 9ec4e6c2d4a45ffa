package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/rixmerz/muxpilot/internal/analyzer"
	"github.com/rixmerz/muxpilot/internal/mux"
)

// Version is the build version, injected via -ldflags at release time.
var Version = "dev"

var (
	// Global flags.
	flagMux       string
	flagProvider  string
	flagModel     string
	flagBaseURL   string
	flagAPIKey    string
	flagMaxTokens int64
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "muxpilot",
	Short: "Terminal multiplexer orchestration and build-error monitoring",
	Long: `muxpilot drives terminal multiplexer panes and watches their build
output for errors.

It resolves panes into stable targets, sends commands into interactive
panes with escaping and a destructive-command denylist, tails log files
incrementally, classifies build and runtime errors with per-language
patterns, and fires debounced triggers when something goes wrong. An LLM
analyzer can optionally turn a trigger payload into a root-cause
hypothesis.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", envOrDefault("MUXPILOT_MUX", ""), "terminal multiplexer: tmux (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", envOrDefault("MUXPILOT_PROVIDER", "anthropic"), "LLM provider: anthropic, openai")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", envOrDefault("MUXPILOT_MODEL", ""), "LLM model name (default: claude-sonnet-4-5 for anthropic, gpt-4o-mini for openai)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", envOrDefault("MUXPILOT_BASE_URL", ""), "override LLM API base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", envOrDefault("MUXPILOT_API_KEY", ""), "override LLM API key")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens (default: 4096; increase for reasoning models)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "include extra detail in output")
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer() (mux.Multiplexer, error) {
	if flagMux != "" {
		return mux.FromName(flagMux)
	}
	return mux.Detect()
}

// getAnalyzer builds an LLM analyzer from the global flags, falling back
// to provider-specific environment variables for the API key.
func getAnalyzer() (analyzer.Analyzer, error) {
	apiKey := flagAPIKey
	extraHeaders := map[string]string{}

	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if apiKey == "" {
		switch flagProvider {
		case "openai":
			apiKey = os.Getenv("OPENAI_API_KEY")
		default:
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key found. Set MUXPILOT_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY")
	}

	// Azure AI Foundry authenticates with an "api-key" header on top of
	// the SDK's own auth header.
	if isAzureEndpoint(flagBaseURL) {
		extraHeaders["api-key"] = apiKey
	}

	return analyzer.New(analyzer.Config{
		Provider:     flagProvider,
		BaseURL:      flagBaseURL,
		APIKey:       apiKey,
		Model:        flagModel,
		MaxTokens:    flagMaxTokens,
		ExtraHeaders: extraHeaders,
	})
}

// isAzureEndpoint checks if a URL is an Azure endpoint.
func isAzureEndpoint(url string) bool {
	return strings.Contains(url, ".azure.com") || strings.Contains(url, ".azure.us")
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
