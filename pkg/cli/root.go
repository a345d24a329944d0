package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockresolver/pkg/config"
	"github.com/getmockd/mockresolver/pkg/logging"
)

var (
	// Persistent flags available to all subcommands
	logLevel   string
	logFormat  string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mockresolver",
	Short: "mockresolver serves templated mock APIs",
	Long: `mockresolver resolves inbound requests against configured mock endpoints:
it extracts variables, selects the best matching candidate response by
priority, renders its ${...} templates and queues any pushback callback.

Settings come from a server config file, MOCKRESOLVER_* environment
variables and flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Main()
}

// Main runs the CLI with os.Args and returns the process exit code.
func Main() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// Execute runs the CLI and exits on failure. It is called by main.main().
func Execute() {
	if code := Main(); code != 0 {
		os.Exit(code)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env "+config.EnvLogLevel+")")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json (env "+config.EnvLogFormat+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}

// newLogger builds the command logger. Flags override lc, which already
// carries config file and environment settings. tee, when non-nil,
// receives JSON records as well.
func newLogger(lc config.LogConfig, stderr, tee io.Writer) (*slog.Logger, error) {
	if logLevel != "" {
		lc.Level = logLevel
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: format,
		Output: stderr,
		Tee:    tee,
	}), nil
}

// commandLogger returns a logger for short-lived commands, which log at
// warn unless told otherwise.
func commandLogger(cmd *cobra.Command) (*slog.Logger, error) {
	lc := config.LogConfig{Level: "warn"}
	cfg := &config.ServerConfig{Log: lc}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return newLogger(cfg.Log, cmd.ErrOrStderr(), nil)
}
