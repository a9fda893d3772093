// Package main is the entry point for the phonescope binary.
// It analyzes phone numbers against public sources and writes JSON reports.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/polisai/phonescope/pkg/domain"
)

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitInput   = 2
	exitIOError = 3
)

// CLIConfig holds the parsed CLI configuration. Zero values mean "not set on
// the command line" and leave the loaded configuration untouched.
type CLIConfig struct {
	Config      string
	LogLevel    string
	Concurrency int
	Timeout     time.Duration
	ReportDir   string
	DeepScan    bool
	Silent      bool
	Output      string
	Watch       bool
}

func main() {
	// API keys commonly live in a local .env file.
	_ = godotenv.Load()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case domain.IsInputError(err):
		return exitInput
	case domain.IsIOError(err):
		return exitIOError
	default:
		return exitFatal
	}
}

// newRootCmd creates the root command for phonescope
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "phonescope",
		Short: "Phone number reconnaissance",
		Long: `Query public sources about a phone number and assemble the answers
into a timestamped JSON report.

Example:
  phonescope run +393401234567
  phonescope batch targets.txt --watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to configuration file (YAML)")
	flags.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	flags.Int("concurrency", 0, "Maximum number of concurrent lookups (1-32)")
	flags.Duration("timeout", 0, "Per-lookup timeout, e.g. 10s")
	flags.String("report-dir", "", "Directory for generated reports")
	flags.Bool("deep-scan", false, "Enable browser-backed lookups (requires Chrome)")

	rootCmd.AddCommand(newRunCmd(), newBatchCmd(), newProvidersCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <number>",
		Short: "Analyze a single phone number",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().BoolP("silent", "s", false, "Only write the report, print nothing")
	cmd.Flags().StringP("output", "o", "", "Write the report to this path instead of the report directory")
	return cmd
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <targets-file>",
		Short: "Analyze every number listed in a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().BoolP("silent", "s", false, "Only write the reports, print nothing")
	cmd.Flags().BoolP("watch", "w", false, "Re-run the batch whenever the targets file changes")
	return cmd
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers",
		Args:  cobra.NoArgs,
		RunE:  runProviders,
	}
}

// parseCLIConfig reads every flag defined on cmd into a CLIConfig.
func parseCLIConfig(cmd *cobra.Command) (*CLIConfig, error) {
	flags := cmd.Flags()
	cli := &CLIConfig{}
	var err error

	if cli.Config, err = flags.GetString("config"); err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if cli.LogLevel, err = flags.GetString("log-level"); err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	if cli.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, fmt.Errorf("failed to get concurrency flag: %w", err)
	}
	if cli.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, fmt.Errorf("failed to get timeout flag: %w", err)
	}
	if cli.ReportDir, err = flags.GetString("report-dir"); err != nil {
		return nil, fmt.Errorf("failed to get report-dir flag: %w", err)
	}
	if cli.DeepScan, err = flags.GetBool("deep-scan"); err != nil {
		return nil, fmt.Errorf("failed to get deep-scan flag: %w", err)
	}

	// Command-specific flags.
	if flags.Lookup("silent") != nil {
		cli.Silent, _ = flags.GetBool("silent")
	}
	if flags.Lookup("output") != nil {
		cli.Output, _ = flags.GetString("output")
	}
	if flags.Lookup("watch") != nil {
		cli.Watch, _ = flags.GetBool("watch")
	}

	return cli, nil
}
