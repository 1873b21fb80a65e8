// Package cmd implements the nimbuscdn command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuscdn/internal/config"
	"github.com/3leaps/nimbuscdn/internal/observability"
	"github.com/3leaps/nimbuscdn/internal/server/handlers"
)

// BinaryName is the executable name used in help and log output.
const BinaryName = "nimbuscdn"

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "unknown",
	BuildDate: "unknown",
}

var (
	verbose     bool
	logLevel    string
	endpointArg string
)

var rootCmd = &cobra.Command{
	Use:   BinaryName,
	Short: "Refresh Alibaba Cloud CDN object caches",
	Long: `nimbuscdn runs the aliyunCdn workflow node: it submits RefreshObjectCaches
requests to the Alibaba Cloud CDN API and reports each result as JSONL.

Use it from the command line, feed it a batch of workflow items, or run it as
an HTTP service that executes the node on request.

Configuration is read from nimbuscdn.yaml (working directory or user config
directory) and NIMBUSCDN_* environment variables. Flags win over both.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level for serve (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&endpointArg, "endpoint", "", "CDN API endpoint host (default cdn.aliyuncs.com)")
}

// SetVersionInfo records build information for the version command and the
// /version endpoint.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitCode(err)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	observability.InitCLILogger(BinaryName, verbose)

	cfg, err := config.Load(cmd.Context(), flagOverrides(cmd))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	observability.CLILogger.Debug("Configuration loaded",
		zap.String("config_file", config.ConfigFileUsed()),
		zap.String("endpoint", cfg.Aliyun.Endpoint))
	return nil
}

// flagOverrides converts explicitly set persistent flags into config
// overrides.
func flagOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		overrides["logging"] = map[string]any{"level": logLevel}
	}
	if flags.Changed("endpoint") {
		overrides["aliyun"] = map[string]any{"endpoint": endpointArg}
	}
	return overrides
}

// cliError carries the process exit code for a failed command.
type cliError struct {
	code    int
	message string
	err     error
}

func (e *cliError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *cliError) Unwrap() error {
	return e.err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &cliError{code: code, message: message, err: err}
}

func exitCode(err error) int {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}
