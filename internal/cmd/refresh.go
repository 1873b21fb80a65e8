package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuscdn/internal/config"
	"github.com/3leaps/nimbuscdn/internal/observability"
	"github.com/3leaps/nimbuscdn/pkg/aliyuncdn"
	"github.com/3leaps/nimbuscdn/pkg/host"
	"github.com/3leaps/nimbuscdn/pkg/manifest"
	"github.com/3leaps/nimbuscdn/pkg/output"
	"github.com/3leaps/nimbuscdn/pkg/provider"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh CDN object caches",
	Long: fmt.Sprintf(`Submit RefreshObjectCaches requests to Alibaba Cloud CDN.

With --path, a single request refreshes every given URL. Directory refreshes
take URLs ending in '/'. The API accepts at most %d entries per request.

With --items or --stdin, each workflow item in the manifest becomes one
request. Items may use expressions such as "={{ $json.host }}/app.js".

Results are written as JSONL records, one per response, followed by a
summary record.

Examples:
  nimbuscdn refresh --path https://cdn.example.com/app.js
  nimbuscdn refresh --path https://cdn.example.com/img/ --type Directory --force
  nimbuscdn refresh --items purge.yaml --concurrency 8 --rate 10
  cat items.jsonl | nimbuscdn refresh --stdin`, aliyuncdn.MaxObjectPaths),
	RunE: runRefresh,
}

var (
	refreshPaths         []string
	refreshType          string
	refreshForce         bool
	refreshOwnerID       int64
	refreshSecurityToken string
	refreshItemsPath     string
	refreshStdin         bool
	refreshOutput        string
	refreshConcurrency   int
	refreshRate          float64
	refreshNoValidate    bool
	refreshDryRun        bool
)

func init() {
	rootCmd.AddCommand(refreshCmd)

	f := refreshCmd.Flags()
	f.StringArrayVarP(&refreshPaths, "path", "p", nil, "URL to refresh (repeatable)")
	f.StringVarP(&refreshType, "type", "t", provider.ObjectFile.String(), "Object type (File|Directory)")
	f.BoolVar(&refreshForce, "force", false, "Refresh even if the content is unchanged")
	f.Int64Var(&refreshOwnerID, "owner-id", 0, "Owner ID sent with the request")
	f.StringVar(&refreshSecurityToken, "security-token", "", "STS security token sent with the request")
	f.StringVarP(&refreshItemsPath, "items", "i", "", "Path to an items manifest (YAML, JSON or JSONL)")
	f.BoolVar(&refreshStdin, "stdin", false, "Read an items manifest from stdin")
	f.StringVarP(&refreshOutput, "output", "o", "", "Write records to a file instead of stdout")
	f.IntVar(&refreshConcurrency, "concurrency", 0, "Items executed in parallel (default from config)")
	f.Float64Var(&refreshRate, "rate", 0, "Maximum requests per second (default from config, 0 = unlimited)")
	f.BoolVar(&refreshNoValidate, "no-validate", false, "Skip parameter schema validation")
	f.BoolVar(&refreshDryRun, "dry-run", false, "Validate input and show the plan without calling the API")

	refreshCmd.MarkFlagsMutuallyExclusive("path", "items", "stdin")
	refreshCmd.MarkFlagsOneRequired("path", "items", "stdin")
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	m, err := refreshManifest(cmd)
	if err != nil {
		observability.CLILogger.Error("Invalid refresh input", zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid refresh input", err)
	}

	cfg := runnerConfig(cmd)
	if refreshDryRun {
		if err := validateItems(m, cfg); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid item parameters", err)
		}
		return showRefreshPlan(cmd, m, cfg)
	}

	return executeRefresh(ctx, m, cfg)
}

// refreshManifest builds the items to execute from flags, a file or stdin.
func refreshManifest(cmd *cobra.Command) (*manifest.Manifest, error) {
	switch {
	case refreshItemsPath != "":
		return manifest.Load(refreshItemsPath)
	case refreshStdin:
		return manifest.LoadFromReader(cmd.InOrStdin(), "stdin")
	}

	paths := make([]string, 0, len(refreshPaths))
	for _, p := range refreshPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("at least one non-empty --path is required")
	}

	params := map[string]any{
		"operation":  aliyuncdn.OperationRefreshObjectCaches.String(),
		"objectPath": strings.Join(paths, "\n"),
		"objectType": refreshType,
	}
	additional := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("force") {
		additional["force"] = refreshForce
	}
	if flags.Changed("owner-id") {
		additional["ownerId"] = refreshOwnerID
	}
	if refreshSecurityToken != "" {
		additional["securityToken"] = refreshSecurityToken
	}
	if len(additional) > 0 {
		params["additionalFields"] = additional
	}

	m := &manifest.Manifest{
		Version: manifest.Version,
		Items:   []manifest.Item{{Parameters: params}},
	}
	m.ApplyDefaults()
	return m, nil
}

// runnerConfig merges refresh flags over the loaded configuration.
func runnerConfig(cmd *cobra.Command) host.Config {
	cfg := host.DefaultConfig()
	if c := config.GetConfig(); c != nil {
		cfg.Concurrency = c.Runner.Concurrency
		cfg.RateLimit = c.Runner.RateLimit
		cfg.Validate = c.Runner.Validate
	}
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Concurrency = refreshConcurrency
	}
	if flags.Changed("rate") {
		cfg.RateLimit = refreshRate
	}
	if refreshNoValidate {
		cfg.Validate = false
	}
	return cfg
}

// validateItems checks every item's parameters without executing the node.
func validateItems(m *manifest.Manifest, cfg host.Config) error {
	if !cfg.Validate {
		return nil
	}
	desc := aliyuncdn.New().Description()
	v, err := workflow.NewParameterValidator(desc)
	if err != nil {
		return err
	}
	for i, item := range m.Items {
		if err := v.Validate(desc.ApplyDefaults(item.Parameters)); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func showRefreshPlan(cmd *cobra.Command, m *manifest.Manifest, cfg host.Config) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Refresh Plan (dry-run) ===")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Node:        %s\n", m.Node.Name)
	fmt.Fprintf(out, "Endpoint:    %s\n", refreshEndpoint(m))
	fmt.Fprintf(out, "Items:       %d\n", len(m.Items))
	fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
	if cfg.RateLimit > 0 {
		fmt.Fprintf(out, "Rate Limit:  %.1f req/s\n", cfg.RateLimit)
	}
	fmt.Fprintln(out)
	for i, item := range m.Items {
		fmt.Fprintf(out, "[%d] %v %v\n", i, item.Parameters["objectType"], item.Parameters["objectPath"])
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Input validated successfully. Remove --dry-run to execute.")
	return nil
}

func executeRefresh(ctx context.Context, m *manifest.Manifest, cfg host.Config) error {
	jobID := uuid.New().String()

	writer, cleanup, err := createWriter(refreshOutput, jobID)
	if err != nil {
		observability.CLILogger.Error("Failed to create writer", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	node := aliyuncdn.New(aliyuncdn.WithEndpoint(refreshEndpoint(m)))
	runner, err := host.New(node, workflow.Node{Name: m.Node.Name}, credentialResolver(), writer, cfg)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to create runner", err)
	}
	runner.WithLogger(observability.CLILogger.Named("aliyunCdn"))

	observability.CLILogger.Info("Starting refresh",
		zap.String("job_id", jobID),
		zap.Int("items", len(m.Items)),
		zap.Int("concurrency", cfg.Concurrency))

	summary, err := runner.Run(ctx, m.Items)
	if err != nil {
		if ctx.Err() != nil {
			observability.CLILogger.Warn("Refresh cancelled",
				zap.String("job_id", jobID),
				zap.Int64("succeeded", summary.Succeeded))
			return exitError(foundry.ExitSignalInt, "Refresh cancelled", err)
		}
		observability.CLILogger.Error("Refresh failed", zap.String("job_id", jobID), zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to write results", err)
	}

	observability.CLILogger.Info("Refresh completed",
		zap.String("job_id", jobID),
		zap.Int64("items", summary.Items),
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	if summary.Failed > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Refresh failed",
			fmt.Errorf("%d of %d items failed", summary.Failed, summary.Items))
	}
	return nil
}

// refreshEndpoint picks the manifest endpoint, then the configured one.
func refreshEndpoint(m *manifest.Manifest) string {
	if m.Node.Endpoint != "" {
		return m.Node.Endpoint
	}
	if c := config.GetConfig(); c != nil && c.Aliyun.Endpoint != "" {
		return c.Aliyun.Endpoint
	}
	return aliyun.DefaultEndpoint
}

// createWriter creates an output writer for dest.
// Returns the writer, a cleanup function, and any error.
func createWriter(dest, jobID string) (output.Writer, func(), error) {
	if dest == "" || dest == "-" || dest == "stdout" {
		w := output.NewJSONLWriter(os.Stdout, jobID, provider.ProviderAliyunCDN.String())
		return w, func() { _ = w.Close() }, nil
	}

	path := strings.TrimPrefix(dest, "file:")
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	w := output.NewJSONLWriter(f, jobID, provider.ProviderAliyunCDN.String())
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}
