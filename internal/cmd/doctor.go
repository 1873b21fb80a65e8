package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuscdn/internal/config"
	"github.com/3leaps/nimbuscdn/internal/observability"
	"github.com/3leaps/nimbuscdn/pkg/credentials"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
)

var (
	doctorNetwork bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the system and suggest fixes for common issues.

Examples:
  nimbuscdn doctor             # Environment and credential checks
  nimbuscdn doctor --network   # Also check the CDN endpoint is reachable`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorNetwork, "network", false, "Check TCP reachability of the CDN endpoint")
}

// dialEndpoint is replaced in tests.
var dialEndpoint = func(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func runDoctor(cmd *cobra.Command, args []string) error {
	bannerName := BinaryName + " doctor"
	observability.CLILogger.Info("=== " + bannerName + " ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 5
	if doctorNetwork {
		totalChecks = 6
	}

	// Check 1: Go version
	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
		allChecks = false
	}
	checkNum++

	// Check 2: Gofulmen libraries
	version := crucible.GetVersion()
	if version.Gofulmen != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ✅ v%s", checkNum, totalChecks, version.Gofulmen),
			zap.String("gofulmen_version", version.Gofulmen),
			zap.String("crucible_version", version.Crucible))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking Gofulmen access... ⚠️  version unknown", checkNum, totalChecks))
	}
	checkNum++

	// Check 3: Configuration
	if used := config.ConfigFileUsed(); used != "" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking configuration... ✅ %s", checkNum, totalChecks, used),
			zap.String("config_file", used))
	} else {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = "."
		}
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking configuration... ✅ defaults (no nimbuscdn.yaml in . or %s/nimbuscdn)", checkNum, totalChecks, configDir))
	}
	checkNum++

	// Check 4: Environment
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	// Check 5: Credentials
	if !checkCredentials(cmd.Context(), credentialResolver(), checkNum, totalChecks) {
		allChecks = false
	}
	checkNum++

	// Check 6: Endpoint reachability
	if doctorNetwork {
		endpoint := aliyun.DefaultEndpoint
		if c := config.GetConfig(); c != nil && c.Aliyun.Endpoint != "" {
			endpoint = c.Aliyun.Endpoint
		}
		addr := net.JoinHostPort(endpoint, "443")
		if err := dialEndpoint(cmd.Context(), addr); err != nil {
			observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking endpoint %s... ❌ unreachable", checkNum, totalChecks, endpoint),
				zap.Error(err))
			allChecks = false
		} else {
			observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking endpoint %s... ✅ reachable", checkNum, totalChecks, endpoint))
		}
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", BinaryName))
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
	return nil
}

// checkCredentials resolves aliyunApi credentials and reports their source.
func checkCredentials(ctx context.Context, chain credentials.Chain, checkNum, totalChecks int) bool {
	source, err := chain.Source(ctx, aliyun.CredentialType)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking aliyunApi credentials... ❌ not configured", checkNum, totalChecks))
		} else {
			observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking aliyunApi credentials... ❌ cannot resolve", checkNum, totalChecks),
				zap.Error(err))
		}
		printAliyunCredentialsHelp()
		return false
	}

	creds, err := chain.Get(ctx, aliyun.CredentialType)
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking aliyunApi credentials... ❌ cannot resolve", checkNum, totalChecks),
			zap.Error(err))
		return false
	}

	cfg := aliyun.Config{
		AccessKeyID:     creds.String(aliyun.FieldAccessKeyID),
		AccessKeySecret: creds.String(aliyun.FieldAccessKeySecret),
	}
	if err := cfg.Validate(); err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking aliyunApi credentials... ❌ incomplete (%s)", checkNum, totalChecks, source),
			zap.Error(err))
		printAliyunCredentialsHelp()
		return false
	}

	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking aliyunApi credentials... ✅ Found credentials", checkNum, totalChecks),
		zap.String("access_key", credentials.Mask(cfg.AccessKeyID)),
		zap.String("source", source))
	return true
}

// printAliyunCredentialsHelp prints help for configuring credentials.
func printAliyunCredentialsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure Alibaba Cloud credentials:")
	observability.CLILogger.Info("  1. Set NIMBUSCDN_ALIYUN_ACCESS_KEY_ID and NIMBUSCDN_ALIYUN_ACCESS_KEY_SECRET, or")
	observability.CLILogger.Info("  2. Set ALIBABA_CLOUD_ACCESS_KEY_ID and ALIBABA_CLOUD_ACCESS_KEY_SECRET, or")
	observability.CLILogger.Info("  3. Run 'nimbuscdn credentials set --access-key-id <id> --secret-stdin'")
	observability.CLILogger.Info("")
}
