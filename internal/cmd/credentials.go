package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuscdn/internal/config"
	"github.com/3leaps/nimbuscdn/internal/observability"
	"github.com/3leaps/nimbuscdn/pkg/credentials"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage aliyunApi credentials",
	Long: `Manage the aliyunApi credentials used by the aliyunCdn node.

Credentials are resolved in order from:
  1. NIMBUSCDN_ALIYUN_ACCESS_KEY_ID / NIMBUSCDN_ALIYUN_ACCESS_KEY_SECRET
  2. ALIBABA_CLOUD_ACCESS_KEY_ID / ALIBABA_CLOUD_ACCESS_KEY_SECRET
  3. credentials.aliyun_api in nimbuscdn.yaml
  4. The system keychain (set with 'nimbuscdn credentials set')`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store credentials in the system keychain",
	Long: `Store an AccessKey pair in the system keychain.

Pass the secret on stdin to keep it out of shell history:

  printf '%s' "$SECRET" | nimbuscdn credentials set --access-key-id LTAI... --secret-stdin`,
	RunE: runCredentialsSet,
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which credentials would be used",
	RunE:  runCredentialsShow,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove credentials from the system keychain",
	RunE:  runCredentialsDelete,
}

var (
	credAccessKeyID     string
	credAccessKeySecret string
	credSecretStdin     bool
)

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsShowCmd, credentialsDeleteCmd)

	credentialsSetCmd.Flags().StringVar(&credAccessKeyID, "access-key-id", "", "AccessKey ID (required)")
	credentialsSetCmd.Flags().StringVar(&credAccessKeySecret, "access-key-secret", "", "AccessKey secret")
	credentialsSetCmd.Flags().BoolVar(&credSecretStdin, "secret-stdin", false, "Read the AccessKey secret from stdin")
	_ = credentialsSetCmd.MarkFlagRequired("access-key-id")
	credentialsSetCmd.MarkFlagsMutuallyExclusive("access-key-secret", "secret-stdin")
}

// credentialKeychain is replaced in tests.
var credentialKeychain = func() keychainStore { return credentials.NewKeychain() }

type keychainStore interface {
	credentials.Store
	Set(ctx context.Context, credentialType string, creds workflow.Credentials) error
	Delete(ctx context.Context, credentialType string) error
}

// credentialResolver returns the chain used by refresh, serve and doctor.
func credentialResolver() credentials.Chain {
	return credentials.Chain{
		credentials.NewEnv(config.Viper()),
		credentialKeychain(),
	}
}

func runCredentialsSet(cmd *cobra.Command, _ []string) error {
	secret := credAccessKeySecret
	if credSecretStdin {
		s, err := readSecret(cmd.InOrStdin())
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to read secret", err)
		}
		secret = s
	}
	if secret == "" {
		return exitError(foundry.ExitInvalidArgument, "Missing secret",
			errors.New("use --access-key-secret or --secret-stdin"))
	}

	cfg := aliyun.Config{AccessKeyID: credAccessKeyID, AccessKeySecret: secret}
	if err := cfg.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid credentials", err)
	}

	store := credentialKeychain()
	if err := store.Set(cmd.Context(), aliyun.CredentialType, credentials.AliyunAPI(credAccessKeyID, secret)); err != nil {
		observability.CLILogger.Error("Failed to store credentials", zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Failed to store credentials", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s credentials for %s in %s\n",
		aliyun.CredentialType, credentials.Mask(credAccessKeyID), store.Name())
	return nil
}

func runCredentialsShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	chain := credentialResolver()

	source, err := chain.Source(ctx, aliyun.CredentialType)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return exitError(foundry.ExitFileNotFound, "No aliyunApi credentials configured", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to resolve credentials", err)
	}
	creds, err := chain.Get(ctx, aliyun.CredentialType)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to resolve credentials", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Type:              %s\n", aliyun.CredentialType)
	fmt.Fprintf(out, "Source:            %s\n", source)
	fmt.Fprintf(out, "Access key ID:     %s\n", credentials.Mask(creds.String(aliyun.FieldAccessKeyID)))
	fmt.Fprintf(out, "Access key secret: %s\n", credentials.Mask(creds.String(aliyun.FieldAccessKeySecret)))
	return nil
}

func runCredentialsDelete(cmd *cobra.Command, _ []string) error {
	store := credentialKeychain()
	if err := store.Delete(cmd.Context(), aliyun.CredentialType); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return exitError(foundry.ExitFileNotFound, "No keychain entry", err)
		}
		return exitError(foundry.ExitFileWriteError, "Failed to delete credentials", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s credentials from %s\n", aliyun.CredentialType, store.Name())
	return nil
}

func readSecret(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
