package cmd

import (
	"encoding/json"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/nimbuscdn/pkg/aliyuncdn"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the aliyunCdn node description",
	Long: `Print the aliyunCdn node type description: display metadata, credential
requirements and parameter definitions.

With --schema, print the JSON Schema used to validate item parameters.

Examples:
  nimbuscdn describe
  nimbuscdn describe --format yaml
  nimbuscdn describe --schema`,
	RunE: runDescribe,
}

var (
	describeFormat string
	describeSchema bool
)

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&describeFormat, "format", "f", "json", "Output format (json|yaml)")
	describeCmd.Flags().BoolVar(&describeSchema, "schema", false, "Print the parameter JSON Schema instead")
}

func runDescribe(cmd *cobra.Command, _ []string) error {
	desc := aliyuncdn.New().Description()

	var v any = desc
	if describeSchema {
		v = desc.ParameterSchema()
	}

	out := cmd.OutOrStdout()
	switch describeFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write description", err)
		}
	case "yaml":
		// Round-trip through JSON so yaml output uses the JSON field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to encode description", err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to encode description", err)
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write description", err)
		}
		_ = enc.Close()
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value",
			&formatError{format: describeFormat})
	}
	return nil
}

type formatError struct {
	format string
}

func (e *formatError) Error() string {
	return "unsupported format: " + e.format
}
