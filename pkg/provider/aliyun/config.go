// Package aliyun binds the provider layer to the Alibaba Cloud CDN SDK.
package aliyun

// Config configures an Alibaba Cloud CDN client.
//
// Credentials are always explicit: they are resolved by the workflow host
// (keychain, environment or request-scoped) and handed in here. The SDK's
// own credential chain is not consulted.
type Config struct {
	// AccessKeyID is the RAM access key ID (required).
	AccessKeyID string

	// AccessKeySecret is the RAM access key secret (required).
	AccessKeySecret string

	// Endpoint is the CDN API host. Defaults to DefaultEndpoint.
	Endpoint string
}

// DefaultEndpoint is the global Alibaba Cloud CDN API endpoint.
const DefaultEndpoint = "cdn.aliyuncs.com"

// CredentialType is the host credential type holding Alibaba Cloud keys.
const CredentialType = "aliyunApi"

// Credential field names inside CredentialType.
const (
	FieldAccessKeyID     = "accessKeyId"
	FieldAccessKeySecret = "accessKeySecret"
)

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.AccessKeyID == "" && c.AccessKeySecret == "" {
		return &ConfigError{Field: "AccessKeyID/AccessKeySecret", Message: "access key ID and secret are required"}
	}

	// If one credential is set, both must be set
	if (c.AccessKeyID != "") != (c.AccessKeySecret != "") {
		return &ConfigError{
			Field:   "AccessKeyID/AccessKeySecret",
			Message: "both access key ID and access key secret must be provided together",
		}
	}

	return nil
}

// ResolvedEndpoint returns Endpoint or DefaultEndpoint when unset.
func (c *Config) ResolvedEndpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "aliyun config: " + e.Field + ": " + e.Message
}
