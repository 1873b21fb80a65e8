package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/nimbuscdn/internal/assets/schemas"
)

// SchemaID is the schema identifier for items manifests.
const SchemaID = "https://schemas.3leaps.dev/nimbuscdn/v1.0.0/items-manifest.schema.json"

// Validation errors
var (
	// ErrSchemaNotFound indicates the embedded schema is missing.
	ErrSchemaNotFound = errors.New("manifest schema not found")

	// ErrValidationFailed indicates the manifest failed schema validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

// Cached validator instance (compiled once from embedded schema)
var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g., "/items/0/parameters").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks the manifest against the JSON schema.
//
// This validates the struct representation, which loses unknown fields.
// Use ValidateRaw on the original input for strict validation.
func Validate(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest for validation: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks raw JSON data against the manifest schema.
//
// Use it when unknown fields must be rejected: the raw input keeps every
// field, including ones the Manifest struct drops. The schema is embedded at
// compile time, so validation works in installed binaries.
//
// Returns nil if validation succeeds, or a ValidationErrors with details
// about every failing location.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if len(diags) == 0 {
		return nil
	}

	var errs ValidationErrors
	for _, d := range diags {
		// Warnings do not fail a manifest.
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{
				Path:    d.Pointer,
				Message: d.Message,
			})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// getValidator returns a cached validator compiled from the embedded schema.
func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.ItemsManifestSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded items-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.ItemsManifestSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("failed to compile manifest schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}
