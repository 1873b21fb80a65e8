// Package output provides JSONL output for node executions.
//
// Output is structured as typed record envelopes containing results,
// errors, and summaries. Each line is a self-contained JSON object that
// can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: nimbuscdn.<type>.v<version>
const (
	// TypeResult identifies node output records.
	TypeResult = "nimbuscdn.result.v1"

	// TypeError identifies error records.
	TypeError = "nimbuscdn.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "nimbuscdn.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "nimbuscdn.result.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this run.
	JobID string `json:"job_id"`

	// Provider identifies the vendor service (e.g., "aliyun-cdn").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ResultRecord is the data payload for a single node output item.
type ResultRecord struct {
	// ItemIndex is the position of the input item in the batch.
	ItemIndex int `json:"item_index"`

	// InvocationID identifies the node invocation that produced the record.
	InvocationID string `json:"invocation_id"`

	// Operation is the node operation that ran.
	Operation string `json:"operation"`

	// JSON is the node output item.
	JSON map[string]any `json:"json"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the whole run, so one
// rejected item does not hide the results of the others.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is the error message as the node reported it.
	Message string `json:"message"`

	// ItemIndex is the input item that failed.
	ItemIndex int `json:"item_index"`

	// InvocationID identifies the failed node invocation.
	InvocationID string `json:"invocation_id,omitempty"`

	// VendorCode is the vendor error code, if the vendor returned one.
	VendorCode string `json:"vendor_code,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeAccessDenied        = "ACCESS_DENIED"
	ErrCodeInvalidParameter    = "INVALID_PARAMETER"
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeThrottled           = "THROTTLED"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeCanceled            = "CANCELED"
	ErrCodeInternal            = "INTERNAL"
)

// SummaryRecord is the data payload for final summaries.
type SummaryRecord struct {
	// Items is the number of input items.
	Items int64 `json:"items"`

	// Succeeded is the number of items whose invocation returned no error.
	Succeeded int64 `json:"succeeded"`

	// Failed is the number of items whose invocation returned an error.
	Failed int64 `json:"failed"`

	// Results is the number of result records emitted.
	Results int64 `json:"results"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// ErrorCodes counts failures by error code.
	ErrorCodes map[string]int64 `json:"error_codes,omitempty"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
