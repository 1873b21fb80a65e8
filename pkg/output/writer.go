package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for node executions.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. Each Write* method emits a complete record as a
// single line of JSON followed by a newline.
type Writer interface {
	// WriteResult emits a result record.
	WriteResult(ctx context.Context, res *ResultRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use by the runner's workers. Each
// record is written under a mutex, so lines from different items never
// interleave.
type JSONLWriter struct {
	w        io.Writer
	jobID    string
	provider string
	mu       sync.Mutex

	// now stamps records; tests replace it for stable timestamps.
	now func() time.Time

	// closed rejects writes after Close.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - jobID: Correlation ID for this run
//   - provider: Vendor service identifier (e.g., "aliyun-cdn")
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{
		w:        w,
		jobID:    jobID,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// JobID returns the correlation ID stamped on every record.
func (jw *JSONLWriter) JobID() string { return jw.jobID }

// WriteResult emits a result record.
func (jw *JSONLWriter) WriteResult(ctx context.Context, res *ResultRecord) error {
	return jw.writeRecord(ctx, TypeResult, res)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
//
// The underlying writer is not closed even if it implements io.Closer.
// The caller owns it and closes it after the summary record.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data into an envelope and writes it as one line.
//
// The mutex is held from the closed check to the final write, so a
// record is either written whole or not at all.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	// Cancelled runs stop emitting before waiting on the lock.
	if err := ctx.Err(); err != nil {
		return err
	}

	// The payload is marshaled outside the lock so workers only contend
	// on the write itself.
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	// The context may have been cancelled while this goroutine waited
	// for the lock.
	if err := ctx.Err(); err != nil {
		return err
	}

	recordBytes, err := json.Marshal(Record{
		Type:     recordType,
		TS:       jw.now(),
		JobID:    jw.jobID,
		Provider: jw.provider,
		Data:     dataBytes,
	})
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may report n < len(p) with a nil error. A short write
	// would truncate the line and corrupt the stream for every reader.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all bytes to w, looping over short writes until every
// byte is written or the writer fails.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			// No progress; stop instead of spinning.
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Compile-time check that JSONLWriter implements Writer.
var _ Writer = (*JSONLWriter)(nil)
