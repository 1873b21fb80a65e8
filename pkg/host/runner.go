// Package host runs workflow nodes over batches of items.
//
// The runner plays the workflow host: it invokes the node once per item with
// an isolated execution surface, paces calls to respect vendor QPS quotas,
// and reports each item's outcome as JSONL records.
package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/nimbuscdn/internal/observability"
	"github.com/3leaps/nimbuscdn/pkg/manifest"
	"github.com/3leaps/nimbuscdn/pkg/output"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// Config configures a Runner.
type Config struct {
	// Concurrency is the number of items executed in parallel.
	Concurrency int

	// RateLimit caps node invocations per second. Zero means unlimited.
	RateLimit float64

	// Validate enables JSON-schema validation of raw item parameters.
	Validate bool
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		Validate:    true,
	}
}

// Summary contains aggregate statistics for a run.
type Summary struct {
	Items      int64
	Succeeded  int64
	Failed     int64
	Results    int64
	Duration   time.Duration
	ErrorCodes map[string]int64
}

// Result is the outcome of one item.
type Result struct {
	ItemIndex    int
	InvocationID string
	Operation    string
	Output       [][]workflow.ExecutionData
	Err          error
	Code         string
	Duration     time.Duration
}

// Runner executes a node over items.
//
// Runner holds no per-item state; Run may be called more than once.
type Runner struct {
	node        workflow.NodeType
	instance    workflow.Node
	credentials workflow.CredentialResolver
	writer      output.Writer
	config      Config
	logger      *zap.Logger
	evaluator   *workflow.Evaluator
	validator   *workflow.ParameterValidator
	limiter     *rate.Limiter
}

// New creates a runner for node.
//
// Parameters:
//   - node: The node type to execute
//   - instance: Name and type of the node instance, used in errors and logs
//   - creds: Credential resolver shared by all items
//   - w: Writer for JSONL output (may be nil when only ExecuteItem is used)
//   - cfg: Runner configuration (use DefaultConfig() as base)
func New(node workflow.NodeType, instance workflow.Node, creds workflow.CredentialResolver, w output.Writer, cfg Config) (*Runner, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}

	r := &Runner{
		node:        node,
		instance:    instance,
		credentials: creds,
		writer:      w,
		config:      cfg,
		logger:      zap.NewNop(),
		evaluator:   workflow.NewEvaluator(),
	}
	if r.instance.Type == "" {
		r.instance.Type = node.Description().Name
	}
	if r.instance.TypeVersion == 0 {
		r.instance.TypeVersion = node.Description().Version
	}

	if cfg.Validate {
		v, err := workflow.NewParameterValidator(node.Description())
		if err != nil {
			return nil, err
		}
		r.validator = v
	}

	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return r, nil
}

// WithLogger sets the logger handed to node executions.
func (r *Runner) WithLogger(l *zap.Logger) *Runner {
	if l != nil {
		r.logger = l
	}
	return r
}

// Run executes every item and writes one result record per output item,
// one error record per failed item, and a final summary record.
//
// Item failures are not fatal. Run returns an error only when output cannot
// be written or ctx is cancelled; on cancellation a partial summary is
// returned.
func (r *Runner) Run(ctx context.Context, items []manifest.Item) (*Summary, error) {
	start := time.Now()

	var (
		succeeded atomic.Int64
		failed    atomic.Int64
		results   atomic.Int64
		codesMu   sync.Mutex
		codes     = map[string]int64{}
		firstErr  error
		errOnce   sync.Once
		wg        sync.WaitGroup
	)

	sem := make(chan struct{}, r.config.Concurrency)
	for i, item := range items {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(index int, item manifest.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.ExecuteItem(ctx, index, item)
			if res.Err != nil {
				failed.Add(1)
				codesMu.Lock()
				codes[res.Code]++
				codesMu.Unlock()
			} else {
				succeeded.Add(1)
			}

			n, err := r.writeResult(ctx, res)
			results.Add(n)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(i, item)
	}
	wg.Wait()

	summary := &Summary{
		Items:      int64(len(items)),
		Succeeded:  succeeded.Load(),
		Failed:     failed.Load(),
		Results:    results.Load(),
		Duration:   time.Since(start),
		ErrorCodes: codes,
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if firstErr != nil {
		return summary, firstErr
	}
	if r.writer != nil {
		if err := r.writer.WriteSummary(ctx, &output.SummaryRecord{
			Items:         summary.Items,
			Succeeded:     summary.Succeeded,
			Failed:        summary.Failed,
			Results:       summary.Results,
			Duration:      summary.Duration,
			DurationHuman: summary.Duration.Round(time.Millisecond).String(),
			ErrorCodes:    summary.ErrorCodes,
		}); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// ExecuteItem runs the node for a single item.
//
// Each call builds its own execution surface: parameters are copied, the
// item is the only input, and the node sees the item at index 0.
func (r *Runner) ExecuteItem(ctx context.Context, index int, item manifest.Item) (res Result) {
	desc := r.node.Description()
	params := desc.ApplyDefaults(item.Parameters)
	res = Result{
		ItemIndex:    index,
		InvocationID: uuid.NewString(),
		Operation:    operationLabel(params),
	}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			res.Err = err
			res.Code = ErrorCode(err)
			return res
		}
	}

	if r.validator != nil {
		if err := r.validator.Validate(params); err != nil {
			res.Err = err
			res.Code = output.ErrCodeInvalidParameter
			observability.RecordNodeExecution(r.instance.Type, res.Operation, time.Since(start), res.Code)
			return res
		}
	}

	logger := r.logger.With(
		zap.String("node", r.instance.Name),
		zap.Int("item_index", index),
		zap.String("invocation_id", res.InvocationID),
	)
	inv := workflow.NewInvocation(r.instance, params,
		workflow.WithItems([]workflow.ExecutionData{{JSON: item.JSON}}),
		workflow.WithDescription(desc),
		workflow.WithCredentials(r.credentials),
		workflow.WithEvaluator(r.evaluator),
		workflow.WithLogger(logger),
	)

	out, err := r.node.Execute(ctx, inv)
	res.Output = out
	res.Err = err
	res.Code = ErrorCode(err)
	observability.RecordNodeExecution(r.instance.Type, res.Operation, time.Since(start), res.Code)

	if err != nil {
		logger.Debug("Node execution failed", zap.String("code", res.Code), zap.Error(err))
	}
	return res
}

// writeResult emits the records for res and returns how many result
// records were written.
func (r *Runner) writeResult(ctx context.Context, res Result) (int64, error) {
	if r.writer == nil {
		return 0, nil
	}

	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) {
			return 0, nil
		}
		return 0, r.writer.WriteError(ctx, &output.ErrorRecord{
			Code:         res.Code,
			Message:      res.Err.Error(),
			ItemIndex:    res.ItemIndex,
			InvocationID: res.InvocationID,
			VendorCode:   vendorCode(res.Err),
		})
	}

	var n int64
	for _, port := range res.Output {
		for _, data := range port {
			if err := r.writer.WriteResult(ctx, &output.ResultRecord{
				ItemIndex:    res.ItemIndex,
				InvocationID: res.InvocationID,
				Operation:    res.Operation,
				JSON:         data.JSON,
			}); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// operationLabel returns the operation for metrics and records. Expressions
// are not resolved here.
func operationLabel(params map[string]any) string {
	s, ok := params["operation"].(string)
	if !ok || workflow.IsExpression(s) {
		return "expression"
	}
	return s
}
