package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/rowprompt/internal/llm"
	"github.com/rshade/rowprompt/internal/logging"
	"github.com/rshade/rowprompt/internal/metrics"
	"github.com/rshade/rowprompt/internal/progress"
	"github.com/rshade/rowprompt/internal/prompt"
	"github.com/rshade/rowprompt/internal/table"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 6

var (
	// ErrInvalidTemplate wraps template validation failures. No row is
	// processed and the progress store is not touched.
	ErrInvalidTemplate = errors.New("invalid prompt template")
	// ErrNilTable is returned when Run is called without input.
	ErrNilTable = errors.New("input table is nil")
	// ErrNilDependency is returned by NewOrchestrator for a missing store or invoker.
	ErrNilDependency = errors.New("orchestrator requires a progress store and an invoker")
)

// Orchestrator runs batches of rows through a bounded worker pool.
type Orchestrator struct {
	store        progress.Store
	invoker      llm.Invoker
	workers      int
	outputColumn string
	onProgress   ProgressCallback
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the pool size. Values below 1 select DefaultWorkers.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithOutputColumn sets the column that receives generated text.
func WithOutputColumn(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.outputColumn = name
		}
	}
}

// WithProgressCallback registers fn to be called after each collected row.
func WithProgressCallback(fn ProgressCallback) Option {
	return func(o *Orchestrator) {
		o.onProgress = fn
	}
}

// NewOrchestrator creates an orchestrator over store and invoker.
func NewOrchestrator(store progress.Store, invoker llm.Invoker, opts ...Option) (*Orchestrator, error) {
	if store == nil || invoker == nil {
		return nil, ErrNilDependency
	}
	o := &Orchestrator{
		store:        store,
		invoker:      invoker,
		workers:      DefaultWorkers,
		outputColumn: DefaultOutputColumn,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Workers returns the configured pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// OutputColumn returns the configured output column name.
func (o *Orchestrator) OutputColumn() string {
	return o.outputColumn
}

// Run processes every row of tbl that is neither recorded in the progress
// store nor listed in ignored. Each completed row is recorded in the store
// as soon as its outcome is collected, whether it succeeded or failed.
//
// Run returns an error only for an invalid template, a nil table or a store
// that cannot be loaded. A failed Record is logged and counted in
// Result.RecordErrors; the row still appears in the output.
//
// Cancelling ctx stops dispatch and is forwarded to in-flight model calls.
// Rows interrupted by the cancellation are returned with their error marker
// but are not recorded, so the next run retries them.
func (o *Orchestrator) Run(
	ctx context.Context,
	tbl *table.Table,
	tmpl string,
	params llm.Params,
	ignored table.IDSet,
) (*Result, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	if tbl == nil {
		return nil, ErrNilTable
	}

	compiled, err := prompt.Compile(tmpl, tbl.Columns)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	processed, err := o.store.Load(ctx)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading progress: %w", err)
	}

	result := &Result{
		Table:     table.New(tbl.WithColumn(o.outputColumn)...),
		TotalRows: tbl.Len(),
	}

	pending := make([]table.Row, 0, tbl.Len())
	for _, row := range tbl.Rows {
		switch {
		case processed.Has(row.ID):
			result.Skipped++
			metrics.RowsSkipped.WithLabelValues("processed").Inc()
		case ignored.Has(row.ID):
			result.Ignored++
			metrics.RowsSkipped.WithLabelValues("ignored").Inc()
		default:
			pending = append(pending, row)
		}
	}

	log.Info().
		Ctx(ctx).
		Str("component", "engine").
		Int("total_rows", result.TotalRows).
		Int("pending", len(pending)).
		Int("skipped", result.Skipped).
		Int("ignored", result.Ignored).
		Int("workers", o.workers).
		Str("model", params.Model).
		Msg("starting batch run")

	proc := NewRowProcessor(compiled, o.invoker, params, o.outputColumn)
	tracker := NewProgress(len(pending))
	outcomes := make(chan RowOutcome)

	go func() {
		var g errgroup.Group
		g.SetLimit(o.workers)
		for _, row := range pending {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				outcomes <- proc.Process(ctx, row)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	// Completed rows are recorded even when ctx is cancelled.
	recordCtx := context.WithoutCancel(ctx)
	for out := range outcomes {
		interrupted := out.Failed() && ctx.Err() != nil
		o.collect(recordCtx, result, out, !interrupted)
		tracker.Add(out.Failed())
		if o.onProgress != nil {
			o.onProgress(tracker.Snapshot())
		}
	}

	result.Duration = time.Since(start)
	result.Cancelled = ctx.Err() != nil
	runResult := "success"
	switch {
	case result.Cancelled:
		runResult = "cancelled"
	case result.Failed > 0:
		runResult = "partial"
	}
	metrics.RunsTotal.WithLabelValues(runResult).Inc()

	log.Info().
		Ctx(ctx).
		Str("component", "engine").
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("record_errors", result.RecordErrors).
		Dur("duration_ms", result.Duration).
		Msg("batch run complete")

	return result, nil
}

// collect applies one outcome to result. Only the Run goroutine calls it.
func (o *Orchestrator) collect(ctx context.Context, result *Result, out RowOutcome, record bool) {
	result.Table.Rows = append(result.Table.Rows, out.Row)
	result.Processed++
	if out.Failed() {
		result.Failed++
		result.Errors = append(result.Errors, out.LogEntry())
	} else {
		result.Succeeded++
	}

	if !record {
		return
	}
	if err := o.store.Record(ctx, out.ID); err != nil {
		result.RecordErrors++
		metrics.RecordErrors.Inc()
		logging.FromContext(ctx).Error().
			Ctx(ctx).
			Str("component", "engine").
			Int("row_id", out.ID).
			Err(err).
			Msg("failed to record row progress")
	}
}

// Reset clears the progress store so the next run processes every row.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting progress: %w", err)
	}
	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "engine").
		Msg("processing state reset")
	return nil
}
