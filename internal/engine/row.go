package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rshade/rowprompt/internal/llm"
	"github.com/rshade/rowprompt/internal/logging"
	"github.com/rshade/rowprompt/internal/metrics"
	"github.com/rshade/rowprompt/internal/prompt"
	"github.com/rshade/rowprompt/internal/table"
)

// RowProcessor binds, invokes and captures a single row.
type RowProcessor struct {
	template     *prompt.Template
	invoker      llm.Invoker
	params       llm.Params
	outputColumn string
}

// NewRowProcessor returns a processor for one run. An empty outputColumn
// selects DefaultOutputColumn.
func NewRowProcessor(tmpl *prompt.Template, invoker llm.Invoker, params llm.Params, outputColumn string) *RowProcessor {
	if outputColumn == "" {
		outputColumn = DefaultOutputColumn
	}
	return &RowProcessor{
		template:     tmpl,
		invoker:      invoker,
		params:       params,
		outputColumn: outputColumn,
	}
}

// Process runs row through the template and model. It never returns an
// error: failures, including panics in the invoker, are captured in the
// outcome.
func (p *RowProcessor) Process(ctx context.Context, row table.Row) (out RowOutcome) {
	start := time.Now()
	log := logging.FromContext(ctx)

	out = RowOutcome{ID: row.ID, Row: row.Clone()}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
			out.Text = ""
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			out.Row.Values[p.outputColumn] = ErrorMarker + out.Err.Error()
			metrics.RowsTotal.WithLabelValues("error").Inc()
			log.Warn().
				Str("component", "engine").
				Int("row_id", row.ID).
				Err(out.Err).
				Msg("row failed")
		} else {
			out.Row.Values[p.outputColumn] = out.Text
			metrics.RowsTotal.WithLabelValues("success").Inc()
		}
		metrics.RowDuration.Observe(out.Duration.Seconds())
	}()

	bound, err := p.template.Bind(row)
	if err != nil {
		out.Err = fmt.Errorf("binding template: %w", err)
		return out
	}

	log.Debug().
		Str("component", "engine").
		Int("row_id", row.ID).
		Int("prompt_len", len(bound)).
		Msg("processing row")

	text, err := p.invoker.Invoke(ctx, bound, p.params)
	if err != nil {
		out.Err = err
		return out
	}
	out.Text = text

	log.Debug().
		Str("component", "engine").
		Int("row_id", row.ID).
		Int("output_len", len(text)).
		Msg("row completed")
	return out
}
