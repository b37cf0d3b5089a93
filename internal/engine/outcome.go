package engine

import (
	"fmt"
	"time"

	"github.com/rshade/rowprompt/internal/table"
)

const (
	// DefaultOutputColumn receives generated text or the error marker.
	DefaultOutputColumn = "MODEL_OUTPUT"
	// ErrorMarker prefixes the output column of a failed row.
	ErrorMarker = "ERROR: "
)

// RowOutcome is the result of processing one row. Row always carries the
// original values plus the output column; Err is set when the row failed.
type RowOutcome struct {
	ID       int
	Row      table.Row
	Text     string
	Err      error
	Duration time.Duration
}

// Failed reports whether the row failed.
func (o RowOutcome) Failed() bool {
	return o.Err != nil
}

// LogEntry returns the error log line for a failed row, or "".
func (o RowOutcome) LogEntry() string {
	if o.Err == nil {
		return ""
	}
	return fmt.Sprintf("[Row %d] Error: %s", o.ID, o.Err)
}

// Result is what a run produced.
type Result struct {
	// Table holds only the rows processed in this run, in completion order.
	Table *table.Table
	// Errors has one entry per failed row, in completion order.
	Errors []string

	TotalRows    int
	Processed    int
	Succeeded    int
	Failed       int
	Skipped      int
	Ignored      int
	RecordErrors int
	// Cancelled is set when the run context ended before every row was dispatched.
	Cancelled bool
	Duration  time.Duration
}

// HasErrors reports whether any row failed.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}
