// Package engine runs a prompt template over every pending row of a table.
//
// The Orchestrator validates the template, loads the progress store, filters
// out already-processed and ignored rows, and fans the remaining rows out to
// a bounded pool of workers. Each worker runs a RowProcessor and sends its
// RowOutcome back over a channel; the orchestrator goroutine is the only
// writer to the output table and error log, and records each row in the
// progress store as soon as its outcome arrives.
//
// Row failures are contained: a failed bind or model call becomes an error
// marker in that row's output column and an error log entry. Only template
// validation and progress-store loading abort a run, and both happen before
// any row is dispatched.
//
// Output rows are in completion order, not input order.
package engine
