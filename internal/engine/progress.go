package engine

import (
	"sync"
	"time"
)

// percentMultiplier converts a ratio to a percentage (0-100).
const percentMultiplier = 100

// Progress tracks rows completed during a run.
// It is safe for concurrent use so a UI can poll it while the run proceeds.
type Progress struct {
	// TotalRows is the number of rows dispatched to workers.
	TotalRows int

	// CompletedRows counts rows whose outcome has been collected.
	CompletedRows int

	// FailedRows counts completed rows that carry an error marker.
	FailedRows int

	StartTime      time.Time
	LastUpdateTime time.Time

	mu sync.RWMutex
}

// ProgressCallback receives a snapshot after every collected outcome.
// It runs on the orchestrator goroutine and must not block for long.
type ProgressCallback func(ProgressSnapshot)

// NewProgress creates a tracker for totalRows pending rows.
func NewProgress(totalRows int) *Progress {
	now := time.Now()
	return &Progress{
		TotalRows:      totalRows,
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Add records one completed row.
func (p *Progress) Add(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CompletedRows++
	if failed {
		p.FailedRows++
	}
	p.LastUpdateTime = time.Now()
}

// PercentComplete returns the completion percentage (0-100). An empty run
// is reported as complete.
func (p *Progress) PercentComplete() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.percentCompleteUnsafe()
}

// IsComplete reports whether every dispatched row has completed.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.CompletedRows >= p.TotalRows
}

// ElapsedTime returns the time since the run started.
func (p *Progress) ElapsedTime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.StartTime)
}

// EstimatedTimeRemaining extrapolates from the average time per completed
// row. Returns 0 until the first row completes.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.etaUnsafe()
}

// RowsPerSecond returns the completion rate.
func (p *Progress) RowsPerSecond() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.rowsPerSecondUnsafe()
}

// Snapshot returns a consistent copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProgressSnapshot{
		TotalRows:       p.TotalRows,
		CompletedRows:   p.CompletedRows,
		FailedRows:      p.FailedRows,
		StartTime:       p.StartTime,
		LastUpdateTime:  p.LastUpdateTime,
		PercentComplete: p.percentCompleteUnsafe(),
		ElapsedTime:     time.Since(p.StartTime),
		RowsPerSecond:   p.rowsPerSecondUnsafe(),
		ETA:             p.etaUnsafe(),
	}
}

// ProgressSnapshot is an immutable view of Progress.
type ProgressSnapshot struct {
	TotalRows       int
	CompletedRows   int
	FailedRows      int
	StartTime       time.Time
	LastUpdateTime  time.Time
	PercentComplete float64
	ElapsedTime     time.Duration
	RowsPerSecond   float64
	ETA             time.Duration
}

// percentCompleteUnsafe must be called with the lock held.
func (p *Progress) percentCompleteUnsafe() float64 {
	if p.TotalRows == 0 {
		return percentMultiplier
	}
	return (float64(p.CompletedRows) / float64(p.TotalRows)) * percentMultiplier
}

// rowsPerSecondUnsafe must be called with the lock held.
func (p *Progress) rowsPerSecondUnsafe() float64 {
	elapsed := time.Since(p.StartTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.CompletedRows) / elapsed
}

// etaUnsafe must be called with the lock held.
func (p *Progress) etaUnsafe() time.Duration {
	if p.CompletedRows == 0 {
		return 0
	}
	avg := time.Since(p.StartTime) / time.Duration(p.CompletedRows)
	remaining := p.TotalRows - p.CompletedRows
	if remaining < 0 {
		remaining = 0
	}
	return avg * time.Duration(remaining)
}
