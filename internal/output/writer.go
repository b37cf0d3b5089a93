// Package output persists the results of a run: the processed table as CSV
// and, when any row failed, a plain-text error log next to it.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/rowprompt/internal/engine"
	"github.com/rshade/rowprompt/internal/table"
)

const (
	csvExt    = ".csv"
	logSuffix = "_log.txt"
	// logSeparator separates entries in the error log.
	logSeparator = "\n\n"
)

// ErrNoResult is returned when Write is called without a result.
var ErrNoResult = errors.New("no result to write")

// Artifacts describes the files produced for one run.
type Artifacts struct {
	RunID   string
	CSVPath string
	// LogPath is empty when the run had no row errors.
	LogPath string
}

// Writer names and writes run artifacts under a directory.
type Writer struct {
	dir   string
	newID func() string
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir:   dir,
		newID: func() string { return ulid.Make().String() },
	}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write stores res as <dir>/<ULID>.csv plus <ULID>_log.txt when rows failed.
func (w *Writer) Write(res *engine.Result) (Artifacts, error) {
	id := w.newID()
	art, err := WriteTo(filepath.Join(w.dir, id+csvExt), res)
	art.RunID = id
	return art, err
}

// WriteTo stores res at csvPath and its error log at LogPathFor(csvPath).
// The log file is only created when res has errors.
func WriteTo(csvPath string, res *engine.Result) (Artifacts, error) {
	if res == nil || res.Table == nil {
		return Artifacts{}, ErrNoResult
	}
	art := Artifacts{CSVPath: csvPath}
	if err := table.WriteCSVFile(csvPath, res.Table); err != nil {
		return art, fmt.Errorf("writing output table: %w", err)
	}
	if !res.HasErrors() {
		// A log left by an earlier run at the same path no longer describes this output.
		if err := os.Remove(LogPathFor(csvPath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return art, fmt.Errorf("removing stale error log: %w", err)
		}
		return art, nil
	}
	art.LogPath = LogPathFor(csvPath)
	if err := WriteErrorLog(art.LogPath, res.Errors); err != nil {
		return art, err
	}
	return art, nil
}

// LogPathFor derives the error log path from a CSV path:
// "out/data.csv" becomes "out/data_log.txt".
func LogPathFor(csvPath string) string {
	return strings.TrimSuffix(csvPath, csvExt) + logSuffix
}

// FormatErrorLog joins entries with a blank line between them.
func FormatErrorLog(entries []string) string {
	return strings.Join(entries, logSeparator)
}

// WriteErrorLog writes entries to path, replacing any previous content.
func WriteErrorLog(path string, entries []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(FormatErrorLog(entries)), 0o600); err != nil {
		return fmt.Errorf("writing error log %s: %w", path, err)
	}
	return nil
}
