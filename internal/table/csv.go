package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// utf8BOM is stripped from the first header cell; spreadsheet exports often carry it.
const utf8BOM = "\ufeff"

// ReadCSV parses a CSV stream whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	t := New(dedupeHeader(header)...)
	for {
		rec, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", t.Len(), readErr)
		}
		if appendErr := t.Append(normalize(rec, len(header))...); appendErr != nil {
			return nil, appendErr
		}
	}
	return t, nil
}

// dedupeHeader renames repeated column names to "name.1", "name.2", ...,
// skipping names that appear elsewhere in the header, so every column keeps
// its own values.
func dedupeHeader(header []string) []string {
	original := make(map[string]bool, len(header))
	for _, name := range header {
		original[name] = true
	}
	used := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s.%d", name, n)
			if original[candidate] {
				candidate = name
			}
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// normalize pads short records and truncates long ones to the header width.
func normalize(rec []string, width int) []string {
	if len(rec) == width {
		return rec
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

// WriteCSV encodes t with its header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(Record(t.Columns, row)); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes t to path atomically via a temp file and rename.
func WriteCSVFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}
	if writeErr := WriteCSV(f, t); writeErr != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return writeErr
	}
	if closeErr := f.Close(); closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, closeErr)
	}
	if renameErr := os.Rename(tmpPath, path); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", tmpPath, renameErr)
	}
	return nil
}
