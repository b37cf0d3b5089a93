package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const gitignoreHeader = `# rowprompt project-local data (auto-generated)
# Config is tracked; run state and outputs are not.
`

// gitignorePatterns lists the run artifacts kept out of version control.
//
//nolint:gochecknoglobals // Read-only pattern list.
var gitignorePatterns = []string{
	"processed_ids.jsonl",
	"processed_ids.jsonl.lock",
	"progress.db*",
	"output/",
	"cache/",
	"*.log",
	".env",
}

// GitignoreContent returns the .gitignore written into a fresh project directory.
func GitignoreContent() string {
	return gitignoreHeader + strings.Join(gitignorePatterns, "\n") + "\n"
}

// EnsureGitignore makes sure dir/.gitignore ignores every rowprompt run
// artifact. A missing file is created; an existing one keeps its content
// and only gains the patterns it lacks. It returns the number of patterns
// written.
func EnsureGitignore(dir string) (int, error) {
	path := filepath.Join(dir, ".gitignore")

	existing, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
			return 0, fmt.Errorf("creating directory %s: %w", dir, mkdirErr)
		}
		//nolint:gosec // .gitignore must be world-readable (0644).
		if writeErr := os.WriteFile(path, []byte(GitignoreContent()), 0o644); writeErr != nil {
			return 0, fmt.Errorf("writing .gitignore at %s: %w", path, writeErr)
		}
		return len(gitignorePatterns), nil
	case err != nil:
		return 0, fmt.Errorf("reading .gitignore at %s: %w", path, err)
	}

	missing := missingPatterns(existing)
	if len(missing) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString("# rowprompt\n")
	for _, p := range missing {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("opening .gitignore at %s: %w", path, err)
	}
	defer f.Close()
	if _, err = f.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("appending to .gitignore at %s: %w", path, err)
	}
	return len(missing), nil
}

func missingPatterns(content []byte) []string {
	present := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		present[strings.TrimSpace(scanner.Text())] = true
	}

	var missing []string
	for _, p := range gitignorePatterns {
		if !present[p] {
			missing = append(missing, p)
		}
	}
	return missing
}
