// Package scrub finds and redacts a literal pattern (typically a leaked
// credential) across a job's log files on disk.
package scrub

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrEmptyPattern is returned by Scan and Apply when pattern is empty — an
// empty pattern would match every line of every file, which is never the
// caller's intent.
var ErrEmptyPattern = errors.New("scrub: pattern must not be empty")

// ScanResult names one log file containing at least one match, and how
// many occurrences of the pattern it contains.
type ScanResult struct {
	FilePath   string
	MatchCount int
}

// ApplyResult reports how many replacements were made in one file.
type ApplyResult struct {
	FilePath     string
	Replacements int
}

// Scan walks logDir for *.log files and counts occurrences of pattern in
// each, returning only files with at least one match, sorted by path.
func Scan(logDir, pattern string) ([]ScanResult, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("scrub: read log directory: %w", err)
	}

	var results []ScanResult
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		path := filepath.Join(logDir, entry.Name())
		count, err := countMatches(path, pattern)
		if err != nil {
			return nil, fmt.Errorf("scrub: scan %s: %w", path, err)
		}
		if count > 0 {
			results = append(results, ScanResult{FilePath: path, MatchCount: count})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].FilePath < results[j].FilePath })
	return results, nil
}

func countMatches(path, pattern string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		count += strings.Count(scanner.Text(), pattern)
	}
	return count, scanner.Err()
}

// Apply replaces every occurrence of pattern with an equal-length run of
// "*" characters in each named file, rewriting the file only if at least
// one replacement was made. Files that don't exist are skipped silently.
func Apply(pattern string, filePaths []string) ([]ApplyResult, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	replacement := strings.Repeat("*", len(pattern))

	results := make([]ApplyResult, 0, len(filePaths))
	for _, path := range filePaths {
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scrub: read %s: %w", path, err)
		}

		replacements := strings.Count(string(content), pattern)
		if replacements == 0 {
			results = append(results, ApplyResult{FilePath: path, Replacements: 0})
			continue
		}

		scrubbed := strings.ReplaceAll(string(content), pattern, replacement)
		if err := os.WriteFile(path, []byte(scrubbed), 0o644); err != nil {
			return nil, fmt.Errorf("scrub: write %s: %w", path, err)
		}
		results = append(results, ApplyResult{FilePath: path, Replacements: replacements})
	}
	return results, nil
}
