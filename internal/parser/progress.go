// Package parser contains the three line-local output parsers and the
// speedup extractor that bind the engine to rsync's wire format.
// Each function is deliberately cross-line-state-free so reader goroutines
// can pump them per line with no buffering.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// progressRe matches rsync --progress lines, both the 3.0 "to-chk" form and
// the 3.1+ incremental-recursion "ir-chk" form:
//
//	     32,768 100%   31.25kB/s    0:00:00 (xfr#1, to-chk=2/4)
//	  205.18M 100%    7.46M/s    0:00:26 (xfr#1, ir-chk=0/1)
var progressRe = regexp.MustCompile(
	`^\s*([\d.,]+[KMGkmg]?)\s+(\d+)%\s+([\d.]+\w+/s)\s+(\d+:\d+(?::\d+)?)(?:\s+\(xfr#(\d+),\s*(?:to|ir)-chk=(\d+)/(\d+)\))?`,
)

// ParseHumanBytes parses a byte value that may be a raw (comma-grouped)
// integer or a human-readable value with a K/M/G suffix. Suffix units are
// powers of 1000, matching rsync's --human-readable default.
func ParseHumanBytes(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	last := s[len(s)-1]
	switch last {
	case 'K', 'k', 'M', 'm', 'G', 'g':
		numStr := strings.ReplaceAll(s[:len(s)-1], ",", "")
		num, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, false
		}
		var multiplier float64
		switch last {
		case 'K', 'k':
			multiplier = 1_000
		case 'M', 'm':
			multiplier = 1_000_000
		case 'G', 'g':
			multiplier = 1_000_000_000
		}
		return int64(num * multiplier), true
	default:
		numStr := strings.ReplaceAll(s, ",", "")
		n, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
}

// ParseProgress matches a single line against the progress grammar, returning
// a populated domain.ProgressUpdate (InvocationID left zero-value; the
// caller fills it in) or ok=false if the line does not match.
func ParseProgress(line string) (domain.ProgressUpdate, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return domain.ProgressUpdate{}, false
	}

	bytes, ok := ParseHumanBytes(m[1])
	if !ok {
		return domain.ProgressUpdate{}, false
	}
	pct, err := strconv.Atoi(m[2])
	if err != nil {
		return domain.ProgressUpdate{}, false
	}

	update := domain.ProgressUpdate{
		Bytes:   bytes,
		Pct:     pct,
		Rate:    m[3],
		Elapsed: m[4],
	}
	if m[5] != "" {
		update.FilesTransferred, _ = strconv.ParseInt(m[5], 10, 64)
	}
	if m[6] != "" {
		update.FilesRemaining, _ = strconv.ParseInt(m[6], 10, 64)
	}
	if m[7] != "" {
		update.FilesTotal, _ = strconv.ParseInt(m[7], 10, 64)
	}
	return update, true
}
