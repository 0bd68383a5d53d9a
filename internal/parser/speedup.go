package parser

import (
	"regexp"
	"strconv"
)

// speedupRe matches rsync's closing "speedup is X.XX" line, emitted
// separately from the sent/received summary line.
var speedupRe = regexp.MustCompile(`speedup is ([\d.]+)`)

// ParseSpeedup matches a single line against the speedup grammar.
func ParseSpeedup(line string) (float64, bool) {
	m := speedupRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractSpeedup scans a full invocation's output lines for the last
// "speedup is X.XX" occurrence. rsync writes this line once per run, but
// scanning keeps last-match-wins semantics if a transfer's output is
// replayed with repeated trailers.
func ExtractSpeedup(lines []string) (float64, bool) {
	var last float64
	var found bool
	for _, line := range lines {
		if v, ok := ParseSpeedup(line); ok {
			last = v
			found = true
		}
	}
	return last, found
}
