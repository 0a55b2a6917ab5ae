// Package patterns surfaces human-readable strings of interest from raw file
// content. It scans for printable ASCII and UTF-16LE runs and filters them
// against a list of suspicious lexical indicators. The output is advisory:
// matches feed the scoring engine but never condemn a file on their own.
package patterns

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// DefaultMinLength is the minimum printable run length worth reporting.
const DefaultMinLength = 4

// DefaultMaxSuspicious caps reported matches so files engineered to contain
// millions of hits cannot blow up the output.
const DefaultMaxSuspicious = 100

// DefaultIndicators are lexical markers of command execution, exfiltration,
// credential access, and network activity.
var DefaultIndicators = []string{
	"cmd.exe", "powershell", "/bin/sh", "/bin/bash", "wscript", "cscript",
	"http://", "https://", "ftp://",
	"registry", "regedit", "schtasks",
	"download", "upload", "exfil",
	"keylog", "password", "credential", "token",
	"encrypt", "decrypt", "ransom",
	"backdoor", "trojan", "botnet",
	"getprocaddress", "loadlibrary", "virtualalloc", "createremotethread",
}

// Result summarizes one extraction pass.
type Result struct {
	TotalStrings int
	Suspicious   []string
	Truncated    bool
}

// Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	minLength     int
	maxSuspicious int
	indicators    []string
	matcher       *ahocorasick.Matcher
}

// NewExtractor builds an extractor. Zero or negative limits fall back to the
// defaults; an empty indicator list falls back to DefaultIndicators.
func NewExtractor(minLength, maxSuspicious int, indicators []string) *Extractor {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if maxSuspicious <= 0 {
		maxSuspicious = DefaultMaxSuspicious
	}
	if len(indicators) == 0 {
		indicators = DefaultIndicators
	}
	lowered := make([]string, 0, len(indicators))
	for _, indicator := range indicators {
		indicator = strings.ToLower(strings.TrimSpace(indicator))
		if indicator == "" {
			continue
		}
		lowered = append(lowered, indicator)
	}
	return &Extractor{
		minLength:     minLength,
		maxSuspicious: maxSuspicious,
		indicators:    lowered,
		matcher:       ahocorasick.NewStringMatcher(lowered),
	}
}

// Extract scans content for printable runs in both encodings and returns the
// deduplicated suspicious matches in order of first appearance.
func (e *Extractor) Extract(content []byte) Result {
	var result Result
	seen := make(map[string]struct{})

	collect := func(s string) {
		result.TotalStrings++
		if len(result.Suspicious) >= e.maxSuspicious {
			if e.isSuspicious(s) {
				if _, dup := seen[s]; !dup {
					result.Truncated = true
				}
			}
			return
		}
		if !e.isSuspicious(s) {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		result.Suspicious = append(result.Suspicious, s)
	}

	e.asciiRuns(content, collect)
	e.utf16leRuns(content, collect)
	return result
}

func (e *Extractor) isSuspicious(s string) bool {
	matches := e.matcher.MatchThreadSafe([]byte(strings.ToLower(s)))
	return len(matches) > 0
}

func printableASCII(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

func (e *Extractor) asciiRuns(content []byte, emit func(string)) {
	start := -1
	for i, b := range content {
		if printableASCII(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= e.minLength {
			emit(string(content[start:i]))
		}
		start = -1
	}
	if start >= 0 && len(content)-start >= e.minLength {
		emit(string(content[start:]))
	}
}

// utf16leRuns finds sequences of printable ASCII characters interleaved with
// zero bytes, the shape of strings embedded by Windows tooling.
func (e *Extractor) utf16leRuns(content []byte, emit func(string)) {
	var run []byte
	flush := func() {
		if len(run) >= e.minLength {
			emit(string(run))
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(content); i += 2 {
		if printableASCII(content[i]) && content[i+1] == 0x00 {
			run = append(run, content[i])
			continue
		}
		flush()
	}
	flush()
}
