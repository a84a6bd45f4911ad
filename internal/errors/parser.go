package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Severity is the severity of a parsed diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is one located message from the output of an external tool.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
	Raw      string   `json:"raw"`
}

// Position returns the line and column of the diagnostic.
func (d Diagnostic) Position() (line, column int) { return d.Line, d.Column }

// String formats the diagnostic as "file:line:column: severity: message".
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
			if d.Column > 0 {
				fmt.Fprintf(&b, ":%d", d.Column)
			}
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Severity.String())
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

type diagnosticPattern struct {
	regex       *regexp.Regexp
	parseFields func(m []string) (file string, line, column int, message string)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Output formats of common asset compilers, most specific first.
var diagnosticPatterns = []diagnosticPattern{
	// tsc: a.ts(3,5): error TS1005: ';' expected.
	{
		regex: regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (.+)$`),
		parseFields: func(m []string) (string, int, int, string) {
			return m[1], atoi(m[2]), atoi(m[3]), m[4]
		},
	},
	// lessc: ParseError: Unrecognised input in a.less on line 3, column 5:
	{
		regex: regexp.MustCompile(`^(.+?) in (.+?) on line (\d+), column (\d+):?$`),
		parseFields: func(m []string) (string, int, int, string) {
			return m[2], atoi(m[3]), atoi(m[4]), m[1]
		},
	},
	// sass, stylus: "  a.scss 3:5  root stylesheet"
	{
		regex: regexp.MustCompile(`^(\S+\.\w+) (\d+):(\d+)\s+.*$`),
		parseFields: func(m []string) (string, int, int, string) {
			return m[1], atoi(m[2]), atoi(m[3]), ""
		},
	},
	// gcc style: a.js:3:5: message
	{
		regex: regexp.MustCompile(`^(.+?):(\d+):(\d+):? (.+)$`),
		parseFields: func(m []string) (string, int, int, string) {
			return m[1], atoi(m[2]), atoi(m[3]), m[4]
		},
	},
	{
		regex: regexp.MustCompile(`^(.+?):(\d+): (.+)$`),
		parseFields: func(m []string) (string, int, int, string) {
			return m[1], atoi(m[2]), 0, m[3]
		},
	},
}

// ParseDiagnostics extracts located messages from tool output. Lines that
// mention an error or a failure without a location become diagnostics
// without one. A location line with no message of its own, as sass prints
// below the message, takes over the last such diagnostic.
func ParseDiagnostics(output string) []Diagnostic {
	var out []Diagnostic
	pending := -1

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if d, ok := parseLine(line); ok {
			if d.Message == "" && pending >= 0 {
				d.Message = out[pending].Message
				d.Severity = out[pending].Severity
				out[pending] = d
				pending = -1
				continue
			}
			out = append(out, d)
			pending = -1
			continue
		}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") || strings.HasPrefix(lower, "warning") {
			out = append(out, Diagnostic{Severity: severityOf(line), Message: line, Raw: line})
			pending = len(out) - 1
		}
	}
	return out
}

func parseLine(line string) (Diagnostic, bool) {
	for _, p := range diagnosticPatterns {
		m := p.regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file, ln, col, msg := p.parseFields(m)
		return Diagnostic{
			Severity: severityOf(msg),
			File:     file,
			Line:     ln,
			Column:   col,
			Message:  msg,
			Raw:      line,
		}, true
	}
	return Diagnostic{}, false
}

func severityOf(msg string) Severity {
	lower := strings.ToLower(msg)
	switch {
	case strings.HasPrefix(lower, "warning"), strings.Contains(lower, " warning"):
		return SeverityWarning
	case strings.HasPrefix(lower, "info"), strings.HasPrefix(lower, "note"):
		return SeverityInfo
	default:
		return SeverityError
	}
}

// FirstLocated returns the first diagnostic that carries a line number.
func FirstLocated(diags []Diagnostic) (Diagnostic, bool) {
	for _, d := range diags {
		if d.Line > 0 {
			return d, true
		}
	}
	return Diagnostic{}, false
}
