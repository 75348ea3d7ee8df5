package diag

import (
	"fmt"
	"strings"
)

// FormatShort renders diagnostics one per line, in their existing order:
//
//	error TS2345 src/a.ts:3:7 Argument of type ...
//
// Multi-line messages are folded onto one line. Project-scope diagnostics use
// "-" as their location.
func FormatShort(diags []Diagnostic) string {
	if len(diags) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := range diags {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(formatOne(&diags[i]))
	}
	return sb.String()
}

func formatOne(d *Diagnostic) string {
	loc := "-"
	if d.HasLocation() {
		loc = fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
	return fmt.Sprintf("%s %s %s %s", d.Severity, d.Code, loc, flatten(d.Text))
}

func flatten(msg string) string {
	if !strings.Contains(msg, "\n") {
		return msg
	}
	parts := strings.Fields(msg)
	return strings.Join(parts, " ")
}
