package diag

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

var (
	// src/a.ts(12,5): error TS2345: Argument of type ...
	locatedHeader = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning|message) TS(\d+): (.*)$`)
	// error TS5055: Cannot write file ...
	globalHeader = regexp.MustCompile(`^(error|warning|message) TS(\d+): (.*)$`)
)

// Parser turns compiler output produced with --pretty false into
// diagnostics. Message chains printed on indented follow-up lines are joined
// to the header they belong to.
type Parser struct {
	emit    func(Diagnostic)
	pending *Diagnostic
}

func NewParser(emit func(Diagnostic)) *Parser {
	return &Parser{emit: emit}
}

// Line feeds one output line and reports whether it was part of a diagnostic.
func (p *Parser) Line(line string) bool {
	line = strings.TrimRight(line, "\r")

	if m := locatedHeader.FindStringSubmatch(line); m != nil {
		sev, _ := ParseSeverity(m[4])
		p.start(Diagnostic{
			Severity: sev,
			Code:     parseCode(m[5]),
			Text:     m[6],
			File:     m[1],
			Line:     parseUint32(m[2]),
			Column:   parseUint32(m[3]),
		})
		return true
	}
	if m := globalHeader.FindStringSubmatch(line); m != nil {
		sev, _ := ParseSeverity(m[1])
		p.start(Diagnostic{
			Severity: sev,
			Code:     parseCode(m[2]),
			Text:     m[3],
		})
		return true
	}
	if p.pending != nil && strings.HasPrefix(line, "  ") && strings.TrimSpace(line) != "" {
		p.pending.Text += "\n" + strings.TrimSpace(line)
		return true
	}
	p.Flush()
	return false
}

// Flush emits the diagnostic being assembled, if any.
func (p *Parser) Flush() {
	if p.pending == nil {
		return
	}
	d := *p.pending
	p.pending = nil
	if p.emit != nil {
		p.emit(d)
	}
}

func (p *Parser) start(d Diagnostic) {
	p.Flush()
	p.pending = &d
}

// Parse reads all of r and returns the diagnostics in output order.
func Parse(r io.Reader) ([]Diagnostic, error) {
	var out []Diagnostic
	p := NewParser(func(d Diagnostic) { out = append(out, d) })
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		p.Line(sc.Text())
	}
	p.Flush()
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ParseString is Parse over an in-memory transcript.
func ParseString(s string) []Diagnostic {
	out, _ := Parse(strings.NewReader(s))
	return out
}

func parseCode(s string) Code {
	return Code(parseUint32(s))
}

func parseUint32(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return 0
	}
	return v
}
