package diag

import "fortio.org/safecast"

// Bag collects distinct diagnostics in arrival order up to a limit. Repeats
// of a diagnostic already held are ignored and never count against the limit.
type Bag struct {
	items   []Diagnostic
	seen    map[dedupKey]struct{}
	max     int // 0 means unlimited
	dropped int
}

func NewBag(max int) *Bag {
	if max < 0 {
		max = 0
	}
	return &Bag{
		items: make([]Diagnostic, 0, min(max, 64)),
		seen:  make(map[dedupKey]struct{}),
		max:   max,
	}
}

type dedupKey struct {
	code   Code
	sev    Severity
	file   string
	line   uint32
	column uint32
	text   string
}

func keyOf(d *Diagnostic) dedupKey {
	return dedupKey{
		code:   d.Code,
		sev:    d.Severity,
		file:   d.File,
		line:   d.Line,
		column: d.Column,
		text:   d.Text,
	}
}

// Add stores d unless an identical diagnostic (same code, location and text)
// is already held or the limit is reached. Build mode can print one
// diagnostic once per referencing project. It reports whether d was stored.
func (b *Bag) Add(d Diagnostic) bool {
	key := keyOf(&d)
	if _, dup := b.seen[key]; dup {
		return false
	}
	if b.max > 0 && len(b.items) >= b.max {
		b.dropped++
		return false
	}
	b.seen[key] = struct{}{}
	b.items = append(b.items, d)
	return true
}

// Dropped returns how many distinct diagnostics were refused because of the
// limit.
func (b *Bag) Dropped() uint32 {
	n, err := safecast.Conv[uint32](b.dropped)
	if err != nil {
		return ^uint32(0)
	}
	return n
}

// Items returns the stored diagnostics. The slice aliases the bag.
func (b *Bag) Items() []Diagnostic {
	return b.items
}
