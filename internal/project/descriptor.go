package project

import (
	"path/filepath"

	"errdeltas/internal/project/dag"
)

// ProjectID is the arena slot of a descriptor inside a Graph.
type ProjectID = dag.NodeID

type Kind uint8

const (
	// KindConfig is a tsconfig-driven project.
	KindConfig Kind = iota + 1
	// KindScript is a build script that invokes the compiler directly.
	KindScript
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindScript:
		return "script"
	default:
		return "unknown"
	}
}

// Origin records how a descriptor entered the graph.
type Origin uint8

const (
	// OriginDiscovered: found by the naming-convention walk.
	OriginDiscovered Origin = iota + 1
	// OriginExtends: loaded only because another config extends it.
	OriginExtends
	// OriginReference: loaded only because another config references it.
	OriginReference
)

func (o Origin) String() string {
	switch o {
	case OriginDiscovered:
		return "discovered"
	case OriginExtends:
		return "extends"
	case OriginReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Status is the structural health of a descriptor. Problems found while
// building the graph are recorded here instead of being returned as errors.
type Status uint8

const (
	StatusParseError Status = 1 << iota
	StatusExtensionError
	StatusReferenceError

	StatusOK Status = 0
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	out := ""
	add := func(flag Status, name string) {
		if s&flag == 0 {
			return
		}
		if out != "" {
			out += "|"
		}
		out += name
	}
	add(StatusParseError, "parse")
	add(StatusExtensionError, "extends")
	add(StatusReferenceError, "reference")
	return out
}

// Descriptor is one buildable unit: a config file or a build script.
type Descriptor struct {
	ID          ProjectID
	Path        string // absolute path of the config file or script
	Kind        Kind
	Origin      Origin
	IsComposite bool
	Contents    string // verbatim file text
	Status      Status

	References   []ProjectID
	ReferencedBy []ProjectID // back-index of References
	Extends      []ProjectID
	ExtendedBy   []ProjectID // back-index of Extends
}

func (d *Descriptor) HasParseError() bool     { return d.Status&StatusParseError != 0 }
func (d *Descriptor) HasExtensionError() bool { return d.Status&StatusExtensionError != 0 }
func (d *Descriptor) HasReferenceError() bool { return d.Status&StatusReferenceError != 0 }

// HasError reports whether any structural problem was recorded.
func (d *Descriptor) HasError() bool { return d.Status != StatusOK }

// Dir returns the directory holding the config or script.
func (d *Descriptor) Dir() string { return filepath.Dir(d.Path) }
