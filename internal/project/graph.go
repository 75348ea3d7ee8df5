package project

import (
	"path/filepath"

	"errdeltas/internal/project/dag"
)

// Graph is the immutable result of Discover. Descriptors live in one arena
// and refer to each other by ProjectID.
type Graph struct {
	Root string

	projects   []Descriptor
	index      *dag.Index
	references *dag.Edges
	extends    *dag.Edges

	simple        []ProjectID
	rootComposite []ProjectID
	scripted      []ProjectID
	hasError      bool
}

// Projects returns every descriptor, including extends and reference targets.
func (g *Graph) Projects() []Descriptor { return g.projects }

// Get returns the descriptor for id, or nil.
func (g *Graph) Get(id ProjectID) *Descriptor {
	if int(id) >= len(g.projects) {
		return nil
	}
	return &g.projects[id]
}

// Lookup finds a descriptor by absolute path.
func (g *Graph) Lookup(path string) (*Descriptor, bool) {
	id, ok := g.index.Lookup(filepath.Clean(path))
	if !ok {
		return nil, false
	}
	return &g.projects[id], true
}

// SimpleProjects are non-composite configs found by the walk and not built
// as part of any composite.
func (g *Graph) SimpleProjects() []*Descriptor { return g.resolve(g.simple) }

// RootCompositeProjects are composite configs no other composite references.
func (g *Graph) RootCompositeProjects() []*Descriptor { return g.resolve(g.rootComposite) }

// ScriptedProjects are build scripts, in path order.
func (g *Graph) ScriptedProjects() []*Descriptor { return g.resolve(g.scripted) }

// HasError reports whether any descriptor carries a structural error.
func (g *Graph) HasError() bool { return g.hasError }

// Errored lists descriptors with structural errors.
func (g *Graph) Errored() []*Descriptor {
	var out []*Descriptor
	for i := range g.projects {
		if g.projects[i].HasError() {
			out = append(out, &g.projects[i])
		}
	}
	return out
}

func (g *Graph) resolve(ids []ProjectID) []*Descriptor {
	out := make([]*Descriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, &g.projects[id])
	}
	return out
}

// BuildPlan is the order in which entry points are handed to the compiler.
type BuildPlan struct {
	Configs []*Descriptor // referenced projects before their referrers
	Scripts []*Descriptor
	Cyclic  []*Descriptor // entry points caught in a reference cycle, appended to Configs
}

// BuildOrder sequences the simple and root composite projects along their
// reference edges. Descriptors with structural errors are left out.
func (g *Graph) BuildOrder() BuildPlan {
	present := make([]bool, len(g.projects))
	for _, ids := range [][]ProjectID{g.simple, g.rootComposite} {
		for _, id := range ids {
			if !g.projects[id].HasError() {
				present[id] = true
			}
		}
	}

	topo := dag.ToposortKahn(g.references, present)
	plan := BuildPlan{
		Configs: g.resolve(topo.Order),
		Cyclic:  g.resolve(topo.Cycles),
	}
	plan.Configs = append(plan.Configs, plan.Cyclic...)
	for _, id := range g.scripted {
		if !g.projects[id].HasError() {
			plan.Scripts = append(plan.Scripts, &g.projects[id])
		}
	}
	return plan
}

// DescriptorView is the path-keyed, serializable form of a Descriptor.
type DescriptorView struct {
	Path              string   `json:"path"`
	Kind              string   `json:"kind"`
	Origin            string   `json:"origin"`
	IsComposite       bool     `json:"isComposite"`
	HasParseError     bool     `json:"hasParseError"`
	HasExtensionError bool     `json:"hasExtensionError"`
	HasReferenceError bool     `json:"hasReferenceError"`
	References        []string `json:"references"`
	ReferencedBy      []string `json:"referencedBy"`
	Extends           []string `json:"extends"`
	ExtendedBy        []string `json:"extendedBy"`
	Contents          string   `json:"contents"`
}

// GraphView is the serializable form of a Graph. Paths are relative to Root
// and slash-separated.
type GraphView struct {
	SimpleProjects        []DescriptorView `json:"simpleProjects"`
	RootCompositeProjects []DescriptorView `json:"rootCompositeProjects"`
	ScriptedProjects      []DescriptorView `json:"scriptedProjects"`
	HasError              bool             `json:"hasError"`
}

// View renders the graph for display or golden comparison.
func (g *Graph) View() GraphView {
	return GraphView{
		SimpleProjects:        g.views(g.simple),
		RootCompositeProjects: g.views(g.rootComposite),
		ScriptedProjects:      g.views(g.scripted),
		HasError:              g.hasError,
	}
}

func (g *Graph) views(ids []ProjectID) []DescriptorView {
	out := make([]DescriptorView, 0, len(ids))
	for _, id := range ids {
		d := &g.projects[id]
		out = append(out, DescriptorView{
			Path:              g.Rel(d.Path),
			Kind:              d.Kind.String(),
			Origin:            d.Origin.String(),
			IsComposite:       d.IsComposite,
			HasParseError:     d.HasParseError(),
			HasExtensionError: d.HasExtensionError(),
			HasReferenceError: d.HasReferenceError(),
			References:        g.paths(d.References),
			ReferencedBy:      g.paths(d.ReferencedBy),
			Extends:           g.paths(d.Extends),
			ExtendedBy:        g.paths(d.ExtendedBy),
			Contents:          d.Contents,
		})
	}
	return out
}

func (g *Graph) paths(ids []ProjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Rel(g.projects[id].Path))
	}
	return out
}

// Rel returns path relative to the graph root, slash-separated.
func (g *Graph) Rel(path string) string {
	if rel, err := filepath.Rel(g.Root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
