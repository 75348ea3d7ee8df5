package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"errdeltas/internal/project/dag"
)

var (
	ErrRootNotDirectory = errors.New("discovery root is not a directory")
)

// skippedDirs are never descended into: installed packages and VCS metadata.
var skippedDirs = map[string]struct{}{
	"node_modules":     {},
	"bower_components": {},
	"jspm_packages":    {},
	".git":             {},
	".yarn":            {},
	".pnpm-store":      {},
}

// Discover walks root and builds the project graph. Malformed or dangling
// configs are recorded on their descriptors; only filesystem failures on the
// walk itself are returned as errors.
func Discover(root string) (*Graph, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, abs)
	}

	configs, scripts, err := enumerate(abs)
	if err != nil {
		return nil, err
	}

	b := newBuilder(abs, configs)
	b.drain()
	b.loadScripts(scripts)
	return b.finish(), nil
}

// enumerate lists config and script candidates by file name.
func enumerate(root string) (configs, scripts []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		switch d.Name() {
		case ConfigFileName:
			configs = append(configs, path)
		case ScriptFileName:
			scripts = append(scripts, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return configs, scripts, nil
}

type builder struct {
	root       string
	index      *dag.Index
	projects   []Descriptor
	references *dag.Edges
	extends    *dag.Edges
	composite  []*bool // composite as written in each config, nil if unset
	queue      []ProjectID
}

func newBuilder(root string, configs []string) *builder {
	b := &builder{
		root:       root,
		index:      dag.BuildIndex(configs),
		references: dag.NewEdges(len(configs)),
		extends:    dag.NewEdges(len(configs)),
	}
	for i, path := range b.index.IDToPath {
		id := toProjectID(i)
		b.projects = append(b.projects, newDescriptor(id, path, KindConfig, OriginDiscovered))
		b.composite = append(b.composite, nil)
		b.queue = append(b.queue, id)
	}
	return b
}

func newDescriptor(id ProjectID, path string, kind Kind, origin Origin) Descriptor {
	return Descriptor{
		ID:           id,
		Path:         path,
		Kind:         kind,
		Origin:       origin,
		References:   []ProjectID{},
		ReferencedBy: []ProjectID{},
		Extends:      []ProjectID{},
		ExtendedBy:   []ProjectID{},
	}
}

// load returns the descriptor for a config path, enqueuing it when new.
func (b *builder) load(path string, origin Origin) ProjectID {
	id, added := b.index.Intern(path)
	if !added {
		return id
	}
	b.projects = append(b.projects, newDescriptor(id, path, KindConfig, origin))
	b.composite = append(b.composite, nil)
	b.references.Grow(b.index.Len())
	b.extends.Grow(b.index.Len())
	b.queue = append(b.queue, id)
	return id
}

// drain parses every queued config; targets of extends and references are
// loaded on first sight, so each file is read once.
func (b *builder) drain() {
	for len(b.queue) > 0 {
		id := b.queue[0]
		b.queue = b.queue[1:]
		b.parse(id)
	}
}

func (b *builder) parse(id ProjectID) {
	path := b.projects[id].Path
	dir := filepath.Dir(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		b.projects[id].Status |= StatusParseError
		return
	}
	b.projects[id].Contents = string(raw)

	meta, err := parseConfig(raw)
	if err != nil {
		// битый JSON: рёбер нет, но проект остаётся в графе
		b.projects[id].Status |= StatusParseError
		return
	}
	b.composite[id] = meta.Composite

	for _, spec := range meta.Extends {
		target, ok := resolveExtends(dir, spec)
		if !ok {
			b.projects[id].Status |= StatusExtensionError
			continue
		}
		b.extends.Link(id, b.load(target, OriginExtends))
	}
	for _, ref := range meta.References {
		target, ok := resolveReference(dir, ref)
		if !ok {
			b.projects[id].Status |= StatusReferenceError
			continue
		}
		b.references.Link(id, b.load(target, OriginReference))
	}
}

func (b *builder) loadScripts(scripts []string) {
	for _, path := range scripts {
		contents, ok, err := readScript(path)
		if err == nil && !ok {
			continue
		}
		id, added := b.index.Intern(path)
		if !added {
			continue
		}
		d := newDescriptor(id, path, KindScript, OriginDiscovered)
		d.Contents = contents
		if err != nil {
			d.Status |= StatusParseError
		}
		b.projects = append(b.projects, d)
		b.composite = append(b.composite, nil)
	}
	b.references.Grow(b.index.Len())
	b.extends.Grow(b.index.Len())
}

// effectiveComposite resolves the composite flag through the extends chain;
// later bases override earlier ones and the config's own value wins.
func (b *builder) effectiveComposite(id ProjectID, visiting map[ProjectID]bool) *bool {
	if own := b.composite[id]; own != nil {
		return own
	}
	if visiting[id] {
		return nil
	}
	visiting[id] = true
	defer delete(visiting, id)

	bases := b.extends.From(id)
	for i := len(bases) - 1; i >= 0; i-- {
		if v := b.effectiveComposite(bases[i], visiting); v != nil {
			return v
		}
	}
	return nil
}

func (b *builder) finish() *Graph {
	g := &Graph{
		Root:       b.root,
		projects:   b.projects,
		index:      b.index,
		references: b.references,
		extends:    b.extends,
	}

	for i := range g.projects {
		d := &g.projects[i]
		if d.Kind == KindConfig {
			if v := b.effectiveComposite(d.ID, map[ProjectID]bool{}); v != nil {
				d.IsComposite = *v
			}
		}
		d.References = append(d.References, b.references.From(d.ID)...)
		d.ReferencedBy = append(d.ReferencedBy, b.references.To(d.ID)...)
		d.Extends = append(d.Extends, b.extends.From(d.ID)...)
		d.ExtendedBy = append(d.ExtendedBy, b.extends.To(d.ID)...)
		if d.HasError() {
			g.hasError = true
		}
	}

	var composites []ProjectID
	for i := range g.projects {
		if g.projects[i].IsComposite {
			composites = append(composites, g.projects[i].ID)
		}
	}
	builtByComposite := b.references.Closure(composites)

	for i := range g.projects {
		d := &g.projects[i]
		switch {
		case d.Kind == KindScript:
			g.scripted = append(g.scripted, d.ID)
		case d.IsComposite:
			if d.Origin == OriginExtends && len(d.ReferencedBy) == 0 {
				// shared base config, never built on its own
				continue
			}
			if !g.referencedByOtherComposite(d) {
				g.rootComposite = append(g.rootComposite, d.ID)
			}
		case d.Origin == OriginDiscovered:
			if _, covered := builtByComposite[d.ID]; !covered {
				g.simple = append(g.simple, d.ID)
			}
		}
	}
	g.promoteCycles(composites)
	slices.SortFunc(g.scripted, func(a, c ProjectID) int { return strings.Compare(g.projects[a].Path, g.projects[c].Path) })
	return g
}

// promoteCycles gives every composite reference cycle that no root composite
// reaches an entry point: its lowest-path member becomes a root so the cycle
// is handed to tsc -b and fails there.
func (g *Graph) promoteCycles(composites []ProjectID) {
	for {
		reached := g.references.Closure(g.rootComposite)
		for _, id := range g.rootComposite {
			reached[id] = struct{}{}
		}
		var pick *Descriptor
		for _, id := range composites {
			d := &g.projects[id]
			if _, ok := reached[id]; ok || !g.referencedByOtherComposite(d) {
				continue
			}
			if !g.onCompositeCycle(d) {
				continue
			}
			if pick == nil || d.Path < pick.Path {
				pick = d
			}
		}
		if pick == nil {
			return
		}
		g.rootComposite = append(g.rootComposite, pick.ID)
	}
}

// onCompositeCycle reports whether d reaches itself through references to
// other composites.
func (g *Graph) onCompositeCycle(d *Descriptor) bool {
	seen := map[ProjectID]bool{}
	stack := []ProjectID{}
	for _, to := range d.References {
		if to != d.ID {
			stack = append(stack, to)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == d.ID {
			return true
		}
		if seen[id] || !g.projects[id].IsComposite {
			continue
		}
		seen[id] = true
		stack = append(stack, g.projects[id].References...)
	}
	return false
}

func (g *Graph) referencedByOtherComposite(d *Descriptor) bool {
	for _, from := range d.ReferencedBy {
		if from != d.ID && g.projects[from].IsComposite {
			return true
		}
	}
	return false
}

func toProjectID(i int) ProjectID {
	id, ok := dag.ToNodeID(i)
	if !ok {
		panic(fmt.Sprintf("project id overflow: %d", i))
	}
	return id
}
