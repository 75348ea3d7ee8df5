package dag

import "slices"

// Edges is one relation over the arena: the owning forward edge list plus the
// mirrored back-index. Out[a] contains b exactly when In[b] contains a.
type Edges struct {
	Out [][]NodeID // Out[from] = []to, in declaration order
	In  [][]NodeID // In[to] = []from, in link order
}

// NewEdges allocates an edge set for n nodes.
func NewEdges(n int) *Edges {
	return &Edges{
		Out: make([][]NodeID, n),
		In:  make([][]NodeID, n),
	}
}

// Grow extends the edge set to cover n nodes.
func (e *Edges) Grow(n int) {
	for len(e.Out) < n {
		e.Out = append(e.Out, nil)
		e.In = append(e.In, nil)
	}
}

// Link records from→to and its mirror. Duplicate edges are ignored and
// reported as false. Self edges are kept.
func (e *Edges) Link(from, to NodeID) bool {
	hi := int(max(from, to)) + 1
	e.Grow(hi)
	if slices.Contains(e.Out[from], to) {
		return false
	}
	e.Out[from] = append(e.Out[from], to)
	e.In[to] = append(e.In[to], from)
	return true
}

// From returns the forward neighbours of id.
func (e *Edges) From(id NodeID) []NodeID {
	if int(id) >= len(e.Out) {
		return nil
	}
	return e.Out[id]
}

// To returns the nodes that point at id.
func (e *Edges) To(id NodeID) []NodeID {
	if int(id) >= len(e.In) {
		return nil
	}
	return e.In[id]
}

// Closure returns every node reachable from roots along forward edges,
// roots excluded unless reachable through a cycle.
func (e *Edges) Closure(roots []NodeID) map[NodeID]struct{} {
	seen := make(map[NodeID]struct{})
	queue := make([]NodeID, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, e.From(r)...)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		queue = append(queue, e.From(id)...)
	}
	return seen
}
