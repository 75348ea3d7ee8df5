package dag

import (
	"fmt"
	"slices"
)

type Topo struct {
	Order   []NodeID   // dependencies before dependents (present nodes only)
	Batches [][]NodeID // waves of mutually independent nodes
	Cyclic  bool
	Cycles  []NodeID // nodes left over because of a cycle
}

// ToposortKahn orders the present nodes so that for every edge from→to, to is
// emitted before from. Edges to absent nodes are ignored.
func ToposortKahn(e *Edges, present []bool) *Topo {
	nodeCount := len(present)
	pending := make([]int, nodeCount)

	topo := &Topo{
		Order:   make([]NodeID, 0, nodeCount),
		Batches: make([][]NodeID, 0),
	}

	active := 0
	for i := range nodeCount {
		if !present[i] {
			continue
		}
		active++
		for _, to := range e.From(toID(i)) {
			if int(to) < nodeCount && present[to] {
				pending[i]++
			}
		}
	}

	current := make([]NodeID, 0, nodeCount)
	for i := range nodeCount {
		if present[i] && pending[i] == 0 {
			current = append(current, toID(i))
		}
	}

	visited := 0
	for len(current) > 0 {
		batch := make([]NodeID, len(current))
		copy(batch, current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]NodeID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, from := range e.To(id) {
				if int(from) >= nodeCount || !present[from] {
					continue
				}
				pending[from]--
				if pending[from] == 0 {
					next = append(next, from)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if visited != active {
		topo.Cyclic = true
		for i := range nodeCount {
			if present[i] && pending[i] > 0 {
				topo.Cycles = append(topo.Cycles, toID(i))
			}
		}
	}

	return topo
}

func toID(i int) NodeID {
	id, ok := ToNodeID(i)
	if !ok {
		panic(fmt.Errorf("node id overflow: %d", i))
	}
	return id
}
