package dag

import (
	"fmt"
	"sort"

	"fortio.org/safecast"
)

// NodeID is a slot in the project arena.
type NodeID uint32

// Index maps resolved absolute paths to arena slots.
type Index struct {
	PathToID map[string]NodeID
	IDToPath []string
}

// BuildIndex collects unique paths, sorts them and hands out IDs in that order.
func BuildIndex(paths []string) *Index {
	uniq := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p != "" {
			uniq[p] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(uniq))
	for p := range uniq {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	idx := &Index{
		PathToID: make(map[string]NodeID, len(sorted)),
		IDToPath: make([]string, 0, len(sorted)),
	}
	for _, p := range sorted {
		idx.Intern(p)
	}
	return idx
}

// Intern returns the ID for path, appending a new slot when the path is unknown.
// The second result reports whether a slot was added.
func (idx *Index) Intern(path string) (NodeID, bool) {
	if id, ok := idx.PathToID[path]; ok {
		return id, false
	}
	id, ok := ToNodeID(len(idx.IDToPath))
	if !ok {
		panic(fmt.Errorf("node id overflow: %d", len(idx.IDToPath)))
	}
	idx.PathToID[path] = id
	idx.IDToPath = append(idx.IDToPath, path)
	return id, true
}

// Lookup returns the ID of a known path.
func (idx *Index) Lookup(path string) (NodeID, bool) {
	id, ok := idx.PathToID[path]
	return id, ok
}

// Len returns the number of slots.
func (idx *Index) Len() int {
	return len(idx.IDToPath)
}

// ToNodeID converts an arena position into a NodeID.
func ToNodeID(i int) (NodeID, bool) {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		return 0, false
	}
	return id, true
}
