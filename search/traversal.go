package search

import (
	"slices"

	"github.com/tessera-engine/tessera/storage"
	"github.com/tessera-engine/tessera/types"
)

// VisitFn is invoked per visited entity with its depth below the root.
// Returning false stops the traversal.
type VisitFn func(id types.EntityID, depth int) bool

// FoldFn combines the accumulated value carried down the traversal path with
// the visited entity, returning the value its children will receive.
// Returning false stops the traversal.
type FoldFn func(acc any, id types.EntityID) (next any, cont bool)

// Traversal walks the entity graph induced by one relation component,
// depth-first from a set of roots. Archetype membership is re-resolved at
// every step, so structural changes between callback invocations are
// tolerated. A per-traversal visited set guards against cycles in the
// relation graph.
type Traversal struct {
	store     *storage.Store
	relation  types.ComponentMetadata
	roots     []types.EntityID
	postOrder bool
}

// NewTraversal creates a traversal following the given relation component.
func NewTraversal(store *storage.Store, relation types.ComponentMetadata) *Traversal {
	return &Traversal{store: store, relation: relation}
}

// From sets the root entities to start from. Without an explicit root set,
// roots are discovered: entities that are targets of the relation but hold no
// edge of it themselves. Calling From with no arguments pins the traversal to
// an empty root set rather than falling back to discovery.
func (t *Traversal) From(roots ...types.EntityID) *Traversal {
	c := *t
	c.roots = append(make([]types.EntityID, 0, len(roots)), roots...)
	return &c
}

// PostOrder makes the traversal yield children before their parent. The
// default is pre-order.
func (t *Traversal) PostOrder() *Traversal {
	c := *t
	c.postOrder = true
	return &c
}

// Each visits entities depth-first. An empty root set yields nothing and is
// not an error.
func (t *Traversal) Each(cb VisitFn) error {
	visited := make(map[types.EntityID]bool)
	for _, root := range t.resolveRoots() {
		if !t.visit(root, 0, visited, cb) {
			return nil
		}
	}
	return nil
}

// Fold visits entities depth-first in pre-order, carrying an accumulated
// value down each path. Every entity receives the value produced at its
// parent, so sibling subtrees do not observe each other's accumulation.
func (t *Traversal) Fold(seed any, fn FoldFn) error {
	visited := make(map[types.EntityID]bool)
	for _, root := range t.resolveRoots() {
		if !t.fold(root, seed, visited, fn) {
			return nil
		}
	}
	return nil
}

func (t *Traversal) visit(id types.EntityID, depth int, visited map[types.EntityID]bool, cb VisitFn) bool {
	if visited[id] {
		return true
	}
	visited[id] = true
	// Membership is re-resolved per step rather than cached across callback
	// boundaries.
	if !t.store.Index().IsAlive(id) {
		return true
	}
	if !t.postOrder && !cb(id, depth) {
		return false
	}
	for _, child := range t.children(id) {
		if !t.visit(child, depth+1, visited, cb) {
			return false
		}
	}
	if t.postOrder && !cb(id, depth) {
		return false
	}
	return true
}

func (t *Traversal) fold(id types.EntityID, acc any, visited map[types.EntityID]bool, fn FoldFn) bool {
	if visited[id] {
		return true
	}
	visited[id] = true
	if !t.store.Index().IsAlive(id) {
		return true
	}
	next, cont := fn(acc, id)
	if !cont {
		return false
	}
	for _, child := range t.children(id) {
		if !t.fold(child, next, visited, fn) {
			return false
		}
	}
	return true
}

// children returns a snapshot of the entities whose relation edge targets id,
// in stable entity order. The snapshot insulates the walk from reverse-index
// mutation by the callback.
func (t *Traversal) children(id types.EntityID) []types.EntityID {
	children := slices.Clone(t.store.Incoming(id, t.relation.ID()))
	slices.SortFunc(children, compareEntityIDs)
	return children
}

func (t *Traversal) resolveRoots() []types.EntityID {
	if t.roots != nil {
		return t.roots
	}
	return t.store.RelationRoots(t.relation.ID())
}

func compareEntityIDs(a, b types.EntityID) int {
	if a.Index != b.Index {
		return int(a.Index) - int(b.Index)
	}
	return int(a.Generation) - int(b.Generation)
}
