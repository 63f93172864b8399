package search

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/tessera-engine/tessera/filter"
	"github.com/tessera-engine/tessera/storage"
	"github.com/tessera-engine/tessera/types"
)

var badEntityID = types.EntityID{Index: math.MaxUint32, Generation: math.MaxUint32}

// CallbackFn is invoked per matching entity. Returning false stops iteration.
type CallbackFn func(types.EntityID) bool

// FilterFn is an arbitrary per-entity predicate evaluated after archetype and
// change filtering.
type FilterFn func(types.EntityID) (bool, error)

// Search finds the set of entities matching a component filter, optional
// change-detection filters, and an optional per-entity where clause. A Search
// is a reusable description; each call to Each/First/Count/Collect compiles
// it into a plan and runs it once.
type Search struct {
	store *storage.Store

	// componentFilter defines the entity component criteria.
	componentFilter filter.ComponentFilter

	// reads and writes declare column access. Write access is exclusive per
	// (archetype, column) while iteration is in flight. Optional reads borrow
	// the column when the archetype has it but do not disqualify archetypes
	// that lack it.
	reads         []types.ComponentMetadata
	writes        []types.ComponentMetadata
	optionalReads []types.ComponentMetadata

	changeFilters []changeFilter

	// whereFilter is an arbitrary user-defined filter evaluated per entity.
	whereFilter FilterFn
}

type changeFilter struct {
	component types.ComponentMetadata
	kind      storage.ChangeKind
	since     types.Tick
}

// New creates a Search over the given store with a component filter.
func New(store *storage.Store, componentFilter filter.ComponentFilter) *Search {
	return &Search{
		store:           store,
		componentFilter: componentFilter,
	}
}

// Reads declares shared access to the given components during iteration.
func (s *Search) Reads(comps ...types.ComponentMetadata) *Search {
	c := *s
	c.reads = append(slices.Clone(s.reads), comps...)
	return &c
}

// Writes declares exclusive access to the given components during iteration.
func (s *Search) Writes(comps ...types.ComponentMetadata) *Search {
	c := *s
	c.writes = append(slices.Clone(s.writes), comps...)
	return &c
}

// ReadsOptional declares shared access to components the matching archetype
// may or may not hold. Archetypes without the column still match; archetypes
// with it have the column borrowed for the iteration.
func (s *Search) ReadsOptional(comps ...types.ComponentMetadata) *Search {
	c := *s
	c.optionalReads = append(slices.Clone(s.optionalReads), comps...)
	return &c
}

// RelatedTo narrows the search to entities whose edge of the given relation
// points at target.
func (s *Search) RelatedTo(relation types.ComponentMetadata, target types.EntityID) *Search {
	return s.Where(func(id types.EntityID) (bool, error) {
		value, err := s.store.GetComponent(id, relation)
		if err != nil {
			return false, err
		}
		got, ok := relation.Target(value)
		return ok && got == target, nil
	})
}

// Changed narrows the search to entities whose value for the component was
// written strictly after the given tick.
func (s *Search) Changed(comp types.ComponentMetadata, since types.Tick) *Search {
	return s.withChangeFilter(changeFilter{component: comp, kind: storage.ChangeModified, since: since})
}

// Added narrows the search to entities that acquired the component strictly
// after the given tick.
func (s *Search) Added(comp types.ComponentMetadata, since types.Tick) *Search {
	return s.withChangeFilter(changeFilter{component: comp, kind: storage.ChangeAdded, since: since})
}

func (s *Search) withChangeFilter(cf changeFilter) *Search {
	c := *s
	c.changeFilters = append(slices.Clone(s.changeFilters), cf)
	return &c
}

// Where narrows the search with an arbitrary per-entity predicate. Chained
// where clauses are conjoined.
func (s *Search) Where(whereFn FilterFn) *Search {
	c := *s
	if s.whereFilter != nil {
		prev := s.whereFilter
		c.whereFilter = func(id types.EntityID) (bool, error) {
			ok, err := prev(id)
			if err != nil || !ok {
				return ok, err
			}
			return whereFn(id)
		}
	} else {
		c.whereFilter = whereFn
	}
	return &c
}

// Each iterates over all entities that match the search in archetype slot
// order. Return false from the callback to stop. The produced iteration is
// single-pass; re-issue the search to restart.
func (s *Search) Each(callback CallbackFn) error {
	plan, err := s.Compile()
	if err != nil {
		return err
	}
	return plan.run(func(id types.EntityID) (bool, error) {
		return callback(id), nil
	})
}

// First returns the first entity that matches the search.
func (s *Search) First() (types.EntityID, error) {
	plan, err := s.Compile()
	if err != nil {
		return badEntityID, err
	}
	found := badEntityID
	err = plan.run(func(id types.EntityID) (bool, error) {
		found = id
		return false, nil
	})
	if err != nil {
		return badEntityID, err
	}
	if found == badEntityID {
		return badEntityID, eris.New("no entities for the given criteria found")
	}
	return found, nil
}

// MustFirst returns the first entity that matches the search, panicking if
// there is none.
func (s *Search) MustFirst() types.EntityID {
	id, err := s.First()
	if err != nil {
		panic("no entity matches the search")
	}
	return id
}

// Count returns the number of entities that match the search.
func (s *Search) Count() (int, error) {
	plan, err := s.Compile()
	if err != nil {
		return 0, err
	}
	n := 0
	err = plan.run(func(types.EntityID) (bool, error) {
		n++
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Collect returns all matching entities sorted by ID.
func (s *Search) Collect() ([]types.EntityID, error) {
	acc := make([]types.EntityID, 0)
	err := s.Each(func(id types.EntityID) bool {
		acc = append(acc, id)
		return true
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(acc, compareEntityIDs)
	return acc, nil
}
