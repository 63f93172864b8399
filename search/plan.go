package search

import (
	"github.com/rotisserie/eris"

	"github.com/tessera-engine/tessera/storage"
	"github.com/tessera-engine/tessera/types"
)

// Plan is a compiled search: access declarations validated, candidate
// archetypes enumerated via the archetype graph. A plan is bound to the store
// state at compile time; structural mutations invalidate it.
type Plan struct {
	store      *storage.Store
	search     *Search
	candidates []types.ArchetypeID
}

// Compile validates the search and matches it against the archetype graph.
// Overlapping exclusive access fails here with ErrBorrowConflict;
// contradictory component constraints fail with ErrUnsatisfiableQuery.
// Conflicts are never deferred to iteration time.
func (s *Search) Compile() (*Plan, error) {
	seen := make(map[types.ComponentID]bool, len(s.writes))
	for _, comp := range s.writes {
		if seen[comp.ID()] {
			return nil, eris.Wrapf(storage.ErrBorrowConflict,
				"component %q is write-fetched twice in one plan", comp.Name())
		}
		seen[comp.ID()] = true
	}
	for _, comp := range s.reads {
		if seen[comp.ID()] {
			return nil, eris.Wrapf(storage.ErrBorrowConflict,
				"component %q is both read- and write-fetched in one plan", comp.Name())
		}
	}
	for _, comp := range s.optionalReads {
		if seen[comp.ID()] {
			return nil, eris.Wrapf(storage.ErrBorrowConflict,
				"component %q is both read- and write-fetched in one plan", comp.Name())
		}
	}

	candidates, err := s.store.FindArchetypes(s.componentFilter)
	if err != nil {
		return nil, err
	}
	return &Plan{store: s.store, search: s, candidates: candidates}, nil
}

// run executes the plan once, invoking fn per matching entity in slot order
// within each archetype. fn returning false stops the run.
func (p *Plan) run(fn func(types.EntityID) (bool, error)) error {
	for _, archID := range p.candidates {
		arch, err := p.store.Archetype(archID)
		if err != nil {
			// Pruned since compile; skip.
			continue
		}
		cont, err := p.runArchetype(arch, fn)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// runArchetype prepares the plan against one archetype and iterates its
// matching slot runs. Prepare borrows the declared columns and evaluates
// archetype-shape filters once; if the archetype cannot satisfy the fetch it
// is skipped rather than failing the whole run.
func (p *Plan) runArchetype(arch *storage.Archetype, fn func(types.EntityID) (bool, error)) (bool, error) {
	releases, ok := p.borrowColumns(arch)
	if !ok {
		return true, nil
	}
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	runs := p.matchRuns(arch)
	for _, r := range runs {
		for slot := r.Start; slot < r.End; slot++ {
			if slot >= arch.Len() {
				break
			}
			id := arch.EntityAt(slot)
			if p.search.whereFilter != nil {
				eligible, err := p.search.whereFilter(id)
				if err != nil {
					if entityMiss(err) {
						continue
					}
					return false, err
				}
				if !eligible {
					continue
				}
			}
			cont, err := fn(id)
			if err != nil {
				return false, err
			}
			if !cont {
				return false, nil
			}
		}
	}
	return true, nil
}

// borrowColumns acquires the declared column borrows on the archetype. A
// missing column or an outstanding conflicting borrow makes the archetype
// unsatisfiable for this plan, in which case it reports !ok with nothing held.
func (p *Plan) borrowColumns(arch *storage.Archetype) (releases []func(), ok bool) {
	rollback := func() {
		for _, release := range releases {
			release()
		}
	}
	for _, comp := range p.search.reads {
		col := arch.Column(comp.ID())
		if col == nil {
			rollback()
			return nil, false
		}
		release, err := col.Cell().BorrowShared()
		if err != nil {
			rollback()
			return nil, false
		}
		releases = append(releases, release)
	}
	for _, comp := range p.search.writes {
		col := arch.Column(comp.ID())
		if col == nil {
			rollback()
			return nil, false
		}
		release, err := col.Cell().BorrowExclusive()
		if err != nil {
			rollback()
			return nil, false
		}
		releases = append(releases, release)
	}
	for _, comp := range p.search.optionalReads {
		col := arch.Column(comp.ID())
		if col == nil {
			// Absent columns do not disqualify the archetype.
			continue
		}
		release, err := col.Cell().BorrowShared()
		if err != nil {
			rollback()
			return nil, false
		}
		releases = append(releases, release)
	}
	return releases, true
}

// matchRuns computes the slot runs of the archetype passing every change
// filter, so iteration processes contiguous runs rather than single slots.
// With no change filters the whole archetype is one run.
func (p *Plan) matchRuns(arch *storage.Archetype) []storage.SlotRange {
	runs := []storage.SlotRange{{Start: 0, End: arch.Len()}}
	for _, cf := range p.search.changeFilters {
		col := arch.Column(cf.component.ID())
		if col == nil {
			return nil
		}
		runs = intersectRuns(runs, col.Changes().Since(cf.kind, cf.since))
		if len(runs) == 0 {
			return nil
		}
	}
	return runs
}

// entityMiss reports whether a predicate error is an expected per-entity miss
// (the entity or component vanished between matching and evaluation) rather
// than a failure of the whole run.
func entityMiss(err error) bool {
	return eris.Is(err, storage.ErrEntityDoesNotExist) ||
		eris.Is(err, storage.ErrComponentNotOnEntity)
}

// intersectRuns intersects two ascending, non-overlapping range lists.
func intersectRuns(a, b []storage.SlotRange) []storage.SlotRange {
	var out []storage.SlotRange
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End, b[j].End)
		if start < end {
			out = append(out, storage.SlotRange{Start: start, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}
