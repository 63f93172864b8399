package search

import (
	"golang.org/x/sync/errgroup"

	"github.com/tessera-engine/tessera/storage"
	"github.com/tessera-engine/tessera/types"
)

// DefaultChunkSize is the slot-run length handed to one worker at a time.
const DefaultChunkSize = 1024

// ParallelCallbackFn is invoked per matching entity from worker goroutines.
// It must be safe to call concurrently. Returning an error cancels the run.
type ParallelCallbackFn func(types.EntityID) error

// EachParallel partitions the matching archetypes' slot runs into chunks and
// dispatches them to a bounded worker pool. Ordering across chunks is not
// guaranteed; within a chunk entities are visited in slot order, and a chunk
// never splits an entity's fetch. Structural mutations must not run
// concurrently; the declared column borrows are held for the whole run.
func (s *Search) EachParallel(workers int, callback ParallelCallbackFn) error {
	if workers <= 0 {
		workers = 1
	}
	plan, err := s.Compile()
	if err != nil {
		return err
	}

	var grp errgroup.Group
	grp.SetLimit(workers)

	var allReleases []func()
	defer func() {
		for _, release := range allReleases {
			release()
		}
	}()

	for _, archID := range plan.candidates {
		arch, err := plan.store.Archetype(archID)
		if err != nil {
			continue
		}
		releases, ok := plan.borrowColumns(arch)
		if !ok {
			continue
		}
		allReleases = append(allReleases, releases...)

		for _, run := range plan.matchRuns(arch) {
			for start := run.Start; start < run.End; start += DefaultChunkSize {
				chunk := storage.SlotRange{Start: start, End: min(start+DefaultChunkSize, run.End)}
				arch := arch
				grp.Go(func() error {
					return plan.runChunk(arch, chunk, callback)
				})
			}
		}
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	return nil
}

func (p *Plan) runChunk(arch *storage.Archetype, chunk storage.SlotRange, callback ParallelCallbackFn) error {
	for slot := chunk.Start; slot < chunk.End; slot++ {
		if slot >= arch.Len() {
			return nil
		}
		id := arch.EntityAt(slot)
		if p.search.whereFilter != nil {
			eligible, err := p.search.whereFilter(id)
			if err != nil {
				if entityMiss(err) {
					continue
				}
				return err
			}
			if !eligible {
				continue
			}
		}
		if err := callback(id); err != nil {
			return err
		}
	}
	return nil
}
