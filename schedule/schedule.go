// Package schedule partitions systems into batches whose component access
// declarations do not conflict, then runs each batch's systems together.
package schedule

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/tessera-engine/tessera"
	"github.com/tessera-engine/tessera/types"
)

// Access declares how a system touches one component type.
type Access struct {
	Component types.ComponentID
	Write     bool
}

// System is a unit of work with declared component accesses. Two systems
// conflict when one writes a component the other reads or writes.
type System struct {
	Name     string
	Accesses []Access
	Run      func(ctx context.Context, w *tessera.World) error
}

// Scheduler holds registered systems in registration order.
type Scheduler struct {
	systems []System
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// AddSystem registers a system. Registration order is preserved: a system is
// never scheduled before an earlier-registered system it conflicts with.
func (s *Scheduler) AddSystem(sys System) {
	s.systems = append(s.systems, sys)
}

// Batches partitions the registered systems greedily: each system joins the
// earliest batch containing no system it conflicts with.
func (s *Scheduler) Batches() [][]System {
	var batches [][]System
	var batchWrites []types.Mask
	var batchReads []types.Mask
	for _, sys := range s.systems {
		reads, writes := accessMasks(sys.Accesses)
		placed := false
		for i := range batches {
			if writes.Intersects(batchReads[i]) || writes.Intersects(batchWrites[i]) ||
				reads.Intersects(batchWrites[i]) {
				continue
			}
			batches[i] = append(batches[i], sys)
			batchReads[i] = union(batchReads[i], reads)
			batchWrites[i] = union(batchWrites[i], writes)
			placed = true
			break
		}
		if !placed {
			batches = append(batches, []System{sys})
			batchReads = append(batchReads, reads)
			batchWrites = append(batchWrites, writes)
		}
	}
	return batches
}

// Run executes all systems batch by batch. Systems within a batch run
// concurrently via an errgroup; the first error cancels the remaining
// systems of that batch and aborts later batches.
func (s *Scheduler) Run(ctx context.Context, w *tessera.World) error {
	for _, batch := range s.Batches() {
		group, groupCtx := errgroup.WithContext(ctx)
		for _, sys := range batch {
			sys := sys
			group.Go(func() error {
				if err := sys.Run(groupCtx, w); err != nil {
					return eris.Wrapf(err, "system %q failed", sys.Name)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func accessMasks(accesses []Access) (reads, writes types.Mask) {
	for _, a := range accesses {
		if a.Write {
			writes = writes.Set(a.Component)
		} else {
			reads = reads.Set(a.Component)
		}
	}
	return reads, writes
}

func union(a, b types.Mask) types.Mask {
	for i := range a {
		a[i] |= b[i]
	}
	return a
}
