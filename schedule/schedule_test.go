package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/tessera-engine/tessera"
	"github.com/tessera-engine/tessera/assert"
	"github.com/tessera-engine/tessera/schedule"
	"github.com/tessera-engine/tessera/types"
)

type Position struct {
	X, Y float64
}

func (Position) Name() string { return "position" }

type Velocity struct {
	DX, DY float64
}

func (Velocity) Name() string { return "velocity" }

func newWorld(t *testing.T) (*tessera.World, types.ComponentMetadata, types.ComponentMetadata) {
	t.Helper()
	w, err := tessera.NewWorld()
	assert.NilError(t, err)
	pos, err := tessera.RegisterComponent[Position](w)
	assert.NilError(t, err)
	vel, err := tessera.RegisterComponent[Velocity](w)
	assert.NilError(t, err)
	return w, pos, vel
}

func noop(context.Context, *tessera.World) error { return nil }

func TestBatches_ReadersShareABatch(t *testing.T) {
	_, pos, _ := newWorld(t)

	s := schedule.New()
	s.AddSystem(schedule.System{Name: "a", Accesses: []schedule.Access{{Component: pos.ID()}}, Run: noop})
	s.AddSystem(schedule.System{Name: "b", Accesses: []schedule.Access{{Component: pos.ID()}}, Run: noop})

	batches := s.Batches()
	assert.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestBatches_WriterConflictsWithReader(t *testing.T) {
	_, pos, vel := newWorld(t)

	s := schedule.New()
	s.AddSystem(schedule.System{Name: "writer", Accesses: []schedule.Access{{Component: pos.ID(), Write: true}}, Run: noop})
	s.AddSystem(schedule.System{Name: "reader", Accesses: []schedule.Access{{Component: pos.ID()}}, Run: noop})
	s.AddSystem(schedule.System{Name: "other", Accesses: []schedule.Access{{Component: vel.ID(), Write: true}}, Run: noop})

	batches := s.Batches()
	assert.Len(t, batches, 2)
	// The velocity writer joins the first batch; the position reader waits.
	assert.Len(t, batches[0], 2)
	assert.Equal(t, batches[0][1].Name, "other")
	assert.Equal(t, batches[1][0].Name, "reader")
}

func TestBatches_WritersOfSameComponentSerialize(t *testing.T) {
	_, pos, _ := newWorld(t)

	s := schedule.New()
	for _, name := range []string{"a", "b", "c"} {
		s.AddSystem(schedule.System{Name: name, Accesses: []schedule.Access{{Component: pos.ID(), Write: true}}, Run: noop})
	}

	batches := s.Batches()
	assert.Len(t, batches, 3)
}

func TestRun_ExecutesEverySystem(t *testing.T) {
	w, pos, vel := newWorld(t)

	var ran atomic.Int32
	count := func(context.Context, *tessera.World) error {
		ran.Add(1)
		return nil
	}

	s := schedule.New()
	s.AddSystem(schedule.System{Name: "a", Accesses: []schedule.Access{{Component: pos.ID(), Write: true}}, Run: count})
	s.AddSystem(schedule.System{Name: "b", Accesses: []schedule.Access{{Component: vel.ID(), Write: true}}, Run: count})
	s.AddSystem(schedule.System{Name: "c", Accesses: []schedule.Access{{Component: pos.ID()}}, Run: count})

	assert.NilError(t, s.Run(context.Background(), w))
	assert.Equal(t, ran.Load(), int32(3))
}

func TestRun_ErrorAbortsLaterBatches(t *testing.T) {
	w, pos, _ := newWorld(t)

	var ran atomic.Int32
	s := schedule.New()
	s.AddSystem(schedule.System{
		Name:     "failing",
		Accesses: []schedule.Access{{Component: pos.ID(), Write: true}},
		Run: func(context.Context, *tessera.World) error {
			return errBoom
		},
	})
	s.AddSystem(schedule.System{
		Name:     "never",
		Accesses: []schedule.Access{{Component: pos.ID(), Write: true}},
		Run: func(context.Context, *tessera.World) error {
			ran.Add(1)
			return nil
		},
	})

	err := s.Run(context.Background(), w)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, ran.Load(), int32(0))
}

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}
