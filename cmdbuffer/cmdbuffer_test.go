package cmdbuffer_test

import (
	"testing"

	"github.com/tessera-engine/tessera"
	"github.com/tessera-engine/tessera/assert"
	"github.com/tessera-engine/tessera/cmdbuffer"
	"github.com/tessera-engine/tessera/filter"
	"github.com/tessera-engine/tessera/storage"
)

type Position struct {
	X, Y float64
}

func (Position) Name() string { return "position" }

type Velocity struct {
	DX, DY float64
}

func (Velocity) Name() string { return "velocity" }

func newWorld(t *testing.T) *tessera.World {
	t.Helper()
	w, err := tessera.NewWorld()
	assert.NilError(t, err)
	_, err = tessera.RegisterComponent[Position](w)
	assert.NilError(t, err)
	_, err = tessera.RegisterComponent[Velocity](w)
	assert.NilError(t, err)
	return w
}

func TestCommandBuffer_AppliesInSubmissionOrder(t *testing.T) {
	w := newWorld(t)
	existing, err := w.Spawn(Position{})
	assert.NilError(t, err)

	buf := cmdbuffer.New()
	buf.Spawn(Position{X: 1})
	buf.Set(existing, Position{X: 5})
	buf.Spawn(Position{X: 2}, Velocity{})
	buf.Remove(existing, "position")

	created, err := buf.Apply(w)
	// The remove fails: it would leave the entity with no components.
	assert.ErrorIs(t, err, storage.ErrEntityMustHaveAtLeastOneComponent)

	// Operations before the failure stayed applied.
	assert.Len(t, created, 2)
	pos, err := tessera.GetComponent[Position](w, existing)
	assert.NilError(t, err)
	assert.Equal(t, pos.X, 5.0)
	for _, id := range created {
		assert.True(t, w.IsAlive(id))
	}
}

func TestCommandBuffer_SetAddsWhenAbsent(t *testing.T) {
	w := newWorld(t)
	id, err := w.Spawn(Position{})
	assert.NilError(t, err)

	buf := cmdbuffer.New()
	buf.Set(id, Velocity{DX: 3})
	_, err = buf.Apply(w)
	assert.NilError(t, err)

	vel, err := tessera.GetComponent[Velocity](w, id)
	assert.NilError(t, err)
	assert.Equal(t, vel.DX, 3.0)
}

func TestCommandBuffer_DespawnAndClear(t *testing.T) {
	w := newWorld(t)
	id, err := w.Spawn(Position{})
	assert.NilError(t, err)

	buf := cmdbuffer.New()
	buf.Despawn(id)
	assert.Equal(t, buf.Len(), 1)

	_, err = buf.Apply(w)
	assert.NilError(t, err)
	assert.False(t, w.IsAlive(id))
	assert.Equal(t, buf.Len(), 0)
}

func TestCommandBuffer_DedupKeepsLastWrite(t *testing.T) {
	w := newWorld(t)
	id, err := w.Spawn(Position{})
	assert.NilError(t, err)

	buf := cmdbuffer.New(cmdbuffer.WithDedup())
	buf.Set(id, Position{X: 1})
	buf.Set(id, Position{X: 2})
	assert.Equal(t, buf.Len(), 1)

	_, err = buf.Apply(w)
	assert.NilError(t, err)

	pos, err := tessera.GetComponent[Position](w, id)
	assert.NilError(t, err)
	assert.Equal(t, pos.X, 2.0)
}

func TestCommandBuffer_WithoutDedupQueuesBoth(t *testing.T) {
	w := newWorld(t)
	id, err := w.Spawn(Position{})
	assert.NilError(t, err)

	buf := cmdbuffer.New()
	buf.Set(id, Position{X: 1})
	buf.Set(id, Position{X: 2})
	assert.Equal(t, buf.Len(), 2)

	_, err = buf.Apply(w)
	assert.NilError(t, err)
	pos, err := tessera.GetComponent[Position](w, id)
	assert.NilError(t, err)
	assert.Equal(t, pos.X, 2.0)
}

func TestCommandBuffer_Discard(t *testing.T) {
	w := newWorld(t)

	buf := cmdbuffer.New()
	buf.Spawn(Position{})
	buf.Discard()
	assert.Equal(t, buf.Len(), 0)

	created, err := buf.Apply(w)
	assert.NilError(t, err)
	assert.Len(t, created, 0)

	n, err := w.NewSearch(filter.All()).Count()
	assert.NilError(t, err)
	assert.Equal(t, n, 0)
}
