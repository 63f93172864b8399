package storage

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Cell is the runtime borrow check guarding one archetype column. Shared
// borrows may coexist; a single exclusive borrow excludes all other access.
// Conflicts fail fast at borrow time rather than blocking or silently
// aliasing.
//
// State is a single counter: 0 free, >0 the number of shared borrows, -1 an
// exclusive borrow.
type Cell struct {
	state atomic.Int32
}

// BorrowShared acquires a shared borrow. The returned release function must
// be called exactly once on every exit path.
func (c *Cell) BorrowShared() (release func(), err error) {
	for {
		cur := c.state.Load()
		if cur < 0 {
			return nil, eris.Wrap(ErrBorrowConflict, "column is exclusively borrowed")
		}
		if c.state.CompareAndSwap(cur, cur+1) {
			return c.releaseShared, nil
		}
	}
}

// BorrowExclusive acquires an exclusive borrow. The returned release function
// must be called exactly once on every exit path.
func (c *Cell) BorrowExclusive() (release func(), err error) {
	if !c.state.CompareAndSwap(0, -1) {
		return nil, eris.Wrap(ErrBorrowConflict, "column is already borrowed")
	}
	return c.releaseExclusive, nil
}

func (c *Cell) releaseShared() {
	if c.state.Add(-1) < 0 {
		panic("storage: shared borrow released twice")
	}
}

func (c *Cell) releaseExclusive() {
	if !c.state.CompareAndSwap(-1, 0) {
		panic("storage: exclusive borrow released twice")
	}
}
