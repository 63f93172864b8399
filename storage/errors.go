package storage

import (
	"github.com/rotisserie/eris"
)

var (
	ErrEntityDoesNotExist                = eris.New("entity does not exist")
	ErrComponentAlreadyOnEntity          = eris.New("component already on entity")
	ErrComponentNotOnEntity              = eris.New("component not on entity")
	ErrEntityMustHaveAtLeastOneComponent = eris.New("entities must have at least 1 component")
	ErrArchetypeNotFound                 = eris.New("archetype for components not found")

	// ErrBorrowConflict is returned when a column borrow would overlap an
	// outstanding exclusive borrow, or when a query plan requests overlapping
	// exclusive access. It is always detected eagerly, never at data-access time.
	ErrBorrowConflict = eris.New("column borrow conflict")

	// ErrUnsatisfiableQuery is returned when a query plan requires a component
	// that it also excludes.
	ErrUnsatisfiableQuery = eris.New("query requires and excludes the same component")
)
