package filter

import (
	"github.com/tessera-engine/tessera/types"
)

type not struct {
	filter ComponentFilter
}

func Not(filter ComponentFilter) ComponentFilter {
	return &not{filter: filter}
}

func (f *not) MatchesMask(mask types.Mask) bool {
	return !f.filter.MatchesMask(mask)
}

func (f *not) Summary() Summary {
	// Negating a single-component requirement is a definite exclusion.
	// Anything wider cannot be summarized soundly.
	inner := f.filter.Summary()
	if inner.Required.Count() == 1 && inner.Excluded.IsZero() {
		return Summary{Excluded: inner.Required}
	}
	return Summary{}
}
