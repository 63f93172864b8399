package filter

import (
	"github.com/tessera-engine/tessera/types"
)

type and struct {
	filters []ComponentFilter
}

func And(filters ...ComponentFilter) ComponentFilter {
	return &and{filters: filters}
}

func (f *and) MatchesMask(mask types.Mask) bool {
	for _, filter := range f.filters {
		if !filter.MatchesMask(mask) {
			return false
		}
	}
	return true
}

func (f *and) Summary() Summary {
	var s Summary
	for _, filter := range f.filters {
		s = s.merge(filter.Summary())
	}
	return s
}
