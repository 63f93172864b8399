package filter

import (
	"github.com/tessera-engine/tessera/types"
)

type or struct {
	filters []ComponentFilter
}

func Or(filters ...ComponentFilter) ComponentFilter {
	return &or{filters: filters}
}

func (f *or) MatchesMask(mask types.Mask) bool {
	for _, filter := range f.filters {
		if filter.MatchesMask(mask) {
			return true
		}
	}
	return false
}

func (f *or) Summary() Summary {
	// Only what every branch demands is guaranteed across the disjunction.
	if len(f.filters) == 0 {
		return Summary{}
	}
	s := f.filters[0].Summary()
	for _, filter := range f.filters[1:] {
		other := filter.Summary()
		for i := range s.Required {
			s.Required[i] &= other.Required[i]
			s.Excluded[i] &= other.Excluded[i]
		}
	}
	return s
}
