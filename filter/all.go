package filter

import (
	"github.com/tessera-engine/tessera/types"
)

type all struct{}

func All() ComponentFilter {
	return &all{}
}

func (f *all) MatchesMask(_ types.Mask) bool {
	return true
}

func (f *all) Summary() Summary {
	return Summary{}
}
