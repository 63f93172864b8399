// Package codec is the single JSON boundary of the engine. Component values,
// snapshots, and anything else that crosses into bytes goes through Encode and
// Decode so the serialization library is swappable in one place.
package codec

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Decode unmarshals bz into a zero value of T.
func Decode[T any](bz []byte) (T, error) {
	var value T
	if err := json.Unmarshal(bz, &value); err != nil {
		return value, eris.Wrapf(err, "decoding %T", value)
	}
	return value, nil
}

// Encode marshals value to JSON.
func Encode(value any) ([]byte, error) {
	bz, err := json.Marshal(value)
	if err != nil {
		return nil, eris.Wrapf(err, "encoding %T", value)
	}
	return bz, nil
}
