package snapshot

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/tessera-engine/tessera/codec"
)

const keyPrefix = "SNAPSHOT:"

// ErrSnapshotNotFound is returned when no snapshot exists under a label.
var ErrSnapshotNotFound = eris.New("snapshot not found")

// RedisStore persists labeled snapshots in redis.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps a redis client. Any Cmdable works, including pipelines.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func snapshotKey(label string) string {
	return keyPrefix + label
}

// Save stores the snapshot under the label, replacing any existing one.
func (r *RedisStore) Save(ctx context.Context, label string, snap *WorldSnapshot) error {
	bz, err := codec.Encode(snap)
	if err != nil {
		return err
	}
	return eris.Wrap(r.client.Set(ctx, snapshotKey(label), bz, 0).Err(), "")
}

// Load retrieves the snapshot stored under the label.
func (r *RedisStore) Load(ctx context.Context, label string) (*WorldSnapshot, error) {
	bz, err := r.client.Get(ctx, snapshotKey(label)).Bytes()
	if eris.Is(err, redis.Nil) {
		return nil, eris.Wrapf(ErrSnapshotNotFound, "label %q", label)
	}
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	snap, err := codec.Decode[WorldSnapshot](bz)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Delete removes the snapshot stored under the label, if any.
func (r *RedisStore) Delete(ctx context.Context, label string) error {
	return eris.Wrap(r.client.Del(ctx, snapshotKey(label)).Err(), "")
}

// Labels lists the labels of all stored snapshots.
func (r *RedisStore) Labels(ctx context.Context) ([]string, error) {
	keys, err := r.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	labels := make([]string, 0, len(keys))
	for _, key := range keys {
		labels = append(labels, key[len(keyPrefix):])
	}
	return labels, nil
}
