package dupes

import (
	"sync"
	"sync/atomic"
)

// indexShards is the number of buckets in the fingerprint index. Workers
// hash files concurrently, so the index uses per-shard locks rather than a
// single lock serializing the whole pool.
const indexShards = 32

type indexKey struct {
	size int64
	hash uint64
}

type indexShard struct {
	mu sync.Mutex
	m  map[indexKey][]string
}

// shardedIndex maps (size, fingerprint) keys to member paths.
type shardedIndex struct {
	shards  [indexShards]indexShard
	inserts atomic.Int64
}

func newShardedIndex() *shardedIndex {
	idx := &shardedIndex{}
	for i := range idx.shards {
		idx.shards[i].m = make(map[indexKey][]string)
	}
	return idx
}

func (x *shardedIndex) add(key indexKey, path string) {
	shard := &x.shards[key.hash%indexShards]
	shard.mu.Lock()
	shard.m[key] = append(shard.m[key], path)
	shard.mu.Unlock()
	x.inserts.Add(1)
}

// groups returns every bucket with at least two members.
func (x *shardedIndex) groups() map[indexKey][]string {
	out := make(map[indexKey][]string)
	for i := range x.shards {
		shard := &x.shards[i]
		shard.mu.Lock()
		for k, paths := range shard.m {
			if len(paths) >= 2 {
				out[k] = append([]string(nil), paths...)
			}
		}
		shard.mu.Unlock()
	}
	return out
}

// verify cross-checks the stored member count against the insert counter.
// A mismatch means the index was torn by a concurrency fault; the scan must
// abort rather than silently emit wrong groups.
func (x *shardedIndex) verify() bool {
	var stored int64
	for i := range x.shards {
		shard := &x.shards[i]
		shard.mu.Lock()
		for _, paths := range shard.m {
			stored += int64(len(paths))
		}
		shard.mu.Unlock()
	}
	return stored == x.inserts.Load()
}
