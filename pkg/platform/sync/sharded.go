package sync

import (
	"sync"
)

const shardCount = 32

// ShardedMap is a string-keyed map split across 32 independently locked
// shards. Callers mutate entries inside With, which holds only the key's
// shard lock, so unrelated keys never contend.
type ShardedMap[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

func NewShardedMap[V any]() *ShardedMap[V] {
	s := &ShardedMap[V]{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]V)
	}
	return s
}

// With runs fn with exclusive access to the shard holding key. fn may read,
// insert or delete any entry of the passed map but must not retain it.
func (s *ShardedMap[V]) With(key string, fn func(m map[string]V)) {
	sh := &s.shards[shardFor(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fn(sh.m)
}

// Sweep visits every entry one shard at a time and deletes those for which
// drop returns true. It returns the number of deleted entries. Concurrent
// With calls on other shards proceed while a shard is being swept.
func (s *ShardedMap[V]) Sweep(drop func(key string, v V) bool) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, v := range sh.m {
			if drop(k, v) {
				delete(sh.m, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of entries. The result is approximate under
// concurrent writes.
func (s *ShardedMap[V]) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.m)
		sh.mu.Unlock()
	}
	return n
}

// shardFor hashes key with djb2; empty keys land on shard 0.
func shardFor(key string) int {
	if key == "" {
		return 0
	}
	var h uint32
	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}
	return int(h % shardCount)
}
