package graphql

// StatsSource is satisfied by storage.BufferPool and
// storage.ShardedBufferPool: anything the poolStats query can report on.
type StatsSource interface {
	Stats() map[string]interface{}
}

// resolvePoolStats adapts a StatsSource snapshot to the PoolStats GraphQL
// object's field names, tolerating the absence of any individual counter.
func resolvePoolStats(source StatsSource) map[string]interface{} {
	stats := source.Stats()

	return map[string]interface{}{
		"capacity":   asInt(stats["capacity"]),
		"resident":   asInt(stats["resident"]),
		"hits":       asInt(stats["hits"]),
		"misses":     asInt(stats["misses"]),
		"evictions":  asInt(stats["evictions"]),
		"queueDepth": asInt(stats["queue_depth"]),
		"shards":     asInt(stats["shards"]),
	}
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return 0
	}
}
