package utils

import (
	"hash/fnv"
)

// ShardIndex maps key onto one of totalShards buckets with FNV-1a.
func ShardIndex(totalShards uint64, key string) uint64 {
	if totalShards <= 1 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64() % totalShards
}

// SplitCapacity divides total across n shards. The remainder goes to the
// first shard so the parts always sum to total.
func SplitCapacity(total int64, n uint64) []int64 {
	parts := make([]int64, n)
	each := total / int64(n)
	for i := range parts {
		parts[i] = each
	}
	parts[0] += total - each*int64(n)
	return parts
}
