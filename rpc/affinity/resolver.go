package affinity

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/stromnet/strom/rpc/common"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IResolver maps a cluster peer to the shard that owns its connection.
// Implementations must be pure, deterministic and total: every shard of
// every node, given the same NodeID, computes the same owning shard.
type IResolver interface {
	// ShardFor returns the shard index that is authoritative for the node
	ShardFor(n common.NodeID) uint64

	// Shards returns the number of shards the resolver distributes over
	Shards() uint64
}

// --------------------------------------------------------------------------
// Hash based implementation
// --------------------------------------------------------------------------

// hashResolver distributes nodes over shards by hashing the node id
type hashResolver struct {
	shards uint64
}

// New creates a resolver that distributes node ids uniformly over the given
// number of shards. A shard count of zero is treated as one.
func New(shards uint64) IResolver {
	if shards == 0 {
		shards = 1
	}
	return &hashResolver{shards: shards}
}

// ShardFor hashes the 8 big-endian bytes of the node id with FNV-1a and
// reduces modulo the shard count. The byte representation is fixed so the
// result agrees across architectures.
func (r *hashResolver) ShardFor(n common.NodeID) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))

	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64() % r.shards
}

func (r *hashResolver) Shards() uint64 {
	return r.shards
}

// --------------------------------------------------------------------------
// Fixed implementation (single shard deployments and tests)
// --------------------------------------------------------------------------

// constResolver assigns every node to the same shard
type constResolver struct {
	shard  uint64
	shards uint64
}

// Const creates a resolver that assigns all nodes to a fixed shard. Useful
// for single shard deployments and for tests that need full control over
// placement.
func Const(shard, shards uint64) IResolver {
	if shards == 0 {
		shards = shard + 1
	}
	return &constResolver{shard: shard, shards: shards}
}

func (r *constResolver) ShardFor(common.NodeID) uint64 {
	return r.shard
}

func (r *constResolver) Shards() uint64 {
	return r.shards
}
