package affinity

import (
	"testing"

	"github.com/stromnet/strom/rpc/common"
)

// TestDeterministic verifies that independent resolver instances agree on
// placement, which every node of the cluster relies on
func TestDeterministic(t *testing.T) {
	a := New(8)
	b := New(8)

	for n := common.NodeID(0); n < 1000; n++ {
		if a.ShardFor(n) != b.ShardFor(n) {
			t.Fatalf("resolvers disagree on node %s: %d vs %d", n, a.ShardFor(n), b.ShardFor(n))
		}
	}
}

// TestTotal verifies that every node id maps to a valid shard index
func TestTotal(t *testing.T) {
	r := New(5)

	ids := []common.NodeID{0, 1, 2, 42, 1 << 40, ^common.NodeID(0)}
	for _, n := range ids {
		if s := r.ShardFor(n); s >= r.Shards() {
			t.Errorf("node %s mapped to out-of-range shard %d", n, s)
		}
	}
}

// TestZeroShards verifies the shard count floor
func TestZeroShards(t *testing.T) {
	r := New(0)
	if r.Shards() != 1 {
		t.Fatalf("expected shard count 1, got %d", r.Shards())
	}
	if s := r.ShardFor(99); s != 0 {
		t.Errorf("single shard resolver must map everything to 0, got %d", s)
	}
}

// TestDistribution verifies that placement over many nodes is reasonably even
func TestDistribution(t *testing.T) {
	r := New(8)

	nodes := make([]common.NodeID, 10000)
	for i := range nodes {
		nodes[i] = common.NodeID(i)
	}

	stats := NewPlacementStats(r, nodes)
	if stats.DistributionQuality < 0.8 {
		t.Errorf("placement too skewed: quality=%.3f min=%.0f max=%.0f",
			stats.DistributionQuality, stats.Min, stats.Max)
	}
}

// TestConst verifies the fixed resolver used for single shard deployments
func TestConst(t *testing.T) {
	r := Const(3, 4)

	for n := common.NodeID(0); n < 100; n++ {
		if s := r.ShardFor(n); s != 3 {
			t.Fatalf("const resolver mapped node %s to shard %d", n, s)
		}
	}
	if r.Shards() != 4 {
		t.Errorf("expected 4 shards, got %d", r.Shards())
	}
}
