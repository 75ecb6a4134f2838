package host

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stromnet/strom/rpc/common"
	"github.com/stromnet/strom/rpc/conncache"
	"github.com/stromnet/strom/rpc/transport"
)

// stubTransport counts its stop invocations
type stubTransport struct {
	stopCount atomic.Int32
}

func (s *stubTransport) Send(uint64, []byte) ([]byte, error) { return nil, nil }
func (s *stubTransport) Stop() error {
	s.stopCount.Add(1)
	return nil
}

func newStubFactory() (transport.ClientFactory, func() []*stubTransport) {
	var mu sync.Mutex
	var created []*stubTransport

	factory := func(common.ClientConfig) transport.IClientTransport {
		s := &stubTransport{}
		mu.Lock()
		created = append(created, s)
		mu.Unlock()
		return s
	}
	snapshot := func() []*stubTransport {
		mu.Lock()
		defer mu.Unlock()
		return append([]*stubTransport(nil), created...)
	}
	return factory, snapshot
}

// TestEmplaceLandsOnOwningShard verifies that a connection emplaced through
// the host ends up in exactly the owning shard's cache
func TestEmplaceLandsOnOwningShard(t *testing.T) {
	factory, _ := newStubFactory()
	h := NewHost(4, factory)
	defer h.Stop()

	ctx := context.Background()
	n := common.NodeID(42)

	if err := h.EmplaceNode(ctx, n, common.ClientConfig{Endpoint: "peer:7575"}); err != nil {
		t.Fatalf("emplace failed: %v", err)
	}

	owner := h.Resolver().ShardFor(n)
	for shard := uint64(0); shard < 4; shard++ {
		contains := h.Cache(shard).Contains(n)
		if shard == owner && !contains {
			t.Errorf("owning shard %d is missing the entry", shard)
		}
		if shard != owner && contains {
			t.Errorf("shard %d holds an entry it does not own", shard)
		}
	}
}

// TestRemoveNode verifies removal through the host, including the no-op case
func TestRemoveNode(t *testing.T) {
	factory, _ := newStubFactory()
	h := NewHost(2, factory)
	defer h.Stop()

	ctx := context.Background()
	n := common.NodeID(7)

	if err := h.EmplaceNode(ctx, n, common.ClientConfig{Endpoint: "peer:7575"}); err != nil {
		t.Fatalf("emplace failed: %v", err)
	}
	if err := h.RemoveNode(ctx, n); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := h.RemoveNode(ctx, n); err != nil {
		t.Fatalf("idempotent remove failed: %v", err)
	}

	owner := h.Resolver().ShardFor(n)
	if h.Cache(owner).Contains(n) {
		t.Error("entry still present after remove")
	}
}

// TestMisroutedDirectCall verifies that bypassing the host and mutating a
// non-owning shard's cache directly still fails loudly
func TestMisroutedDirectCall(t *testing.T) {
	factory, _ := newStubFactory()
	h := NewHost(4, factory)
	defer h.Stop()

	ctx := context.Background()
	n := common.NodeID(42)
	wrong := (h.Resolver().ShardFor(n) + 1) % 4

	err := h.Cache(wrong).Emplace(ctx, n, common.ClientConfig{Endpoint: "peer:7575"})

	var misrouted *conncache.MisroutedError
	if !errors.As(err, &misrouted) {
		t.Fatalf("expected *MisroutedError, got %v", err)
	}
}

// TestHostStop verifies that stop reaches every cached connection and that
// the host rejects work afterwards
func TestHostStop(t *testing.T) {
	factory, snapshot := newStubFactory()
	h := NewHost(4, factory)

	ctx := context.Background()
	for n := common.NodeID(0); n < 20; n++ {
		if err := h.EmplaceNode(ctx, n, common.ClientConfig{Endpoint: "peer:7575"}); err != nil {
			t.Fatalf("emplace %s failed: %v", n, err)
		}
	}

	if err := h.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	for i, c := range snapshot() {
		if got := c.stopCount.Load(); got != 1 {
			t.Errorf("transport %d: stop called %d times, want 1", i, got)
		}
	}

	// the shards are drained; further work is rejected
	if err := h.EmplaceNode(ctx, 99, common.ClientConfig{Endpoint: "peer:7575"}); err == nil {
		t.Error("emplace after stop should fail")
	}

	// stop is idempotent
	if err := h.Stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
}

// TestConcurrentHostChurn stresses emplace/remove through the mailboxes
func TestConcurrentHostChurn(t *testing.T) {
	factory, _ := newStubFactory()
	h := NewHost(4, factory)
	defer h.Stop()

	ctx := context.Background()

	const workers = 8
	const opsPerWorker = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				n := common.NodeID(worker*opsPerWorker + i)
				if err := h.EmplaceNode(ctx, n, common.ClientConfig{Endpoint: "peer:7575"}); err != nil {
					t.Errorf("emplace %s failed: %v", n, err)
					return
				}
				if err := h.RemoveNode(ctx, n); err != nil {
					t.Errorf("remove %s failed: %v", n, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for shard := uint64(0); shard < 4; shard++ {
		if l := h.Cache(shard).Len(); l != 0 {
			t.Errorf("shard %d still holds %d entries", shard, l)
		}
	}
}
