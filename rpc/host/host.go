package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"

	"github.com/stromnet/strom/rpc/affinity"
	"github.com/stromnet/strom/rpc/common"
	"github.com/stromnet/strom/rpc/conncache"
	"github.com/stromnet/strom/rpc/transport"
)

var Logger = logger.GetLogger("host")

// --------------------------------------------------------------------------
// Shard runner
// --------------------------------------------------------------------------

// task is one unit of work executed on a shard's runner goroutine
type task struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error // buffered; the runner never blocks on an abandoned caller
}

// shardRunner is the execution unit of one shard: a single goroutine that
// consumes the shard's mailbox. All work that touches the shard's cache from
// the outside arrives here.
type shardRunner struct {
	shard uint64
	cache *conncache.Cache
	mbox  *Mailbox[task]
	done  chan struct{} // closed when the runner has drained its mailbox
}

func (r *shardRunner) loop() {
	defer close(r.done)

	for t := range r.mbox.Recv() {
		t.done <- t.run(t.ctx)
	}
}

// --------------------------------------------------------------------------
// Host
// --------------------------------------------------------------------------

// Host owns one connection cache per shard together with the shard's runner
// and mailbox. Connection management for a node must happen on the node's
// owning shard; the Host routes such requests there through the shard's
// mailbox rather than touching another shard's state directly.
type Host struct {
	resolver affinity.IResolver
	runners  []*shardRunner

	stopOnce sync.Once
	stopErr  error
}

// NewHost creates a host with the given number of shards. The factory is
// passed through to every shard's connection cache.
func NewHost(shardCount uint64, factory transport.ClientFactory) *Host {
	resolver := affinity.New(shardCount)

	h := &Host{resolver: resolver}
	for i := uint64(0); i < resolver.Shards(); i++ {
		r := &shardRunner{
			shard: i,
			cache: conncache.NewCache(i, resolver, factory),
			mbox:  NewMailbox[task](),
			done:  make(chan struct{}),
		}
		h.runners = append(h.runners, r)
		go r.loop()
	}

	Logger.Infof("created host with %d shards", resolver.Shards())
	return h
}

// Resolver returns the affinity resolver shared by all shards of this host
func (h *Host) Resolver() affinity.IResolver {
	return h.resolver
}

// Cache returns the connection cache of the given shard, for callers that
// already run on that shard. Mutating it for a node the shard does not own
// fails with a MisroutedError.
func (h *Host) Cache(shard uint64) *conncache.Cache {
	return h.runners[shard].cache
}

// EmplaceNode installs a connection to the node in the cache of its owning
// shard. The request is posted to that shard's mailbox and executed there.
func (h *Host) EmplaceNode(ctx context.Context, n common.NodeID, config common.ClientConfig) error {
	shard := h.resolver.ShardFor(n)
	return h.submit(ctx, shard, func(ctx context.Context) error {
		return h.runners[shard].cache.Emplace(ctx, n, config)
	})
}

// RemoveNode removes the node's connection from the cache of its owning
// shard. Removing an absent node succeeds.
func (h *Host) RemoveNode(ctx context.Context, n common.NodeID) error {
	shard := h.resolver.ShardFor(n)
	return h.submit(ctx, shard, func(ctx context.Context) error {
		return h.runners[shard].cache.Remove(ctx, n)
	})
}

// submit posts work to the shard's mailbox and waits for its result. A
// cancelled ctx abandons the result; the task itself still runs to
// completion on the shard, so the cache is never left half-mutated.
func (h *Host) submit(ctx context.Context, shard uint64, run func(ctx context.Context) error) error {
	t := &task{ctx: ctx, run: run, done: make(chan error, 1)}

	if !h.runners[shard].mbox.Post(t) {
		return fmt.Errorf("shard %d is shut down", shard)
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down all shards: every mailbox is closed and drained, then all
// caches stop their connections concurrently. Per-shard failures are
// aggregated. Stop is idempotent.
func (h *Host) Stop() error {
	h.stopOnce.Do(func() {
		// Drain the runners first so no mutation races the shutdown
		for _, r := range h.runners {
			r.mbox.Close()
			<-r.done
		}

		var (
			mu   sync.Mutex
			errs error
			wg   sync.WaitGroup
		)

		for _, r := range h.runners {
			wg.Add(1)
			go func(r *shardRunner) {
				defer wg.Done()
				if err := r.cache.Stop(); err != nil {
					mu.Lock()
					errs = multierr.Append(errs, err)
					mu.Unlock()
				}
			}(r)
		}
		wg.Wait()

		h.stopErr = errs
		Logger.Infof("host stopped")
	})

	return h.stopErr
}
