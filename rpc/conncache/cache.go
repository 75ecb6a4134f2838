package conncache

import (
	"context"
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/stromnet/strom/rpc/affinity"
	"github.com/stromnet/strom/rpc/common"
	"github.com/stromnet/strom/rpc/transport"
)

var Logger = logger.GetLogger("conncache")

var (
	emplaceTotal   = metrics.GetOrCreateCounter(`strom_conncache_emplace_total`)
	removeTotal    = metrics.GetOrCreateCounter(`strom_conncache_remove_total`)
	misroutedTotal = metrics.GetOrCreateCounter(`strom_conncache_misrouted_total`)
)

// Cache holds the outbound connections of one shard, keyed by peer node id.
// Exactly one shard in the process is authoritative for any given node
// (decided by the affinity resolver); mutating calls for a node on any other
// shard fail with a MisroutedError.
//
// Structural mutations are serialized through a one-permit semaphore, so
// concurrent Emplace/Remove calls on the same shard are linearizable with
// respect to each other. Lookups are lock-free and may run concurrently with
// mutations.
//
// One Cache is constructed per shard and injected into whatever runs on that
// shard; it is never shared across shards.
type Cache struct {
	shard    uint64
	resolver affinity.IResolver
	factory  transport.ClientFactory

	// sem serializes structural mutations of conns. Acquire suspends the
	// calling goroutine in FIFO order without blocking others.
	sem   *semaphore.Weighted
	conns *xsync.MapOf[common.NodeID, transport.IClientTransport]
}

// NewCache creates the connection cache of one shard. The factory is invoked
// under the mutation permit whenever Emplace installs a new connection.
func NewCache(shard uint64, resolver affinity.IResolver, factory transport.ClientFactory) *Cache {
	return &Cache{
		shard:    shard,
		resolver: resolver,
		factory:  factory,
		sem:      semaphore.NewWeighted(1),
		conns:    xsync.NewMapOf[common.NodeID, transport.IClientTransport](),
	}
}

// Emplace constructs a connection to the given node and installs it in the
// table. The dial proceeds asynchronously; Emplace does not wait for the
// connection to be established.
//
// If an entry for the node already exists it is replaced. The previous
// transport is only dropped from the table, not stopped: in-flight callers
// still holding it keep a working handle until they release it.
//
// Fails with a *MisroutedError if this shard is not authoritative for the
// node; the table is left untouched in that case. A cancelled ctx aborts the
// wait for the mutation permit, never a mutation already underway.
func (c *Cache) Emplace(ctx context.Context, n common.NodeID, config common.ClientConfig) error {
	if s := c.resolver.ShardFor(n); s != c.shard {
		misroutedTotal.Inc()
		return &MisroutedError{Op: "emplace", Node: n, Expected: s, Actual: c.shard}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	c.conns.Store(n, c.factory(config))
	emplaceTotal.Inc()

	Logger.Debugf("shard %d: emplaced connection to node %s (%s)", c.shard, n, config.Endpoint)
	return nil
}

// Remove erases the node's entry from the table. Removing an absent node is
// a no-op, not an error. The transport is not stopped: removal only drops
// the table's share of ownership, and the transport lives on until its last
// holder releases it. Callers that need a stopped transport must stop it
// explicitly before removal, or rely on Stop.
//
// Fails with a *MisroutedError if this shard is not authoritative for the
// node.
func (c *Cache) Remove(ctx context.Context, n common.NodeID) error {
	if s := c.resolver.ShardFor(n); s != c.shard {
		misroutedTotal.Inc()
		return &MisroutedError{Op: "remove", Node: n, Expected: s, Actual: c.shard}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	c.conns.Delete(n)
	removeTotal.Inc()

	Logger.Debugf("shard %d: removed connection to node %s", c.shard, n)
	return nil
}

// Stop stops every transport currently in the table, all concurrently, and
// returns once every stop has completed. A failing stop does not keep the
// others from being attempted; the aggregate error reports each failure with
// its node. Entries are not removed from the table, but their transports are
// stopped and must not be used for new calls.
func (c *Cache) Stop() error {
	type entry struct {
		node common.NodeID
		conn transport.IClientTransport
	}

	var entries []entry
	c.conns.Range(func(n common.NodeID, t transport.IClientTransport) bool {
		entries = append(entries, entry{node: n, conn: t})
		return true
	})

	if len(entries) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)

	for _, e := range entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			if err := e.conn.Stop(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("stop connection to node %s: %w", e.node, err))
				mu.Unlock()
			}
		}(e)
	}
	wg.Wait()

	Logger.Infof("shard %d: stopped %d connections", c.shard, len(entries))
	return errs
}

// Get returns the shared transport handle for the node, if present. Callers
// may hold the handle across a request even if the entry is concurrently
// replaced or removed; the handle stays valid until its last holder drops it.
func (c *Cache) Get(n common.NodeID) (transport.IClientTransport, bool) {
	return c.conns.Load(n)
}

// Contains reports whether the table currently has an entry for the node
func (c *Cache) Contains(n common.NodeID) bool {
	_, ok := c.conns.Load(n)
	return ok
}

// Len returns the number of entries currently in the table
func (c *Cache) Len() int {
	return c.conns.Size()
}

// Shard returns the shard index this cache belongs to
func (c *Cache) Shard() uint64 {
	return c.shard
}
