// Package host composes the per-shard connection caches into one node-wide
// unit. Each shard gets its own cache, a single runner goroutine and a
// lock-free mailbox; cross-shard connection management is routed through
// the owning shard's mailbox instead of shared memory, preserving the
// single-writer discipline of each shard's table.
//
// Key Components:
//
//   - Host: per-node composition root. EmplaceNode/RemoveNode resolve the
//     owning shard and execute the mutation there; Stop drains all shards
//     and stops every cached connection concurrently.
//
//   - Mailbox: unbounded lock-free MPSC queue connecting any number of
//     producers to one shard runner.
package host
