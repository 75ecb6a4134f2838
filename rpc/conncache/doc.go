// Package conncache implements the per-shard cache of outbound connections
// to other cluster nodes. It is the foundation of every higher-level RPC
// call: schedulers and metadata propagation all eventually route through a
// connection obtained here.
//
// Each peer's connection is homed to exactly one shard, determined by the
// affinity resolver. A shard's cache only ever holds connections for nodes
// it is authoritative for; mutating calls for any other node fail with a
// MisroutedError instead of silently redirecting.
//
// Concurrency discipline:
//
//   - Structural mutations (Emplace, Remove) are serialized through a
//     one-permit semaphore. Waiters suspend in FIFO order without blocking
//     the rest of the shard's work.
//
//   - Lookups are lock-free. A transport handle obtained from the cache
//     remains valid for its holder even if the entry is replaced or removed
//     concurrently; the transport is torn down only once its last holder
//     releases it.
//
//   - Stop fans out over all entries concurrently and completes only after
//     every transport's stop has finished, reporting per-node failures in
//     an aggregate error.
package conncache
