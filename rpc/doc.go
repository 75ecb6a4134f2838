// Package rpc provides the internal RPC layer of a strom cluster node: the
// per-shard cache of outbound peer connections and the transports those
// connections run on.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures shared across the RPC layer, including
//     the NodeID identity type, configuration structures and logging.
//
//   - affinity: The deterministic node-to-shard placement function and
//     placement quality statistics.
//
//   - conncache: The per-shard connection cache, enforcing that every
//     peer's connection lives on exactly one shard and that structural
//     table mutations are serialized.
//
//   - host: Per-node composition of the shard caches, with mailbox-based
//     message passing for cross-shard connection management.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets), including the reconnecting
//     outbound transport consumed by the connection cache.
package rpc
