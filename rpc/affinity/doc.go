// Package affinity implements the shard affinity resolver: the pure,
// deterministic mapping of a cluster peer to the single shard that owns its
// outbound connection.
//
// Every shard of every node in the cluster must agree on this mapping, so
// the resolver is a side-effect free function of the node id alone. The
// connection cache queries the resolver to validate that a mutating call
// was issued on the correct shard; it never computes placement itself.
//
// The package also provides placement statistics used by tooling to verify
// that a resolver spreads connections evenly over the shards.
package affinity
