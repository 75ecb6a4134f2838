// Package common provides core data structures and utilities shared across
// the strom RPC layer. It defines fundamental types and configuration
// structures used by all other rpc subpackages.
//
// The package focuses on:
//   - The NodeID identity type for cluster peers
//   - Configuration structures for outbound connections and the node host
//   - Custom logging implementation for the named subsystem loggers
//
// Key Components:
//
//   - NodeID: Opaque, comparable identifier of a cluster peer. Supplied by
//     the membership layer, never generated inside the RPC layer.
//
//   - ClientConfig: Configuration of a single outbound peer connection
//     (endpoint, timeouts, reconnect backoff, socket tuning). Ownership of a
//     ClientConfig passes into the transport constructed from it.
//
//   - ServerConfig: Comprehensive configuration for one node host, including
//     shard count, listen endpoint, initial peer membership and socket
//     settings.
//
//   - Logger: Custom logging implementation providing consistent formatting
//     across the application via named loggers.
package common
