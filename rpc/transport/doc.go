// Package transport defines the interfaces and abstractions for RPC
// communication in the strom cluster. It provides a common contract that all
// transport implementations must fulfill, enabling protocol-agnostic
// communication.
//
// The package focuses on:
//   - Defining the lifecycle contract of outbound reconnecting connections
//     as consumed by the connection cache
//   - Defining the server transport that accepts shard-addressed requests
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IClientTransport: Interface for one outbound connection to one peer.
//     Construction is non-blocking, Send is safe for concurrent use and Stop
//     is idempotent.
//
//   - IServerTransport: Interface for server-side transport implementations
//     that receive requests and route them to the registered handler.
//
//   - ClientFactory: Factory type the connection cache uses to construct
//     transports without binding to a concrete protocol.
package transport
