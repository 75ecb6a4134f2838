// Package base provides the foundation for strom's transport layers,
// implementing the reconnecting outbound connection and the frame-based
// server independent of the specific network protocol (TCP, Unix sockets).
// It serves as a base layer that is extended with protocol-specific
// connectors.
//
// The package focuses on:
//   - A reconnecting client transport for exactly one peer: background dial
//     loop with exponential backoff, transparent re-establishment after
//     connection loss, idempotent stop
//   - Frame-based message protocol with shardID and requestID tracking
//   - Asynchronous request/response correlation via unique request IDs
//   - A protocol-agnostic server that accepts connections and routes frames
//     to the registered handler
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific
//     operations that allow extending the base transport with different
//     network protocols.
//
//   - ReconnectTransport: The outbound connection handle the connection
//     cache owns. Construction never blocks on the dial; Send fails while
//     disconnected and the background loop keeps retrying with backoff.
//
//   - serverTransport: Core server implementation that accepts connections
//     and routes requests to the handler based on shardID. Buffers are
//     pooled with a sync.Pool to reduce GC pressure.
//
// Thread Safety:
//
//	All public methods are thread-safe. The client transport correlates
//	concurrent requests through atomic request IDs, while the server creates
//	a dedicated goroutine for each connection.
package base
