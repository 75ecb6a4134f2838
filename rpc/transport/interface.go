package transport

import (
	"github.com/stromnet/strom/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the target shard id and a request as parameters and returns a response
type ServerHandleFunc func(shardID uint64, req []byte) (resp []byte)

// IServerTransport is the interface for the listening side of the RPC layer
type IServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)

	// Listen starts the transport layer and serves incoming requests until
	// Close is called
	Listen(config common.ServerConfig) error

	// Close shuts the listener down and unblocks Listen
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport is the lifecycle contract of one outbound connection to
// one cluster peer. Implementations reconnect transparently when the
// underlying connection drops; the connection cache that owns the handle
// only depends on this contract, never on the reconnect mechanics.
//
// A transport handle is shareable: any number of in-flight callers may hold
// it concurrently. The handle is released for good when its last holder
// drops it.
type IClientTransport interface {
	// Send sends a request addressed to the given shard on the remote peer
	// and returns the response. Safe for concurrent use.
	Send(shardID uint64, req []byte) (resp []byte, err error)

	// Stop closes the connection and releases all held resources (socket,
	// pending request state). It is idempotent and returns once the
	// transport's background work has finished. After Stop, Send fails.
	Stop() error
}

// ClientFactory constructs a transport for one peer from its configuration.
// Construction must not block on connection establishment; the dial proceeds
// asynchronously in the background.
type ClientFactory func(config common.ClientConfig) IClientTransport
