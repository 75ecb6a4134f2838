package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Core identity type
// --------------------------------------------------------------------------

// NodeID is the opaque identifier of a cluster peer. It is assigned by the
// cluster membership layer and never generated by the RPC layer itself.
type NodeID uint64

// String returns the canonical textual form of a node id
func (n NodeID) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// --------------------------------------------------------------------------
// Socket level configuration (shared between client and server transports)
// --------------------------------------------------------------------------

// SocketConf holds buffer settings applied to any stream socket
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// Client (outbound connection) configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the transport level parameters of one outbound
// connection
type ClientTransportConfig struct {
	// ReconnectBackoffMs is the initial backoff between reconnect attempts.
	// The backoff grows exponentially up to MaxReconnectBackoffMs.
	ReconnectBackoffMs    int
	MaxReconnectBackoffMs int

	SocketConf
	TCPConf
}

// ClientConfig describes how to reach a single cluster peer. It is consumed
// once when the connection to that peer is constructed; the connection cache
// does not retain it in mutable form.
type ClientConfig struct {
	// Endpoint is the peer address (host:port for tcp, a path for unix)
	Endpoint string

	// TimeoutSecond bounds a single request round trip. Zero means no timeout.
	TimeoutSecond int64

	// RetryCount is how many times a single Send is attempted before giving up
	RetryCount int

	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Peer Connection")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	addSection("Transport")
	addField("Reconnect Backoff", fmt.Sprintf("%d ms", c.Transport.ReconnectBackoffMs))
	addField("Max Reconnect Backoff", fmt.Sprintf("%d ms", c.Transport.MaxReconnectBackoffMs))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("TCP NoDelay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))

	return sb.String()
}

// --------------------------------------------------------------------------
// Server (node host) configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the transport level parameters of the
// listening side of the RPC layer
type ServerTransportConfig struct {
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters for one strom node host
type ServerConfig struct {
	// ShardCount is the number of independent execution units on this node.
	// Every peer connection is homed to exactly one of them.
	ShardCount uint64

	// Endpoint is the address on which this node accepts inbound RPC
	Endpoint string

	// Peers is the initial cluster membership, node id -> address. Each entry
	// is emplaced into the connection cache of its owning shard at startup.
	Peers map[NodeID]string

	// TimeoutSecond bounds a single request round trip on the server side
	TimeoutSecond int64

	// MaxWorkersPerConn limits concurrent request handlers per inbound connection
	MaxWorkersPerConn int

	// Logging configuration
	LogLevel string

	Transport ServerTransportConfig
}

// ClientConfigFor derives the outbound connection configuration for one peer
// endpoint from the server configuration
func (c *ServerConfig) ClientConfigFor(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:      endpoint,
		TimeoutSecond: c.TimeoutSecond,
		RetryCount:    1,
		Transport: ClientTransportConfig{
			ReconnectBackoffMs:    50,
			MaxReconnectBackoffMs: 5000,
			SocketConf:            c.Transport.SocketConf,
			TCPConf:               c.Transport.TCPConf,
		},
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.MaxWorkersPerConn))

	addSection("Sharding")
	addField("Shard Count", strconv.FormatUint(c.ShardCount, 10))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if len(c.Peers) > 0 {
		addSection("Peers")

		// Sort keys for consistent output
		var keys []NodeID
		for k := range c.Peers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			addField(k.String(), c.Peers[k])
		}
	}

	return sb.String()
}
