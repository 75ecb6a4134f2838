package base

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stromnet/strom/rpc/common"
)

var Logger = logger.GetLogger("transport/rpc")

// ErrStopped is returned by Send once the transport has been stopped
var ErrStopped = errors.New("transport stopped")

var (
	connectsTotal      = metrics.GetOrCreateCounter(`strom_transport_connects_total`)
	requestsTotal      = metrics.GetOrCreateCounter(`strom_transport_requests_total`)
	requestErrorsTotal = metrics.GetOrCreateCounter(`strom_transport_request_errors_total`)
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the given endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// -----------------------------------------------------------
// Reconnecting transport
// -----------------------------------------------------------

// ReconnectTransport is one outbound connection to one cluster peer. A
// background goroutine establishes the connection and re-establishes it
// whenever it drops, with exponential backoff. Construction never waits for
// the dial; a Send issued while disconnected fails and may be retried by
// its caller.
//
// The transport is shareable between any number of concurrent senders.
// Responses are correlated to requests through per-request ids.
type ReconnectTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	connMu sync.Mutex // guards conn replacement and frame writes
	conn   net.Conn   // nil while disconnected

	requestChans  *xsync.MapOf[uint64, chan responseResult]
	nextRequestID uint64 // atomic counter for unique request IDs

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{} // closed when the background loop has exited
}

// NewReconnectTransport creates a transport for the peer described by config
// and starts its background connect loop. The returned handle is usable
// immediately; Sends fail until the first dial succeeds.
func NewReconnectTransport(connector IClientConnector, config common.ClientConfig) *ReconnectTransport {
	t := &ReconnectTransport{
		connector:    connector,
		config:       config,
		requestChans: xsync.NewMapOf[uint64, chan responseResult](),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}

	go t.run()

	return t
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientTransport)
// --------------------------------------------------------------------------

func (t *ReconnectTransport) Send(shardID uint64, req []byte) ([]byte, error) {
	requestsTotal.Inc()

	// We always try at least once, and up to RetryCount times
	attempts := t.config.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < attempts; i++ {
		select {
		case <-t.stopCh:
			return nil, ErrStopped
		default:
		}

		data, err := t.sendOnce(shardID, req)
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("request attempt %d/%d to %s failed: %v", i+1, attempts, t.config.Endpoint, err)

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	requestErrorsTotal.Inc()
	return nil, fmt.Errorf("failed to send request to %s after %d attempts: %v", t.config.Endpoint, attempts, lastErr)
}

func (t *ReconnectTransport) Stop() error {
	t.stopOnce.Do(func() {
		close(t.stopCh)

		// Closing the socket unblocks the reader goroutine
		t.connMu.Lock()
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		t.connMu.Unlock()
	})

	// Wait until the background loop has released everything
	<-t.done
	t.failPending(ErrStopped)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sendOnce performs a single request round trip over the current connection
func (t *ReconnectTransport) sendOnce(shardID uint64, req []byte) ([]byte, error) {
	// Generate a unique request ID
	requestID := atomic.AddUint64(&t.nextRequestID, 1)

	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("not connected to %s", t.config.Endpoint)
	}

	// Create a channel for the response and register the request
	respCh := make(chan responseResult, 1)
	t.requestChans.Store(requestID, respCh)

	// Ensure we clean up when done
	defer t.requestChans.Delete(requestID)

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// Lock the connection only for writing
	t.connMu.Lock()
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(conn, shardID, requestID, req)
	t.connMu.Unlock()

	if err != nil {
		return nil, err
	}

	// Wait for response, stop or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timeoutCh = time.After(timeout)
	} else {
		timeoutCh = make(chan time.Time) // Never triggers
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-t.stopCh:
		return nil, ErrStopped
	case <-timeoutCh:
		return nil, fmt.Errorf("request %d to %s timed out", requestID, t.config.Endpoint)
	}
}

// run owns the connection lifecycle: dial, read until the connection breaks,
// back off, dial again. Exits when the transport is stopped.
func (t *ReconnectTransport) run() {
	defer close(t.done)

	initial := t.config.Transport.ReconnectBackoffMs
	if initial <= 0 {
		initial = 50
	}
	max := t.config.Transport.MaxReconnectBackoffMs
	if max <= 0 {
		max = 5000
	}
	wait := initial

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		conn, err := t.dial()
		if err != nil {
			Logger.Debugf("failed to connect to %s: %v", t.config.Endpoint, err)

			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(wait) * (0.9 + 0.2*rand.Float64())
			select {
			case <-t.stopCh:
				return
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			}

			if wait < max {
				wait *= 2
				if wait > max {
					wait = max
				}
			}
			continue
		}
		wait = initial

		t.connMu.Lock()
		t.conn = conn
		t.connMu.Unlock()

		connectsTotal.Inc()
		Logger.Infof("connected to %s via %s", t.config.Endpoint, t.connector.GetName())

		// Blocks until the connection breaks or the transport stops
		t.readResponses(conn)

		t.connMu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.connMu.Unlock()
		conn.Close()

		// Requests still waiting on this connection will never be answered
		t.failPending(fmt.Errorf("connection to %s lost", t.config.Endpoint))
	}
}

// dial establishes and upgrades one connection to the configured endpoint
func (t *ReconnectTransport) dial() (net.Conn, error) {
	conn, err := t.connector.Connect(t.config.Endpoint)
	if err != nil {
		return nil, err
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %v", t.config.Endpoint, err)
	}

	return conn, nil
}

// readResponses reads response frames in a loop and distributes them to the
// waiting requests. Returns when the connection errors out.
func (t *ReconnectTransport) readResponses(conn net.Conn) {
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		_, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			Logger.Debugf("read on connection to %s ended: %v", t.config.Endpoint, err)
			return
		}

		// Find the corresponding request channel
		if respCh, ok := t.requestChans.LoadAndDelete(requestID); ok {
			respCh <- responseResult{data: data}
		} else {
			// The request may have timed out and cleaned up already
			Logger.Warningf("received response for unknown request ID %d from %s", requestID, t.config.Endpoint)
		}
	}
}

// failPending answers every in-flight request with err
func (t *ReconnectTransport) failPending(err error) {
	t.requestChans.Range(func(id uint64, _ chan responseResult) bool {
		if ch, ok := t.requestChans.LoadAndDelete(id); ok {
			select {
			case ch <- responseResult{err: err}:
			default:
			}
		}
		return true
	})
}
