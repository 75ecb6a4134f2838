package base

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stromnet/strom/rpc/common"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// testConnector dials plain TCP without any upgrades
type testConnector struct{}

func (testConnector) GetName() string { return "tcp-test" }

func (testConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

func (testConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// echoServer answers every frame with its own payload
type echoServer struct {
	lis   net.Listener
	mu    sync.Mutex
	conns []net.Conn
}

func startEchoServer(t *testing.T, addr string) *echoServer {
	t.Helper()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &echoServer{lis: lis}
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns = append(s.conns, conn)
			s.mu.Unlock()

			go func(conn net.Conn) {
				for {
					shardID, requestID, data, err := readFrame(conn, nil)
					if err != nil {
						return
					}
					if err := writeFrame(conn, shardID, requestID, data); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return s
}

func (s *echoServer) addr() string {
	return s.lis.Addr().String()
}

func (s *echoServer) close() {
	s.lis.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func testConfig(endpoint string) common.ClientConfig {
	return common.ClientConfig{
		Endpoint:      endpoint,
		TimeoutSecond: 2,
		RetryCount:    1,
		Transport: common.ClientTransportConfig{
			ReconnectBackoffMs:    10,
			MaxReconnectBackoffMs: 100,
		},
	}
}

// waitForSend polls Send until the background dial has succeeded
func waitForSend(t *testing.T, tr *ReconnectTransport, payload []byte) []byte {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := tr.Send(0, payload)
		if err == nil {
			return resp
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("transport did not become usable in time")
	return nil
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestSendReceive verifies request/response correlation over a live
// connection, including concurrent senders
func TestSendReceive(t *testing.T) {
	server := startEchoServer(t, "127.0.0.1:0")
	defer server.close()

	tr := NewReconnectTransport(testConnector{}, testConfig(server.addr()))
	defer tr.Stop()

	if resp := waitForSend(t, tr, []byte("ping")); !bytes.Equal(resp, []byte("ping")) {
		t.Fatalf("echo mismatch: got %q", resp)
	}

	// concurrent senders must each get their own response back
	const senders = 16
	var wg sync.WaitGroup
	wg.Add(senders)
	for i := 0; i < senders; i++ {
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("request-%d", i))
			resp, err := tr.Send(0, payload)
			if err != nil {
				t.Errorf("send %d failed: %v", i, err)
				return
			}
			if !bytes.Equal(resp, payload) {
				t.Errorf("send %d: response %q does not match request", i, resp)
			}
		}(i)
	}
	wg.Wait()
}

// TestConstructNonBlocking verifies that construction returns immediately
// even when the peer is unreachable
func TestConstructNonBlocking(t *testing.T) {
	start := time.Now()
	tr := NewReconnectTransport(testConnector{}, testConfig("127.0.0.1:1"))
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("construction blocked for %s", elapsed)
	}

	// the transport exists but cannot send
	if _, err := tr.Send(0, []byte("ping")); err == nil {
		t.Error("send to an unreachable peer should fail")
	}

	if err := tr.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

// TestStopIdempotent verifies that stop can be called repeatedly and that
// the transport is unusable afterwards
func TestStopIdempotent(t *testing.T) {
	server := startEchoServer(t, "127.0.0.1:0")
	defer server.close()

	tr := NewReconnectTransport(testConnector{}, testConfig(server.addr()))
	waitForSend(t, tr, []byte("ping"))

	if err := tr.Stop(); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	if err := tr.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}

	if _, err := tr.Send(0, []byte("ping")); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after stop, got %v", err)
	}
}

// TestReconnect verifies that the transport re-establishes a dropped
// connection without being told to
func TestReconnect(t *testing.T) {
	server := startEchoServer(t, "127.0.0.1:0")
	addr := server.addr()

	tr := NewReconnectTransport(testConnector{}, testConfig(addr))
	defer tr.Stop()

	waitForSend(t, tr, []byte("before"))

	// kill the server; in-flight and new requests fail
	server.close()

	// bring a new server up on the same address and wait for the
	// background loop to reconnect
	deadline := time.Now().Add(5 * time.Second)
	var revived *echoServer
	for time.Now().Before(deadline) {
		lis, err := net.Listen("tcp", addr)
		if err == nil {
			revived = &echoServer{lis: lis}
			go func() {
				for {
					conn, err := lis.Accept()
					if err != nil {
						return
					}
					go func(conn net.Conn) {
						for {
							shardID, requestID, data, err := readFrame(conn, nil)
							if err != nil {
								return
							}
							if err := writeFrame(conn, shardID, requestID, data); err != nil {
								return
							}
						}
					}(conn)
				}
			}()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if revived == nil {
		t.Skip("could not rebind test address")
	}
	defer revived.lis.Close()

	if resp := waitForSend(t, tr, []byte("after")); !bytes.Equal(resp, []byte("after")) {
		t.Fatalf("echo after reconnect mismatch: got %q", resp)
	}
}
