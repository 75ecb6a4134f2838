package base

import (
	"bytes"
	"net"
	"testing"
)

// TestFrameRoundTrip verifies that a frame written on one end of a
// connection arrives intact on the other
func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("metadata update for partition 12")

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- writeFrame(client, 3, 77, payload)
	}()

	shardID, requestID, data, err := readFrame(server, nil)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if err := <-writeErr; err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	if shardID != 3 || requestID != 77 {
		t.Errorf("header mismatch: shard=%d request=%d", shardID, requestID)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload mismatch: got %q", data)
	}
}

// TestFrameEmptyPayload verifies the zero-length payload case
func TestFrameEmptyPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = writeFrame(client, 0, 1, nil)
	}()

	_, requestID, data, err := readFrame(server, make([]byte, 64))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if requestID != 1 {
		t.Errorf("request id mismatch: %d", requestID)
	}
	if len(data) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(data))
	}
}

// TestFrameLargePayload verifies that payloads beyond the read buffer size
// are handled by allocating a larger one
func TestFrameLargePayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	go func() {
		_ = writeFrame(client, 1, 2, payload)
	}()

	// buffer smaller than the payload forces the allocation path
	_, _, data, err := readFrame(server, make([]byte, 1024))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("large payload corrupted in transit")
	}
}
