package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// frameHeaderSize is the fixed size of the frame header:
// - 8 bytes: shardID (uint64, big endian) - the target shard on the peer
// - 8 bytes: requestID (uint64, big endian) - correlates response to request
// - 4 bytes: payload length (uint32, big endian)
const frameHeaderSize = 20

// maxFramePayload caps a single frame. Frames above this are a protocol
// violation, not a legitimate request.
const maxFramePayload = 64 * 1024 * 1024

// writeFrame writes one frame to the connection. Header and payload are
// combined into a single writev syscall via net.Buffers.
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame from the connection using the provided buffer.
// If the buffer is too small for the payload, a new temporary buffer is
// allocated.
func readFrame(conn net.Conn, buf []byte) (uint64, uint64, []byte, error) {
	if buf == nil || len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	// Read header
	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	// Parse header
	shardID := binary.BigEndian.Uint64(buf[:8])
	requestID := binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength > maxFramePayload {
		return 0, 0, nil, fmt.Errorf("frame payload of %d bytes exceeds limit", contentLength)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read payload
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return shardID, requestID, buf[:contentLength], nil
}
