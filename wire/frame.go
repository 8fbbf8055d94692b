package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/c360/querystream/errors"
)

// Frame is one token-addressed message: an 8-byte little-endian token
// followed by a 4-byte little-endian payload length and the JSON payload.
type Frame struct {
	Token   int64
	Payload []byte
}

// headerSize is the fixed wire header: token (8) + payload length (4)
const headerSize = 12

// maxPayloadSize bounds inbound payloads so a corrupt length prefix cannot
// trigger an unbounded allocation.
const maxPayloadSize = 64 << 20

// WriteFrame writes one frame to w
func WriteFrame(w io.Writer, f *Frame) error {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(f.Token))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(f.Payload)))

	if _, err := w.Write(header); err != nil {
		return errors.WrapTransient(err, "Frame", "WriteFrame", "write header")
	}
	if _, err := w.Write(f.Payload); err != nil {
		return errors.WrapTransient(err, "Frame", "WriteFrame", "write payload")
	}
	return nil
}

// ReadFrame reads one frame from r
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.WrapTransient(err, "Frame", "ReadFrame", "read header")
	}

	token := int64(binary.LittleEndian.Uint64(header[0:8]))
	length := binary.LittleEndian.Uint32(header[8:12])
	if length > maxPayloadSize {
		return nil, errors.WrapFatal(
			fmt.Errorf("payload length %d exceeds limit", length),
			"Frame", "ReadFrame", "validate payload length")
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.WrapTransient(err, "Frame", "ReadFrame", "read payload")
	}

	return &Frame{Token: token, Payload: payload}, nil
}

// EncodeFrame serializes a frame into a standalone byte slice, for
// message-oriented transports that carry one frame per message.
func EncodeFrame(f *Frame) []byte {
	buf := make([]byte, headerSize+len(f.Payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(f.Token))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(f.Payload)))
	copy(buf[headerSize:], f.Payload)
	return buf
}

// DecodeFrame parses a standalone frame produced by EncodeFrame
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < headerSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("frame too short: %d bytes", len(data)),
			"Frame", "DecodeFrame", "validate frame length")
	}
	token := int64(binary.LittleEndian.Uint64(data[0:8]))
	length := binary.LittleEndian.Uint32(data[8:12])
	if int(length) != len(data)-headerSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("frame length mismatch: header %d, actual %d", length, len(data)-headerSize),
			"Frame", "DecodeFrame", "validate payload length")
	}
	return &Frame{Token: token, Payload: data[headerSize:]}, nil
}
