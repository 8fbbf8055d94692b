package wire

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_ReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sent := &Frame{Token: 42, Payload: []byte(`{"t":1,"r":[null]}`)}

	go func() {
		_ = WriteFrame(client, sent)
	}()

	got, err := ReadFrame(server)
	require.NoError(t, err)
	assert.Equal(t, sent.Token, got.Token)
	assert.Equal(t, sent.Payload, got.Payload)
}

func TestFrame_ReadEOF(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	client.Close()

	_, err := ReadFrame(server)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_EncodeDecode(t *testing.T) {
	f := &Frame{Token: -7, Payload: []byte(`{"t":4,"r":[]}`)}

	decoded, err := DecodeFrame(EncodeFrame(f))
	require.NoError(t, err)
	assert.Equal(t, f.Token, decoded.Token)
	assert.Equal(t, f.Payload, decoded.Payload)
}

func TestFrame_DecodeErrors(t *testing.T) {
	_, err := DecodeFrame([]byte{1, 2, 3})
	assert.Error(t, err, "short frame")

	good := EncodeFrame(&Frame{Token: 1, Payload: []byte("{}")})
	_, err = DecodeFrame(good[:len(good)-1])
	assert.Error(t, err, "length mismatch")
}
