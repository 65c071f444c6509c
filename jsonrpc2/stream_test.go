package jsonrpc2

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopback struct {
	bytes.Buffer
}

func (l *loopback) Close() error { return nil }

func TestStream_WriteThenReadRoundTrips(t *testing.T) {
	buf := &loopback{}
	s := NewStream(buf)

	req := &RequestMessage{JSONRPC: Version, ID: NewID([]byte(`1`)), Method: "initialize"}
	require.NoError(t, s.WriteMessage(req))

	body, err := s.ReadMessage()
	require.NoError(t, err)

	var decoded RequestMessage
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "initialize", decoded.Method)
	assert.Equal(t, "1", decoded.ID.Key())
}

func TestStream_MalformedContentLengthIsNonFatal(t *testing.T) {
	buf := &loopback{}
	fmt.Fprintf(buf, "Content-Length: not-a-number\r\n\r\n")

	s := NewStream(buf)
	_, err := s.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsFrameError(err))
}

func TestStream_MissingContentLengthIsNonFatal(t *testing.T) {
	buf := &loopback{}
	fmt.Fprintf(buf, "Content-Type: application/json\r\n\r\n")

	s := NewStream(buf)
	_, err := s.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsFrameError(err))
}

func TestStream_InvalidJSONBodyIsNonFatal(t *testing.T) {
	buf := &loopback{}
	body := []byte("{not json")
	fmt.Fprintf(buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)

	s := NewStream(buf)
	_, err := s.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsFrameError(err))
}

func TestStream_EOFOnEmptyStreamIsFatal(t *testing.T) {
	buf := &loopback{}
	s := NewStream(buf)

	_, err := s.ReadMessage()
	require.Error(t, err)
	assert.False(t, IsFrameError(err))
	assert.ErrorIs(t, err, io.EOF)
}
