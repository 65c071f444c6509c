package jsonrpc2

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_ReadDecodesRequestNotificationAndResponse(t *testing.T) {
	buf := &loopback{}
	conn := NewConn(NewStream(buf))

	writeFrame(t, buf, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	writeFrame(t, buf, `{"jsonrpc":"2.0","method":"textDocument/didOpen","params":{}}`)
	writeFrame(t, buf, `{"jsonrpc":"2.0","id":1,"result":{}}`)

	msg, err := conn.Read(context.Background())
	require.NoError(t, err)
	req, ok := msg.(*RequestMessage)
	require.True(t, ok)
	assert.Equal(t, "initialize", req.Method)

	msg, err = conn.Read(context.Background())
	require.NoError(t, err)
	ntf, ok := msg.(*NotificationMessage)
	require.True(t, ok)
	assert.Equal(t, "textDocument/didOpen", ntf.Method)

	msg, err = conn.Read(context.Background())
	require.NoError(t, err)
	_, ok = msg.(*ResponseMessage)
	require.True(t, ok)
}

func TestConn_MalformedFrameDoesNotCloseConnection(t *testing.T) {
	buf := &loopback{}
	conn := NewConn(NewStream(buf))

	fmt.Fprintf(buf, "Content-Length: -1\r\n\r\n")
	writeFrame(t, buf, `{"jsonrpc":"2.0","id":2,"method":"shutdown"}`)

	_, err := conn.Read(context.Background())
	require.Error(t, err)
	assert.True(t, IsFrameError(err))

	msg, err := conn.Read(context.Background())
	require.NoError(t, err)
	req, ok := msg.(*RequestMessage)
	require.True(t, ok)
	assert.Equal(t, "shutdown", req.Method)
}

func TestConn_WriteAfterCloseFails(t *testing.T) {
	buf := &loopback{}
	conn := NewConn(NewStream(buf))
	require.NoError(t, conn.Close())

	err := conn.Write(context.Background(), &NotificationMessage{JSONRPC: Version, Method: "exit"})
	assert.Error(t, err)
}

func writeFrame(t *testing.T, w io.Writer, body string) {
	t.Helper()
	fmt.Fprintf(w, "Content-Length: %d\r\n\r\n%s", len(body), body)
}
