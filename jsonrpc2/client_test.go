package jsonrpc2

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoPeer answers every request it reads with the request's method name
// as the result.
func echoPeer(t *testing.T, side net.Conn) {
	t.Helper()
	conn := NewConn(NewStream(side))
	emitter := NewEmitter(conn)
	emitter.OnMessage(func(msg interface{}) {
		if req, ok := msg.(*RequestMessage); ok {
			raw, _ := json.Marshal(req.Method)
			_ = conn.Write(context.Background(), &ResponseMessage{JSONRPC: Version, ID: req.ID, Result: raw})
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go emitter.Run(ctx)
}

func TestClient_CallCorrelatesResponse(t *testing.T) {
	peerSide, clientSide := net.Pipe()
	echoPeer(t, peerSide)

	client := NewClient(NewConn(NewStream(clientSide)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	result, err := client.Call(ctx, "textDocument/hover", map[string]any{})
	require.NoError(t, err)
	assert.JSONEq(t, `"textDocument/hover"`, string(result))
}

func TestClient_ReverseRequestIsServedByRegisteredHandler(t *testing.T) {
	peerSide, clientSide := net.Pipe()

	client := NewClient(NewConn(NewStream(clientSide)))
	client.OnRequest("workspace/xfiles", func(ctx context.Context, params json.RawMessage) (any, error) {
		return []string{"file:///a.go"}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	peer := NewConn(NewStream(peerSide))
	require.NoError(t, peer.Write(ctx, &RequestMessage{
		JSONRPC: Version,
		ID:      NewID(json.RawMessage(`1`)),
		Method:  "workspace/xfiles",
	}))

	msg, err := peer.Read(ctx)
	require.NoError(t, err)
	resp, ok := msg.(*ResponseMessage)
	require.True(t, ok)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `["file:///a.go"]`, string(resp.Result))
}

func TestClient_ReverseRequestForUnknownMethodAnswersMethodNotFound(t *testing.T) {
	peerSide, clientSide := net.Pipe()

	client := NewClient(NewConn(NewStream(clientSide)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	peer := NewConn(NewStream(peerSide))
	require.NoError(t, peer.Write(ctx, &RequestMessage{
		JSONRPC: Version,
		ID:      NewID(json.RawMessage(`2`)),
		Method:  "workspace/unknown",
	}))

	msg, err := peer.Read(ctx)
	require.NoError(t, err)
	resp, ok := msg.(*ResponseMessage)
	require.True(t, ok)
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestClient_PendingCallFailsWhenConnectionCloses(t *testing.T) {
	peerSide, clientSide := net.Pipe()

	// The peer swallows one request and closes without answering.
	go func() {
		s := NewStream(peerSide)
		_, _ = s.ReadMessage()
		peerSide.Close()
	}()

	client := NewClient(NewConn(NewStream(clientSide)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go client.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := client.Call(context.Background(), "textDocument/definition", map[string]any{})
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Call did not fail after the connection closed")
	}
}
