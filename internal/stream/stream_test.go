package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhenakh/lspgo-core/internal/jsonpatch"
)

func TestOf_WrapsSuccessAsOneItemStream(t *testing.T) {
	s := Of(map[string]any{"x": 1}, nil)

	items := drain(s)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Err)
	assert.Equal(t, jsonpatch.Root(map[string]any{"x": 1}), items[0].Patch)
}

func TestOf_WrapsErrorAsTerminalItem(t *testing.T) {
	s := Of(nil, errors.New("boom"))

	items := drain(s)
	require.Len(t, items, 1)
	assert.EqualError(t, items[0].Err, "boom")
}

func TestProducer_EmitThenClose(t *testing.T) {
	s, p := New(0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, p.Emit(context.Background(), jsonpatch.Operation{Op: "add", Path: "/a", Value: 1}))
		require.NoError(t, p.Emit(context.Background(), jsonpatch.Operation{Op: "add", Path: "/b", Value: 2}))
		p.Close()
	}()

	items := drain(s)
	<-done
	require.Len(t, items, 2)
	assert.Equal(t, "/a", items[0].Patch.Path)
	assert.Equal(t, "/b", items[1].Patch.Path)
}

func TestProducer_EmitRespectsCancellation(t *testing.T) {
	_, p := New(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Emit(ctx, jsonpatch.Operation{Op: "add", Path: "/a", Value: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProducer_CloseIsIdempotent(t *testing.T) {
	s, p := New(0)
	p.Close()
	assert.NotPanics(t, func() { p.Close() })

	select {
	case _, open := <-s.C():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}
}

func drain(s *Stream) []Item {
	var items []Item
	for item := range s.C() {
		items = append(items, item)
	}
	return items
}
