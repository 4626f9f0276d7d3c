package link

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeDelivers(t *testing.T) {
	a, b := Pipe(4)
	ctx := context.Background()

	msg := []byte{1, 2, 3}
	require.NoError(t, a.Send(ctx, msg))
	msg[0] = 9 // sender buffer reuse must not leak through
	got, err := b.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, b.Send(ctx, []byte{4}))
	got, err = a.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got)
}

func TestPipeCloseAndCancel(t *testing.T) {
	a, b := Pipe(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Recv(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, a.Close())
	_, err = b.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Send(context.Background(), []byte{1}), ErrClosed)
	assert.NoError(t, b.Close())
}

func TestHubOverWebsocket(t *testing.T) {
	hub := NewHub()
	joined := make(chan struct{}, 1)
	hub.OnJoin = func(*Conn) { joined <- struct{}{} }
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { hub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	select {
	case <-joined:
	case <-ctx.Done():
		t.Fatal("follower never joined")
	}
	assert.Equal(t, 1, hub.Peers())

	require.NoError(t, hub.Send(ctx, []byte{0x02, 0xAA}))
	got, err := c.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0xAA}, got)

	require.NoError(t, c.Send(ctx, []byte{0x01}))
	got, err = hub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, got)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return hub.Peers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/link")
	assert.Error(t, err)
}
