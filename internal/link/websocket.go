package link

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 200 * time.Millisecond

// Conn carries binary messages over a websocket.
type Conn struct {
	ws   *websocket.Conn
	wmu  sync.Mutex
	in   chan []byte
	done chan struct{}
	once sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, in: make(chan []byte, 32), done: make(chan struct{})}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer c.shutdown()
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("remote", c.ws.RemoteAddr().String()).Msg("link read")
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		select {
		case c.in <- data:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return fmt.Errorf("link write: %w", err)
	}
	return nil
}

func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case m := <-c.in:
		return m, nil
	default:
	}
	select {
	case m := <-c.in:
		return m, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) Close() error {
	c.wmu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.wmu.Unlock()
	c.shutdown()
	return nil
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Accept upgrades an HTTP request into a Conn.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws), nil
}

// Dial connects to a leader's link endpoint.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newConn(ws), nil
}
