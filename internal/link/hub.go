package link

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub is the leader side of the link. Send broadcasts to every connected
// follower and Recv yields messages from any of them.
type Hub struct {
	mu    sync.RWMutex
	peers map[*Conn]struct{}
	in    chan []byte
	done  chan struct{}
	once  sync.Once

	// OnJoin, if set, runs after a follower connects.
	OnJoin func(c *Conn)
}

func NewHub() *Hub {
	return &Hub{
		peers: map[*Conn]struct{}{},
		in:    make(chan []byte, 64),
		done:  make(chan struct{}),
	}
}

// ServeHTTP accepts a follower connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := Accept(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("link upgrade")
		return
	}
	h.Add(c)
}

// Add registers c and forwards its messages until it closes.
func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	h.peers[c] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	log.Info().Str("remote", c.ws.RemoteAddr().String()).Int("peers", n).Msg("follower joined")
	if h.OnJoin != nil {
		h.OnJoin(c)
	}

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.peers, c)
			h.mu.Unlock()
			c.Close()
		}()
		for {
			m, err := c.Recv(context.Background())
			if err != nil {
				return
			}
			select {
			case h.in <- m:
			case <-h.done:
				return
			}
		}
	}()
}

// Peers reports how many followers are connected.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) Send(ctx context.Context, msg []byte) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	h.mu.RLock()
	peers := make([]*Conn, 0, len(h.peers))
	for c := range h.peers {
		peers = append(peers, c)
	}
	h.mu.RUnlock()
	for _, c := range peers {
		if err := c.Send(ctx, msg); err != nil {
			log.Debug().Err(err).Msg("link broadcast")
		}
	}
	return nil
}

func (h *Hub) Recv(ctx context.Context) ([]byte, error) {
	select {
	case m := <-h.in:
		return m, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Close() error {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		peers := h.peers
		h.peers = map[*Conn]struct{}{}
		h.mu.Unlock()
		for c := range peers {
			c.Close()
		}
	})
	return nil
}
