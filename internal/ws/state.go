// Package ws serves the control panel API and the live websocket feeds.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/branchlight/internal/app"
	diag "github.com/coreman2200/branchlight/internal/diagnostics"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const writeWait = 200 * time.Millisecond

// client serializes writes to one websocket.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

type State struct {
	Core *app.Core
	// ConfigPath, when set, receives brightness changes made from /control.
	ConfigPath string

	mu          sync.RWMutex
	startTime   time.Time
	clients     map[*client]bool
	diagClients map[*client]bool
	lastFrame   uint64

	unsubscribe func()
}

func NewState(core *app.Core) *State {
	s := &State{
		Core:        core,
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
	}
	s.unsubscribe = core.Diag.Subscribe(s.pushDiag)
	return s
}

// Routes returns the full HTTP surface.
func (s *State) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /api/schema", s.HandleSchema)
	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("POST /api/cfg2", s.HandleCfg2)
	mux.HandleFunc("POST /api/brightness", s.HandleBrightness)
	mux.HandleFunc("POST /api/sync", s.HandleSync)
	if s.Core.Hub != nil {
		mux.Handle("/link", s.Core.Hub)
	}
	return withCORS(mux)
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// Broadcast pushes each new engine frame to /ws clients every interval
// until ctx ends.
func (s *State) Broadcast(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second / 30
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.broadcastFrame()
		}
	}
}

func (s *State) broadcastFrame() {
	frame, id := s.Core.Eng.Frame()
	s.mu.Lock()
	if id == s.lastFrame {
		s.mu.Unlock()
		return
	}
	s.lastFrame = id
	s.mu.Unlock()

	type message struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		Levels  []int  `json:"levels"`
	}
	levels := make([]int, len(frame))
	for i, v := range frame {
		levels[i] = int(v*255 + 0.5)
	}
	b, _ := json.Marshal(message{T: time.Now().UnixNano(), FrameID: id, Levels: levels})

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if err := c.write(b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (s *State) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.diagClients {
		_ = c.write(b)
	}
}

// Close detaches from diagnostics and drops every websocket client.
func (s *State) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
	for c := range s.diagClients {
		c.conn.Close()
	}
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	_ = c.write(s.topology())
	s.clients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	// replay history before live diagnostics
	s.mu.Lock()
	for _, d := range s.Core.Diag.Recent() {
		b, _ := json.Marshal(d)
		_ = c.write(b)
	}
	s.diagClients[c] = true
	s.mu.Unlock()
	go s.drain(c, s.diagClients)
}

// drain discards client input and unregisters c once it closes.
func (s *State) drain(c *client, set map[*client]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *State) topology() []byte {
	l := s.Core.Layout
	b, _ := json.Marshal(map[string]any{
		"branches":  l.Branches,
		"perBranch": l.PerBranch,
		"count":     l.Count(),
		"wiring":    map[string]bool{"flipOddBranches": l.Wiring.FlipOddBranches},
		"role":      s.Core.Cfg.Role,
		"driver":    s.Core.Cfg.Driver,
	})
	return b
}
