// Package node implements the leader and follower halves of the installation
// protocol on top of a link.Link.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/branchlight/internal/diagnostics"
	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/link"
	"github.com/coreman2200/branchlight/internal/proto"
)

const DefaultSyncInterval = time.Second

// Leader owns its own output, mirrors the follower's configuration and keeps
// the follower in step with periodic SYNC messages.
type Leader struct {
	Link   link.Link
	Local  *Output
	Remote *Output

	SyncInterval time.Duration
	// OnBrightness is called with the new 0..1 level.
	OnBrightness func(float64)
	Diag         diagnostics.Sink

	clock *Clock

	mu         sync.Mutex
	frame      uint32
	brightness float64
	lastAck    uint32
	acked      bool
}

func NewLeader(l link.Link, clock *Clock) *Leader {
	if clock == nil {
		clock = NewClock()
	}
	return &Leader{
		Link:         l,
		Local:        NewOutput(),
		Remote:       NewOutput(),
		SyncInterval: DefaultSyncInterval,
		clock:        clock,
		brightness:   1,
	}
}

func (l *Leader) Clock() *Clock { return l.clock }

// Output returns the output rendered by this node.
func (l *Leader) Output() *Output { return l.Local }

// Configure encodes a configuration packet for role and applies it. Leader
// packets are applied locally after a decode round trip so both nodes see the
// same quantized values. Follower packets are transmitted and mirrored.
func (l *Leader) Configure(ctx context.Context, role dynconfig.Role, anim uint8, ps, globals []dynconfig.ParamValue) (dynconfig.Packet, error) {
	buf := make([]byte, dynconfig.MaxPacketSize)
	n := dynconfig.Encode(role, anim, ps, globals, buf)
	p, err := dynconfig.Decode(buf[:n])
	if err != nil {
		return dynconfig.Packet{}, fmt.Errorf("configure: %w", err)
	}
	switch role {
	case dynconfig.Leader:
		l.Local.Apply(p)
	case dynconfig.Follower:
		if l.Link != nil {
			if err := l.Link.Send(ctx, buf[:n]); err != nil {
				return p, fmt.Errorf("configure send: %w", err)
			}
		}
		l.Remote.Apply(p)
	default:
		return p, fmt.Errorf("configure: unknown role %d", role)
	}
	log.Debug().Stringer("role", role).Uint8("anim", anim).Int("bytes", n).
		Int("params", len(p.Params)).Int("globals", len(p.Globals)).Msg("cfg2")
	return p, nil
}

// SetBrightness applies level locally and forwards it to the follower.
func (l *Leader) SetBrightness(ctx context.Context, level float64) error {
	pct := proto.BrightnessPercent(level)
	l.mu.Lock()
	l.brightness = float64(pct) / 100
	l.mu.Unlock()
	if l.OnBrightness != nil {
		l.OnBrightness(float64(pct) / 100)
	}
	return l.send(ctx, proto.Brightness{Percent: pct})
}

func (l *Leader) Brightness() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.brightness
}

// SendSync transmits the current clock, frame counter and follower animation.
func (l *Leader) SendSync(ctx context.Context) error {
	l.mu.Lock()
	l.frame++
	frame := l.frame
	l.mu.Unlock()
	return l.send(ctx, proto.Sync{
		TimeMS:   l.clock.Millis(),
		Frame:    frame,
		AnimCode: proto.AnimCode(l.Remote.Anim()),
	})
}

// LastAck returns the most recent acknowledged frame.
func (l *Leader) LastAck() (uint32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastAck, l.acked
}

func (l *Leader) send(ctx context.Context, m interface{ MarshalBinary() ([]byte, error) }) error {
	if l.Link == nil {
		return nil
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return l.Link.Send(ctx, b)
}

// Handle processes one message from a follower.
func (l *Leader) Handle(ctx context.Context, data []byte) error {
	msg, err := proto.Decode(data)
	if err != nil {
		l.report(diagnostics.Diagnostic{
			Severity: diagnostics.Warn, Code: diagnostics.CodeDecodeFailed,
			Summary: "dropped malformed message", Detail: err.Error(),
			Evidence: map[string]any{"len": len(data)},
		})
		return nil
	}
	switch m := msg.(type) {
	case proto.Req:
		if err := l.SendSync(ctx); err != nil {
			return err
		}
		if l.Link == nil {
			return nil
		}
		return l.Link.Send(ctx, dynconfig.Marshal(l.Remote.Packet(dynconfig.Follower)))
	case proto.Ack:
		l.mu.Lock()
		l.lastAck, l.acked = m.Frame, true
		l.mu.Unlock()
		log.Debug().Uint32("frame", m.Frame).Msg("ack")
	default:
		log.Debug().Type("msg", msg).Msg("leader ignored message")
	}
	return nil
}

// Run services the link and sends SYNC every SyncInterval until ctx ends.
func (l *Leader) Run(ctx context.Context) error {
	if l.Link == nil {
		<-ctx.Done()
		return nil
	}
	errc := make(chan error, 1)
	go func() {
		for {
			data, err := l.Link.Recv(ctx)
			if err != nil {
				errc <- err
				return
			}
			if err := l.Handle(ctx, data); err != nil {
				log.Warn().Err(err).Msg("leader handle")
			}
		}
	}()

	interval := l.SyncInterval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, context.Canceled) || errors.Is(err, link.ErrClosed) {
				return nil
			}
			return err
		case <-tick.C:
			if err := l.SendSync(ctx); err != nil {
				log.Debug().Err(err).Msg("sync")
			}
		}
	}
}

func (l *Leader) report(d diagnostics.Diagnostic) {
	log.Warn().Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)
	if l.Diag != nil {
		l.Diag(d)
	}
}
