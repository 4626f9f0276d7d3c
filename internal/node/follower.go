package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/branchlight/internal/diagnostics"
	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/link"
	"github.com/coreman2200/branchlight/internal/proto"
)

// Follower applies configuration addressed to it and tracks the leader's
// clock and animation.
type Follower struct {
	Link link.Link
	Out  *Output

	OnBrightness func(float64)
	Diag         diagnostics.Sink

	clock *Clock

	mu         sync.Mutex
	frame      uint32
	brightness float64
	lastSync   time.Time
	synced     bool
}

func NewFollower(l link.Link, clock *Clock) *Follower {
	if clock == nil {
		clock = NewClock()
	}
	return &Follower{Link: l, Out: NewOutput(), clock: clock, brightness: 1}
}

func (f *Follower) Clock() *Clock { return f.clock }

func (f *Follower) Output() *Output { return f.Out }

func (f *Follower) Brightness() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.brightness
}

// Synced reports whether a SYNC has been received and when.
func (f *Follower) Synced() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSync, f.synced
}

// Start asks the leader for time and configuration.
func (f *Follower) Start(ctx context.Context) error {
	b, _ := proto.Req{}.MarshalBinary()
	return f.Link.Send(ctx, b)
}

// Handle processes one message from the leader. Malformed messages are
// dropped and reported; only transport errors are returned.
func (f *Follower) Handle(ctx context.Context, data []byte) error {
	msg, err := proto.Decode(data)
	if err != nil {
		code := diagnostics.CodeDecodeFailed
		if errors.Is(err, proto.ErrUnknownType) {
			code = diagnostics.CodeUnknownType
		}
		f.report(diagnostics.Diagnostic{
			Severity: diagnostics.Warn, Code: code,
			Summary: "dropped malformed message", Detail: err.Error(),
			Evidence: map[string]any{"len": len(data)},
		})
		return nil
	}
	switch m := msg.(type) {
	case dynconfig.Packet:
		if m.Role != dynconfig.Follower {
			log.Debug().Stringer("role", m.Role).Msg("cfg2 for other role")
			if f.Diag != nil {
				f.Diag(diagnostics.Diagnostic{
					Severity: diagnostics.Info, Code: diagnostics.CodeWrongRole,
					Summary:  "ignored config for another node",
					Evidence: map[string]any{"role": m.Role.String(), "anim": m.Anim},
				})
			}
			return nil
		}
		f.Out.Apply(m)
		log.Info().Uint8("anim", m.Anim).Int("params", len(m.Params)).Int("globals", len(m.Globals)).Msg("cfg2 applied")
		f.mu.Lock()
		frame := f.frame
		f.mu.Unlock()
		b, _ := proto.Ack{Frame: frame}.MarshalBinary()
		return f.Link.Send(ctx, b)
	case proto.Sync:
		delta := f.clock.SyncTo(m.TimeMS)
		f.Out.SetAnim(uint8(m.AnimCode))
		f.mu.Lock()
		f.frame = m.Frame
		f.lastSync = time.Now()
		f.synced = true
		f.mu.Unlock()
		log.Debug().Uint32("frame", m.Frame).Dur("correction", delta).Msg("sync")
	case proto.Brightness:
		level := float64(m.Percent) / 100
		if level > 1 {
			level = 1
		}
		f.mu.Lock()
		f.brightness = level
		f.mu.Unlock()
		if f.OnBrightness != nil {
			f.OnBrightness(level)
		}
	default:
		log.Debug().Type("msg", msg).Msg("follower ignored message")
	}
	return nil
}

// Run sends REQ and then services the link until ctx ends or the link closes.
func (f *Follower) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}
	for {
		data, err := f.Link.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, link.ErrClosed) {
				return nil
			}
			return err
		}
		if err := f.Handle(ctx, data); err != nil {
			log.Warn().Err(err).Msg("follower handle")
		}
	}
}

func (f *Follower) report(d diagnostics.Diagnostic) {
	log.Warn().Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)
	if f.Diag != nil {
		f.Diag(d)
	}
}
