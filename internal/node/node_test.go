package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/branchlight/internal/diagnostics"
	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/link"
	"github.com/coreman2200/branchlight/internal/proto"
	"github.com/coreman2200/branchlight/internal/schema"
)

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func recv(t *testing.T, l link.Link) []byte {
	t.Helper()
	b, err := l.Recv(ctxT(t))
	require.NoError(t, err)
	return b
}

func assertSilent(t *testing.T, l link.Link) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	b, err := l.Recv(ctx)
	assert.Error(t, err, "unexpected message %x", b)
}

func TestConfigureFollowerRoundTrip(t *testing.T) {
	la, fa := link.Pipe(8)
	leader := NewLeader(la, nil)
	follower := NewFollower(fa, nil)
	ctx := ctxT(t)

	sent, err := leader.Configure(ctx, dynconfig.Follower, schema.AnimWave,
		[]dynconfig.ParamValue{{ID: schema.PIDSpeed, Value: 6}, {ID: schema.PIDBranch, Value: 1}},
		[]dynconfig.ParamValue{{ID: schema.PIDGlobalMax, Value: 0.5}})
	require.NoError(t, err)
	assert.Equal(t, schema.AnimWave, leader.Remote.Anim())
	assert.Equal(t, schema.AnimStatic, leader.Local.Anim())

	require.NoError(t, follower.Handle(ctx, recv(t, fa)))
	got := follower.Out.Params()
	assert.Equal(t, schema.AnimWave, follower.Out.Anim())
	assert.Equal(t, sent.Params[0].Value, got.Speed)
	assert.True(t, got.Branch)
	assert.InDelta(t, 0.5, got.GlobalMax, 1.0/255)
	// leader mirror and follower hold identical quantized values
	assert.Equal(t, leader.Remote.Params(), got)

	require.NoError(t, leader.Handle(ctx, recv(t, la)))
	frame, ok := leader.LastAck()
	assert.True(t, ok)
	assert.Equal(t, uint32(0), frame)
}

func TestConfigureLeaderAppliesLocally(t *testing.T) {
	la, fa := link.Pipe(8)
	leader := NewLeader(la, nil)

	_, err := leader.Configure(ctxT(t), dynconfig.Leader, schema.AnimStatic,
		[]dynconfig.ParamValue{{ID: schema.PIDLevel, Value: 0.25}}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, leader.Local.Params().Level, 1.0/255)
	assertSilent(t, fa)
}

func TestFollowerIgnoresOtherRole(t *testing.T) {
	la, fa := link.Pipe(8)
	follower := NewFollower(fa, nil)
	ring := diagnostics.NewRing(4)
	follower.Diag = ring.Push
	raw := dynconfig.Marshal(dynconfig.Packet{Role: dynconfig.Leader, Anim: schema.AnimChase})
	require.NoError(t, follower.Handle(ctxT(t), raw))
	assert.Equal(t, schema.AnimStatic, follower.Out.Anim())
	assertSilent(t, la)
	recent := ring.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, diagnostics.CodeWrongRole, recent[0].Code)
}

func TestFollowerDropsMalformed(t *testing.T) {
	la, fa := link.Pipe(8)
	follower := NewFollower(fa, nil)
	ring := diagnostics.NewRing(4)
	follower.Diag = ring.Push

	before := follower.Out.Params()
	// declares one entry with an unknown id
	require.NoError(t, follower.Handle(ctxT(t), []byte{dynconfig.MsgType, 1, 3, 1, 99, 0}))
	require.NoError(t, follower.Handle(ctxT(t), []byte{0x42}))

	assert.Equal(t, before, follower.Out.Params())
	assert.Equal(t, schema.AnimStatic, follower.Out.Anim())
	recent := ring.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, diagnostics.CodeDecodeFailed, recent[0].Code)
	assert.Equal(t, diagnostics.CodeUnknownType, recent[1].Code)
	assertSilent(t, la)
}

func TestReqAnsweredWithSyncAndConfig(t *testing.T) {
	la, fa := link.Pipe(8)
	leader := NewLeader(la, nil)
	follower := NewFollower(fa, nil)
	ctx := ctxT(t)

	leader.Remote.SetAnim(schema.AnimPulse)
	leader.Remote.SetParam(schema.PIDSpeed, 2)

	require.NoError(t, follower.Start(ctx))
	require.NoError(t, leader.Handle(ctx, recv(t, la)))

	msg, err := proto.Decode(recv(t, fa))
	require.NoError(t, err)
	sync, ok := msg.(proto.Sync)
	require.True(t, ok)
	assert.Equal(t, uint16(schema.AnimPulse), sync.AnimCode)
	assert.Equal(t, uint32(1), sync.Frame)

	msg, err = proto.Decode(recv(t, fa))
	require.NoError(t, err)
	cfg, ok := msg.(dynconfig.Packet)
	require.True(t, ok)
	assert.Equal(t, dynconfig.Follower, cfg.Role)
	assert.Equal(t, schema.AnimPulse, cfg.Anim)
	require.NotEmpty(t, cfg.Params)
	assert.Equal(t, schema.PIDSpeed, cfg.Params[0].ID)
	assert.InDelta(t, 2, cfg.Params[0].Value, 12.0/4095)
	assert.Len(t, cfg.Globals, len(schema.Globals()))
}

func TestSyncSetsClockAndAnim(t *testing.T) {
	la, fa := link.Pipe(8)
	now := time.Unix(1000, 0)
	clock := NewClockFunc(func() time.Time { return now })
	follower := NewFollower(fa, clock)
	_ = la

	b, _ := proto.Sync{TimeMS: 5000, Frame: 12, AnimCode: uint16(schema.AnimSparkle)}.MarshalBinary()
	require.NoError(t, follower.Handle(ctxT(t), b))
	assert.Equal(t, uint32(5000), clock.Millis())
	assert.Equal(t, schema.AnimSparkle, follower.Out.Anim())
	_, synced := follower.Synced()
	assert.True(t, synced)

	now = now.Add(250 * time.Millisecond)
	assert.Equal(t, uint32(5250), clock.Millis())
}

func TestBrightnessForwarded(t *testing.T) {
	la, fa := link.Pipe(8)
	leader := NewLeader(la, nil)
	follower := NewFollower(fa, nil)
	var got float64
	follower.OnBrightness = func(v float64) { got = v }
	ctx := ctxT(t)

	require.NoError(t, leader.SetBrightness(ctx, 0.4))
	assert.InDelta(t, 0.4, leader.Brightness(), 1e-9)
	require.NoError(t, follower.Handle(ctx, recv(t, fa)))
	assert.InDelta(t, 0.4, got, 1e-9)
	assert.InDelta(t, 0.4, follower.Brightness(), 1e-9)
}

func TestRunLoops(t *testing.T) {
	la, fa := link.Pipe(16)
	leader := NewLeader(la, nil)
	leader.SyncInterval = 10 * time.Millisecond
	follower := NewFollower(fa, nil)
	leader.Remote.SetAnim(schema.AnimChase)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { _ = leader.Run(ctx); done <- struct{}{} }()
	go func() { _ = follower.Run(ctx); done <- struct{}{} }()

	require.Eventually(t, func() bool {
		_, ok := follower.Synced()
		return ok && follower.Out.Anim() == schema.AnimChase
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := leader.LastAck()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	<-done
}

func TestOutputResetKeepsGlobals(t *testing.T) {
	o := NewOutput()
	require.True(t, o.SetParamByName("speed", 9))
	require.True(t, o.SetParamByName("globalMax", 0.4))
	assert.False(t, o.SetParamByName("nope", 1))

	o.Reset(schema.AnimChase)
	ps := o.Params()
	assert.Equal(t, schema.AnimChase, o.Anim())
	assert.Equal(t, 3.0, ps.Speed)
	assert.Equal(t, 0.4, ps.GlobalMax)
}
