package sequence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeEval(t *testing.T) {
	env := Envelope{Keys: []Keyframe{
		{T: 0, V: 0, Ease: "linear"},
		{T: 10, V: 10, Ease: "linear"},
	}}
	if v := env.Eval(-1); v != 0 {
		t.Fatalf("expected 0 before start, got %v", v)
	}
	if v := env.Eval(0); v != 0 {
		t.Fatalf("expected 0 at t=0, got %v", v)
	}
	if v := env.Eval(5); v != 5 {
		t.Fatalf("expected 5 at t=5, got %v", v)
	}
	if v := env.Eval(10); v != 10 {
		t.Fatalf("expected 10 at t=10, got %v", v)
	}
	if v := env.Eval(11); v != 10 {
		t.Fatalf("expected 10 after end, got %v", v)
	}
	if v := (Envelope{}).Eval(3); v != 0 {
		t.Fatalf("empty envelope: %v", v)
	}
}

func TestEnvelopeEasing(t *testing.T) {
	env := Envelope{Keys: []Keyframe{{T: 0, V: 0, Ease: "smooth"}, {T: 1, V: 1}}}
	assert.InDelta(t, 0.5, env.Eval(0.5), 1e-9)
	assert.Less(t, env.Eval(0.25), 0.25)

	env.Keys[0].Ease = "cubic"
	assert.InDelta(t, 0.5, env.Eval(0.5), 1e-9)
	assert.Less(t, env.Eval(0.1), 0.1)
}

func TestSequencerCrossfade(t *testing.T) {
	log := []string{}
	h := Hooks{
		SetClip: func(c Clip) { log = append(log, "Set:"+c.Animation) },
		ArmNext: func(c Clip) { log = append(log, "Arm:"+c.Animation) },
		SetCrossfade: func(a float64) {
			if a == 0 || a == 0.5 || a == 1.0 {
				log = append(log, "Alpha")
			}
		},
		SetParam: func(name string, v float64) {},
		SetBool:  func(name string, b bool) {},
	}
	p := NewPlayer(h)
	prog := Program{
		Version: Version,
		Clips: []Clip{
			{Name: "A", Animation: "Wave", DurationS: 4, XFadeS: 2},
			{Name: "B", Animation: "Chase", DurationS: 4},
		},
	}
	require.NoError(t, p.Load(prog))
	p.Start()
	p.Tick(1.5)
	// A's fade starts at t=2.0
	p.Tick(1.0)
	p.Tick(0.5)
	p.Tick(1.0) // t=4.0 switches to B

	var cleaned []string
	for _, entry := range log {
		if entry != "Alpha" {
			cleaned = append(cleaned, entry)
		}
	}
	assert.Equal(t, []string{"Set:Wave", "Arm:Chase", "Set:Chase"}, cleaned)
	_, idx := p.Position()
	assert.Equal(t, 1, idx)

	// B has no successor and no loop
	p.Tick(4)
	assert.Equal(t, Idle, p.State)
}

func TestPlayerLoopsAndSeeks(t *testing.T) {
	var clips []string
	p := NewPlayer(Hooks{SetClip: func(c Clip) { clips = append(clips, c.Name) }})
	require.NoError(t, p.Load(Program{Loop: true, Clips: []Clip{
		{Name: "A", Animation: "Static", DurationS: 1},
		{Name: "B", Animation: "Pulse", DurationS: 2},
	}}))
	p.Start()
	p.Tick(1)
	p.Tick(2)
	now, idx := p.Position()
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 0, now, 1e-9)
	assert.Equal(t, []string{"A", "B", "A"}, clips)

	p.Seek(2.5)
	_, idx = p.Position()
	assert.Equal(t, 1, idx)
	p.Seek(99)
	now, idx = p.Position()
	assert.Equal(t, 1, idx)
	assert.Less(t, now, 3.0)
}

func TestPlayerPauseIgnoresTicks(t *testing.T) {
	var got []float64
	p := NewPlayer(Hooks{SetParam: func(_ string, v float64) { got = append(got, v) }})
	require.NoError(t, p.Load(Program{Clips: []Clip{{
		Animation: "Static", DurationS: 10,
		Params: map[string]Envelope{"level": {Keys: []Keyframe{{T: 0, V: 0}, {T: 10, V: 1}}}},
	}}}))
	p.Start()
	p.Tick(5)
	p.Pause()
	p.Tick(1)
	p.Resume()
	p.Tick(1)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5, got[0], 1e-9)
	assert.InDelta(t, 0.6, got[1], 1e-9)

	p.Stop()
	assert.Equal(t, Idle, p.State)
	now, _ := p.Position()
	assert.Equal(t, 0.0, now)
}

func TestLoadEmpty(t *testing.T) {
	assert.Error(t, NewPlayer(Hooks{}).Load(Program{}))
}

const show = `
version: show.v1
loop: true
clips:
  - name: intro
    animation: wave
    duration_s: 8
    xfade_s: 2
    params:
      speed: 2
      level: [{t: 0, v: 0}, {t: 4, v: 1, ease: smooth}]
    bools:
      branch: true
  - name: glitter
    animation: Sparkle
    follower: Perlin
    duration_s: 6
    params:
      sparkleMax: 10
`

func TestParse(t *testing.T) {
	prog, err := Parse([]byte(show))
	require.NoError(t, err)
	assert.True(t, prog.Loop)
	require.Len(t, prog.Clips, 2)

	intro := prog.Clips[0]
	assert.Equal(t, 2.0, intro.Params["speed"].Eval(5))
	assert.InDelta(t, 0.5, intro.Params["level"].Eval(2), 1e-9)
	assert.True(t, intro.Bools["branch"].BoolEval(0))
	assert.Equal(t, "Perlin", prog.Clips[1].Follower)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"version":  "version: show.v9\nclips: [{animation: Wave, duration_s: 1}]",
		"no clips": "version: show.v1",
		"anim":     "clips: [{animation: Strobe, duration_s: 1}]",
		"duration": "clips: [{animation: Wave}]",
		"xfade":    "clips: [{animation: Wave, duration_s: 1, xfade_s: 2}]",
		"param":    "clips: [{animation: Wave, duration_s: 1, params: {bogus: 1}}]",
		"bool":     "clips: [{animation: Wave, duration_s: 1, bools: {speed: 1}}]",
		"envelope": "clips: [{animation: Wave, duration_s: 1, params: {speed: {t: 1}}}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show.yaml")
	require.NoError(t, os.WriteFile(path, []byte(show), 0o644))
	prog, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, prog.Clips, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
