package sequence

import (
	"errors"
	"math"
)

func NewPlayer(h Hooks) *Player {
	return &Player{State: Idle, hooks: h}
}

// Load replaces the current program and resets to Idle.
func (p *Player) Load(prog Program) error {
	if len(prog.Clips) == 0 {
		return errors.New("program has no clips")
	}
	p.prog = prog
	p.nowS = 0
	p.idx = 0
	p.State = Idle
	p.armed = false
	p.lastAlpha = 0
	return nil
}

func (p *Player) Program() Program { return p.prog }

// Start moves to Running and primes the current clip.
func (p *Player) Start() {
	if p.State == Running || len(p.prog.Clips) == 0 {
		return
	}
	p.State = Running
	p.enter(p.idx)
}

func (p *Player) Pause() {
	if p.State == Running {
		p.State = Paused
	}
}

func (p *Player) Resume() {
	if p.State == Paused {
		p.State = Running
	}
}

// Stop stops and rewinds to the start.
func (p *Player) Stop() {
	p.State = Idle
	p.nowS = 0
	p.idx = 0
	p.armed = false
	p.lastAlpha = 0
	p.crossfade(0)
}

// Position returns the program time and current clip index.
func (p *Player) Position() (float64, int) { return p.nowS, p.idx }

// Seek jumps to program time t, clamped into [0, total).
func (p *Player) Seek(t float64) {
	if len(p.prog.Clips) == 0 {
		return
	}
	if t < 0 {
		t = 0
	}
	total := p.totalDuration()
	if total > 0 && t >= total {
		t = math.Nextafter(total, -1)
	}
	acc := 0.0
	idx := len(p.prog.Clips) - 1
	for i, c := range p.prog.Clips {
		if t < acc+c.DurationS {
			idx = i
			break
		}
		acc += c.DurationS
	}
	p.nowS = t
	p.enter(idx)
}

// Tick advances the timeline by dt seconds and emits hooks.
func (p *Player) Tick(dt float64) {
	if p.State != Running || len(p.prog.Clips) == 0 || dt <= 0 {
		return
	}
	p.nowS += dt

	clip, localT := p.current()
	if p.hooks.SetParam != nil {
		for name, env := range clip.Params {
			p.hooks.SetParam(name, env.Eval(localT))
		}
	}
	if p.hooks.SetBool != nil {
		for name, env := range clip.Bools {
			p.hooks.SetBool(name, env.BoolEval(localT))
		}
	}

	if clip.XFadeS > 0 {
		remain := clip.DurationS - localT
		if remain <= clip.XFadeS && remain >= 0 {
			next := p.nextIndex()
			if !p.armed && next != -1 && p.hooks.ArmNext != nil {
				p.hooks.ArmNext(p.prog.Clips[next])
				p.armed = true
			}
			alpha := clamp01(1 - remain/clip.XFadeS)
			if alpha != p.lastAlpha {
				p.crossfade(alpha)
				p.lastAlpha = alpha
			}
		}
	}

	if localT >= clip.DurationS {
		next := p.nextIndex()
		if next == -1 {
			p.State = Idle
			p.crossfade(0)
			return
		}
		if next == 0 {
			p.nowS -= p.totalDuration()
		}
		p.enter(next)
	}
}

func (p *Player) enter(idx int) {
	p.idx = idx
	p.armed = false
	p.lastAlpha = 0
	if p.hooks.SetClip != nil {
		p.hooks.SetClip(p.prog.Clips[idx])
	}
	p.crossfade(0)
}

func (p *Player) crossfade(a float64) {
	if p.hooks.SetCrossfade != nil {
		p.hooks.SetCrossfade(a)
	}
}

func (p *Player) current() (Clip, float64) {
	acc := 0.0
	for i := 0; i < p.idx; i++ {
		acc += p.prog.Clips[i].DurationS
	}
	return p.prog.Clips[p.idx], p.nowS - acc
}

func (p *Player) totalDuration() float64 {
	total := 0.0
	for _, c := range p.prog.Clips {
		total += c.DurationS
	}
	return total
}

func (p *Player) nextIndex() int {
	ni := p.idx + 1
	if ni >= len(p.prog.Clips) {
		if p.prog.Loop {
			return 0
		}
		return -1
	}
	return ni
}
