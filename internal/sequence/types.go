// Package sequence plays a show: a timeline of animation clips with
// parameter automation and crossfades between clips.
package sequence

// Keyframe is a value at time T (seconds into the clip). Ease applies to the
// segment starting at this keyframe.
type Keyframe struct {
	T    float64 `yaml:"t" json:"t"`
	V    float64 `yaml:"v" json:"v"`
	Ease string  `yaml:"ease,omitempty" json:"ease,omitempty"` // "linear","smooth","cubic"
}

// Envelope is a sorted list of keyframes. In YAML it is either a bare number
// or a list of keyframes.
type Envelope struct {
	Keys []Keyframe
}

// Clip selects an animation by name for DurationS seconds, with an optional
// crossfade into the next clip.
type Clip struct {
	Name      string              `yaml:"name" json:"name"`
	Animation string              `yaml:"animation" json:"animation"`
	DurationS float64             `yaml:"duration_s" json:"durationS"`
	XFadeS    float64             `yaml:"xfade_s,omitempty" json:"xFadeS,omitempty"`
	Params    map[string]Envelope `yaml:"params,omitempty" json:"-"`
	// Bools are thresholded at 0.5.
	Bools map[string]Envelope `yaml:"bools,omitempty" json:"-"`
	// Follower, when set, is sent to the follower at clip start.
	Follower string `yaml:"follower,omitempty" json:"follower,omitempty"`
}

// Program is a full show.
type Program struct {
	Version string `yaml:"version" json:"version"` // "show.v1"
	Loop    bool   `yaml:"loop,omitempty" json:"loop,omitempty"`
	Clips   []Clip `yaml:"clips" json:"clips"`
}

type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Hooks are dependency-injected callbacks into the render side.
type Hooks struct {
	// SetClip makes c active immediately.
	SetClip func(c Clip)
	// SetParam and SetBool target the active clip.
	SetParam func(name string, v float64)
	SetBool  func(name string, b bool)
	// ArmNext prepares c for a crossfade.
	ArmNext      func(c Clip)
	SetCrossfade func(alpha float64)
}

// Player owns the program timeline and drives Hooks.
type Player struct {
	State PlayerState

	prog Program
	nowS float64
	idx  int

	armed     bool
	lastAlpha float64

	hooks Hooks
}
