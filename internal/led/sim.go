package led

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Sim keeps the last frame in memory and logs a short summary every
// LogEvery frames. It backs the simulator and tests.
type Sim struct {
	mu       sync.Mutex
	count    int
	last     []float64
	frames   uint64
	closed   bool
	LogEvery uint64
}

func NewSim(count int) *Sim {
	return &Sim{count: count, last: make([]float64, count)}
}

func (s *Sim) Write(frame []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(frame) != s.count {
		return &FrameSizeError{Got: len(frame), Want: s.count}
	}
	copy(s.last, frame)
	s.frames++
	if s.LogEvery > 0 && s.frames%s.LogEvery == 0 {
		sum, peak := 0.0, 0.0
		for _, v := range frame {
			sum += v
			if v > peak {
				peak = v
			}
		}
		log.Debug().Uint64("frame", s.frames).Float64("avg", sum/float64(len(frame))).
			Float64("peak", peak).Float64("first", frame[0]).Msg("sim frame")
	}
	return nil
}

// Last returns a copy of the most recent frame and the number of frames written.
func (s *Sim) Last() ([]float64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.last...), s.frames
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
