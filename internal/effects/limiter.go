package effects

import "math"

// Limiter keeps stereo frames under a ceiling. Both channels share one
// envelope so the stereo image does not shift while limiting.
type Limiter struct {
	ceiling float32
	release float32 // coefficient
	env     float32
}

// NewLimiter creates a limiter with the ceiling given in dBFS and the time
// the gain takes to recover after a peak.
func NewLimiter(sampleRate int, ceilingDB, releaseMs float32) *Limiter {
	if ceilingDB > 0 {
		ceilingDB = 0
	}
	if releaseMs <= 0 {
		releaseMs = 1
	}
	sr := float64(sampleRate)
	return &Limiter{
		ceiling: float32(math.Pow(10, float64(ceilingDB)/20)),
		release: float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
	}
}

func (l *Limiter) Process(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		peak := abs32(buf[i])
		if r := abs32(buf[i+1]); r > peak {
			peak = r
		}
		// Peaks are caught on the frame they arrive; only the release is smoothed.
		if peak > l.env {
			l.env = peak
		} else {
			l.env += l.release * (peak - l.env)
		}
		if l.env > l.ceiling {
			g := l.ceiling / l.env
			buf[i] *= g
			buf[i+1] *= g
		}
	}
}

// Reduction reports the gain currently applied, 1 when idle.
func (l *Limiter) Reduction() float32 {
	if l.env <= l.ceiling {
		return 1
	}
	return l.ceiling / l.env
}

func (l *Limiter) Reset() {
	l.env = 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
