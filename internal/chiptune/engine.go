package chiptune

import "math"

const twoPi = math.Pi * 2

// Wave selects the oscillator shape of every voice.
type Wave int

const (
	WaveSquare Wave = iota
	WavePulse
	WaveTriangle
	WaveSine
)

type Params struct {
	Voices     int
	Wave       Wave
	MasterGain float64
	AttackSec  float64
	ReleaseSec float64
	PulseDuty  float64
	LPFCutoff  float64 // lowpass filter cutoff in Hz (0 = disabled)
}

// DefaultParams gives a PC speaker like square wave with just enough
// envelope to keep tone edges from clicking.
func DefaultParams() Params {
	return Params{
		Voices:     4,
		Wave:       WaveSquare,
		MasterGain: 0.25,
		AttackSec:  0.002,
		ReleaseSec: 0.008,
		PulseDuty:  0.25,
		LPFCutoff:  9000,
	}
}

type envState int

const (
	envAttack envState = iota
	envHold
	envRelease
	envOff
)

type voice struct {
	active   bool
	id       int
	age      int
	freq     float64
	phase    float64
	env      float64
	envState envState
}

// Engine renders tones as a small bank of oscillator voices. A released
// voice keeps sounding until its release ramp finishes.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain float64
	dcPrevIn   float64
	dcPrevOut  float64
	lpf        float64
	lpfAlpha   float64
}

func New(sampleRate int, params Params) *Engine {
	if params.Voices <= 0 {
		params.Voices = 4
	}
	if params.PulseDuty <= 0 || params.PulseDuty >= 1 {
		params.PulseDuty = 0.25
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		masterGain: math.Max(params.MasterGain, 0),
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	return e
}

// NoteOn starts a voice at frequency Hz and returns its id.
func (e *Engine) NoteOn(frequency float64) int {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	e.voices[slot] = voice{
		active:   true,
		id:       id,
		freq:     frequency,
		envState: envAttack,
	}
	return id
}

func (e *Engine) NoteOff(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id && v.envState != envRelease {
			v.envState = envRelease
		}
	}
}

func (e *Engine) RenderFrame() (float32, float32) {
	var out float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		v.age++
		env := e.advanceEnv(v)
		if !v.active {
			continue
		}
		out += e.renderWave(v) * env * e.masterGain
	}
	out = e.dcBlock(out)
	if e.lpfAlpha > 0 {
		e.lpf += e.lpfAlpha * (out - e.lpf)
		out = e.lpf
	}
	s := float32(clamp(out, -1, 1))
	return s, s
}

func (e *Engine) dcBlock(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevIn + r*e.dcPrevOut
	e.dcPrevIn = x
	e.dcPrevOut = y
	return y
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (e *Engine) renderWave(v *voice) float64 {
	dt := v.freq / e.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch e.params.Wave {
	case WaveSquare:
		return pulse(v.phase, dt, 0.5)
	case WavePulse:
		return pulse(v.phase, dt, e.params.PulseDuty)
	case WaveTriangle:
		return 2*math.Abs(2*v.phase-1) - 1
	case WaveSine:
		return math.Sin(twoPi * v.phase)
	default:
		return 0
	}
}

func pulse(phase, dt, duty float64) float64 {
	out := -1.0
	if phase < duty {
		out = 1
	}
	out += polyBLEP(phase, dt)
	out -= polyBLEP(math.Mod(phase-duty+1, 1), dt)
	return out
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	// Steal the oldest voice, preferring ones already releasing.
	oldest, oldestAge := 0, -1
	for i := range e.voices {
		v := &e.voices[i]
		age := v.age
		if v.envState == envRelease {
			age += math.MaxInt32
		}
		if age > oldestAge {
			oldest, oldestAge = i, age
		}
	}
	return oldest
}

func (e *Engine) advanceEnv(v *voice) float64 {
	switch v.envState {
	case envAttack:
		v.env += rampStep(e.params.AttackSec, e.sampleRate)
		if v.env >= 1 {
			v.env = 1
			v.envState = envHold
		}
	case envHold:
	case envRelease:
		v.env -= rampStep(e.params.ReleaseSec, e.sampleRate)
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

func rampStep(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 1
	}
	return 1.0 / (seconds * sampleRate)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

