package sequencer

import (
	"github.com/cbegin/tunes-go/internal/tune"
)

// ToneEngine is the actuator a Sequencer drives.
type ToneEngine interface {
	NoteOn(frequency float64) int
	NoteOff(id int)
	RenderFrame() (float32, float32)
	// ActiveVoiceCount returns the number of voices still sounding, including
	// release tails. Used to detect when playback has fully ended.
	ActiveVoiceCount() int
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

type Options struct {
	LoopWholeTune     bool
	OnEvent           func(EventKind)
	ReleaseTailFrames int // extra frames to render after last voice ends (0 = use 0.05s default)
	Transpose         int // semitones added to every audible tone
}

// Sequencer plays a compiled tone sequence through a ToneEngine, one tone
// after another, until the Stop marker.
type Sequencer struct {
	tones             []tune.Tone
	engine            ToneEngine
	sampleRate        int
	index             int
	elapsedMS         int
	frame             int64
	toneEndFrame      int64
	voice             int
	started           bool
	loopWholeTune     bool
	onEvent           func(EventKind)
	transpose         int
	commandExhausted  bool
	releaseTailFrames int
	tailCountdown     int
	ended             bool
}

func New(tones []tune.Tone, engine ToneEngine, sampleRate int) *Sequencer {
	return NewWithOptions(tones, engine, sampleRate, Options{})
}

func NewWithOptions(tones []tune.Tone, engine ToneEngine, sampleRate int, opts Options) *Sequencer {
	tail := opts.ReleaseTailFrames
	if tail <= 0 {
		tail = sampleRate / 20
	}
	return &Sequencer{
		tones:             tones,
		engine:            engine,
		sampleRate:        sampleRate,
		voice:             -1,
		loopWholeTune:     opts.LoopWholeTune,
		onEvent:           opts.OnEvent,
		transpose:         opts.Transpose,
		releaseTailFrames: tail,
	}
}

// Ended reports whether the Stop marker was reached and the tail rendered.
func (s *Sequencer) Ended() bool { return s.ended }

// Position is the number of frames rendered so far.
func (s *Sequencer) Position() int64 { return s.frame }

// TotalFrames is the number of frames taken by the tones themselves,
// excluding release tails.
func (s *Sequencer) TotalFrames() int64 {
	total := 0
	for _, t := range s.tones {
		if t.Kind == tune.ToneStop {
			break
		}
		total += t.Duration
	}
	return s.msToFrames(total)
}

// Process renders interleaved stereo frames into dst.
func (s *Sequencer) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		s.step()
		if s.ended {
			dst[i], dst[i+1] = 0, 0
			continue
		}
		dst[i], dst[i+1] = s.engine.RenderFrame()
		s.frame++
	}
}

func (s *Sequencer) step() {
	if s.ended {
		return
	}
	if s.commandExhausted {
		if s.engine.ActiveVoiceCount() > 0 {
			return
		}
		if s.tailCountdown > 0 {
			s.tailCountdown--
			return
		}
		if !s.loopWholeTune {
			s.ended = true
			s.emit(EventPlaybackEnded)
			return
		}
		s.restart()
		s.emit(EventLoopCompleted)
	}
	for !s.commandExhausted && (!s.started || s.frame >= s.toneEndFrame) {
		s.advance()
	}
}

// advance releases the sounding voice and starts the next tone.
func (s *Sequencer) advance() {
	if s.voice >= 0 {
		s.engine.NoteOff(s.voice)
		s.voice = -1
	}
	if s.started {
		s.index++
	}
	s.started = true
	if s.index >= len(s.tones) || s.tones[s.index].Kind == tune.ToneStop {
		s.commandExhausted = true
		s.tailCountdown = s.releaseTailFrames
		return
	}
	t := s.tones[s.index]
	if t.Note != 0 {
		freq := t.Frequency
		if s.transpose != 0 {
			freq = tune.NoteFrequency(t.Note + s.transpose)
		}
		s.voice = s.engine.NoteOn(freq)
	}
	// Tone boundaries come from the running millisecond total so rounding
	// never accumulates across a long tune.
	s.elapsedMS += t.Duration
	s.toneEndFrame = s.msToFrames(s.elapsedMS)
}

func (s *Sequencer) restart() {
	s.index = 0
	s.started = false
	s.elapsedMS = 0
	s.frame = 0
	s.toneEndFrame = 0
	s.commandExhausted = false
}

func (s *Sequencer) emit(kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(kind)
	}
}

func (s *Sequencer) msToFrames(ms int) int64 {
	return int64(ms) * int64(s.sampleRate) / 1000
}
