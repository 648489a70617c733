package tunes

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/viterin/vek/vek32"

	intaudio "github.com/cbegin/tunes-go/internal/audio"
	intchip "github.com/cbegin/tunes-go/internal/chiptune"
	"github.com/cbegin/tunes-go/internal/effects"
	intseq "github.com/cbegin/tunes-go/internal/sequencer"
	"github.com/cbegin/tunes-go/internal/tune"
)

// PlaybackEvent carries playback events from Watch().
type PlaybackEvent struct {
	Kind int // EventLoopCompleted or EventPlaybackEnded
	Tune string
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

// Wave names the oscillator a player renders tones with.
type Wave string

const (
	WaveSquare   Wave = "square"
	WavePulse    Wave = "pulse"
	WaveTriangle Wave = "triangle"
	WaveSine     Wave = "sine"
)

func (w Wave) chiptune() (intchip.Wave, error) {
	switch w {
	case WaveSquare, "":
		return intchip.WaveSquare, nil
	case WavePulse:
		return intchip.WavePulse, nil
	case WaveTriangle:
		return intchip.WaveTriangle, nil
	case WaveSine:
		return intchip.WaveSine, nil
	default:
		return 0, fmt.Errorf("unsupported wave: %s", w)
	}
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	loopPlayback bool
	sampleTap    func([]float32)
	wave         Wave
	limiter      bool
	limiterDB    float32
	builder      tune.BuilderConfig
	engine       intchip.Params
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		limiter:   true,
		limiterDB: -1,
		builder:   tune.DefaultBuilderConfig(),
		engine:    intchip.DefaultParams(),
	}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithNoteRange limits the notes a tune may use to what the output device
// can play.
func WithNoteRange(lowest, highest int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.builder.LowestNote = lowest
		cfg.builder.HighestNote = highest
	}
}

func WithLogger(logger *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.builder.Logger = logger
	}
}

func WithWave(wave Wave) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.wave = wave
	}
}

// WithLimiter keeps output under ceilingDB dBFS after the master volume is
// applied. A player limits at -1 dBFS unless disabled.
func WithLimiter(enabled bool, ceilingDB float32) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.limiter = enabled
		cfg.limiterDB = ceilingDB
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player compiles tunes and plays them on the system audio device, one at a
// time. Starting a tune replaces the one playing.
type Player struct {
	mu           sync.Mutex
	sampleRate   int
	builder      tune.BuilderConfig
	params       intchip.Params
	audio        *intaudio.Player
	volume       atomic.Uint64
	transpose    int
	loopPlayback bool
	limiter      bool
	limiterDB    float32
	sampleTap    func([]float32)
	done         chan struct{}
	eventCh      chan PlaybackEvent
	eventChMu    sync.Mutex
}

// eventWrapper wraps a sequencer and implements SampleSource + FinishingSource
// to signal when non-looping playback ends.
type eventWrapper struct {
	seq       *intseq.Sequencer
	finished  atomic.Bool
	gain      func() float32
	post      *effects.Chain
	sampleTap func([]float32)
}

func (w *eventWrapper) Process(dst []float32) {
	w.seq.Process(dst)
	if g := w.gain(); g != 1 {
		vek32.MulNumber_Inplace(dst, g)
	}
	if w.post != nil {
		w.post.Process(dst)
	}
	if w.sampleTap != nil {
		w.sampleTap(dst)
	}
}

func (w *eventWrapper) Finished() bool {
	return w.finished.Load()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	wave, err := cfg.wave.chiptune()
	if err != nil {
		return nil, err
	}
	cfg.engine.Wave = wave
	p := &Player{
		sampleRate:   sampleRate,
		builder:      cfg.builder,
		params:       cfg.engine,
		loopPlayback: cfg.loopPlayback,
		limiter:      cfg.limiter,
		limiterDB:    cfg.limiterDB,
		sampleTap:    cfg.sampleTap,
	}
	p.volume.Store(math.Float64bits(1))
	return p, nil
}

// Compile builds a tune from its source lines with the default note range.
func Compile(name string, lines ...string) (*tune.Sequence, error) {
	return tune.CompileLines(tune.DefaultBuilderConfig(), name, lines)
}

// Compile builds a tune with the player's note range and logger.
func (p *Player) Compile(name string, lines ...string) (*tune.Sequence, error) {
	return tune.CompileLines(p.builder, name, lines)
}

func (p *Player) PlayTune(name string, lines ...string) error {
	seq, err := p.Compile(name, lines...)
	if err != nil {
		return err
	}
	return p.Play(seq)
}

func (p *Player) Play(seq *tune.Sequence) error {
	if seq == nil || len(seq.Tones) == 0 || seq.Tones[len(seq.Tones)-1].Kind != tune.ToneStop {
		return errors.New("tune sequence is not finalized")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})

	wrapper := &eventWrapper{sampleTap: p.sampleTap, gain: p.gainValue}
	if p.limiter {
		wrapper.post = effects.NewChain(effects.NewLimiter(p.sampleRate, p.limiterDB, 50))
	}
	onEvent := func(kind intseq.EventKind) {
		if kind == intseq.EventPlaybackEnded {
			wrapper.finished.Store(true)
		}
		p.sendEvent(PlaybackEvent{Kind: int(kind), Tune: seq.Name})
		if kind == intseq.EventPlaybackEnded {
			p.signalDone()
		}
	}

	// A fresh engine per tune keeps release tails from leaking between tunes.
	engine := intchip.New(p.sampleRate, p.params)
	wrapper.seq = intseq.NewWithOptions(seq.Tones, engine, p.sampleRate, intseq.Options{
		LoopWholeTune: p.loopPlayback,
		OnEvent:       onEvent,
		Transpose:     p.transpose,
	})

	backend, err := intaudio.NewPlayer(p.sampleRate, wrapper)
	if err != nil {
		return err
	}
	if p.audio != nil {
		_ = p.audio.Stop()
	}
	p.audio = backend
	p.audio.Play()
	return nil
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
	return err
}

// Wait blocks until the current tune ends. When loop playback is enabled,
// Wait blocks until Stop is called.
// Wait returns immediately if no playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8). Only the most recent Watch() channel receives events;
// call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.volume.Store(math.Float64bits(volume))
}

func (p *Player) MasterVolume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// gainValue is read on the audio thread.
func (p *Player) gainValue() float32 {
	return float32(p.MasterVolume())
}

// SetTranspose sets a semitone shift applied to every audible tone.
// Takes effect on the next Play/PlayTune call.
func (p *Player) SetTranspose(semitones int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transpose = semitones
}

func (p *Player) Transpose() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transpose
}

// PlaybackPosition returns the current output position of the audio driver
// in frames. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}
