package tunes

import (
	"errors"
	"testing"

	"github.com/cbegin/tunes-go/internal/tune"
)

func TestPlayerMasterVolumeRuntimeAPI(t *testing.T) {
	pl, err := NewPlayer(48000)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if got := pl.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	pl.SetMasterVolume(0.35)
	if got := pl.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	pl.SetMasterVolume(-2)
	if got := pl.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestNewPlayerRejectsBadSampleRate(t *testing.T) {
	if _, err := NewPlayer(0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestPlayerCompileUsesNoteRange(t *testing.T) {
	pl, err := NewPlayer(48000, WithNoteRange(48, 84))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if _, err := pl.Compile("range", "c6"); err != nil {
		t.Fatalf("compile in range: %v", err)
	}
	_, err = pl.Compile("range", "c7")
	var se *tune.SyntaxError
	if !errors.As(err, &se) || se.Message != "note too high" {
		t.Fatalf("expected note too high, got %v", err)
	}
}

func TestPlayerRejectsUnfinishedSequence(t *testing.T) {
	pl, err := NewPlayer(48000)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if err := pl.Play(&tune.Sequence{Tones: []tune.Tone{{Kind: tune.TonePlay, Duration: 10}}}); err == nil {
		t.Fatalf("expected error for sequence without stop marker")
	}
	if err := pl.Play(nil); err == nil {
		t.Fatalf("expected error for nil sequence")
	}
	if err := pl.Stop(); err != nil {
		t.Fatalf("stop without playback: %v", err)
	}
	pl.Wait()
}

func TestEventWrapperAppliesGain(t *testing.T) {
	seq, err := Compile("gain", "t120 a4")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	render := func(gain float32) []float32 {
		w := &eventWrapper{gain: func() float32 { return gain }}
		w.seq = newOfflineSequencer(seq, 48000)
		buf := make([]float32, 4800)
		w.Process(buf)
		return buf
	}
	full := render(1)
	half := render(0.5)
	nonZero := false
	for i := range full {
		if half[i] != full[i]*0.5 {
			t.Fatalf("sample %d: got %v, want %v", i, half[i], full[i]*0.5)
		}
		if full[i] != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Fatalf("expected audible output")
	}
}

func TestNewPlayerWave(t *testing.T) {
	for _, w := range []Wave{WaveSquare, WavePulse, WaveTriangle, WaveSine} {
		if _, err := NewPlayer(48000, WithWave(w)); err != nil {
			t.Fatalf("wave %s: %v", w, err)
		}
	}
	if _, err := NewPlayer(48000, WithWave("sawtooth")); err == nil {
		t.Fatalf("expected error for unsupported wave")
	}
}
