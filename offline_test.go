package tunes

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestRenderTuneLength(t *testing.T) {
	seq, err := Compile("phrase", "t120 c/8 d/8 e/8 r/8")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	samples := RenderTune(seq, 48000)
	want := 48000 // one second of tones
	if frames := len(samples) / 2; frames < want {
		t.Fatalf("expected at least %d frames, got %d", want, frames)
	}
	peak, rms := Level(samples)
	if peak <= 0 || rms <= 0 {
		t.Fatalf("expected audible output, got peak=%v rms=%v", peak, rms)
	}
	if peak > 1 {
		t.Fatalf("peak %v exceeds full scale", peak)
	}
	tail := samples[len(samples)-2*1024:]
	if p, _ := Level(tail); p > 0.01 {
		t.Fatalf("expected silence at the end of the tune, got peak %v", p)
	}
}

func TestRenderSamplesRestIsSilent(t *testing.T) {
	seq, err := Compile("rest", "r@500")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	samples := RenderSamples(seq, 48000, 0.25)
	if len(samples) != 48000/4*2 {
		t.Fatalf("unexpected sample count %d", len(samples))
	}
	if peak, _ := Level(samples); peak != 0 {
		t.Fatalf("expected silence, got peak %v", peak)
	}
}

func TestLevel(t *testing.T) {
	peak, rms := Level([]float32{0.5, -1, 0.5, 0})
	if peak != 1 {
		t.Fatalf("peak = %v, want 1", peak)
	}
	if want := math.Sqrt(1.5 / 4); math.Abs(float64(rms)-want) > 1e-6 {
		t.Fatalf("rms = %v, want %v", rms, want)
	}
	if p, r := Level(nil); p != 0 || r != 0 {
		t.Fatalf("expected zero level for empty buffer")
	}
}

func TestEncodeWAV(t *testing.T) {
	seq, err := Compile("wav", "t120 a4/4")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	samples := RenderSamples(seq, 22050, 0.5)
	path := filepath.Join(t.TempDir(), "tune.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := EncodeWAV(f, samples, 22050, 2); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	in, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer in.Close()
	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		t.Fatalf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 22050 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format %d Hz, %d channels, %d bits", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}
}

func TestEncodeWAVRejectsNoChannels(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := EncodeWAV(f, nil, 48000, 0); err == nil {
		t.Fatalf("expected error for zero channels")
	}
}
