package tunes

import (
	"errors"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/viterin/vek/vek32"

	intchip "github.com/cbegin/tunes-go/internal/chiptune"
	intseq "github.com/cbegin/tunes-go/internal/sequencer"
	"github.com/cbegin/tunes-go/internal/tune"
)

func newOfflineSequencer(seq *tune.Sequence, sampleRate int) *intseq.Sequencer {
	engine := intchip.New(sampleRate, intchip.DefaultParams())
	return intseq.New(seq.Tones, engine, sampleRate)
}

// RenderSamples renders the first seconds of a tune as interleaved stereo.
func RenderSamples(seq *tune.Sequence, sampleRate int, seconds float64) []float32 {
	s := newOfflineSequencer(seq, sampleRate)
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	s.Process(out)
	return out
}

// RenderTune renders a whole tune, release tail included.
func RenderTune(seq *tune.Sequence, sampleRate int) []float32 {
	s := newOfflineSequencer(seq, sampleRate)
	chunk := make([]float32, 1024*2)
	out := make([]float32, 0, int(s.TotalFrames())*2+len(chunk))
	for !s.Ended() {
		s.Process(chunk)
		out = append(out, chunk...)
	}
	return out
}

// EncodeWAV writes interleaved float samples as 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int, channels int) error {
	if channels <= 0 {
		return errors.New("channels must be positive")
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(float64(clampSample(s)) * math.MaxInt16))
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// Level returns the peak and RMS amplitude of a sample buffer.
func Level(samples []float32) (peak float32, rms float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	peak = vek32.Max(samples)
	if low := -vek32.Min(samples); low > peak {
		peak = low
	}
	rms = float32(math.Sqrt(float64(vek32.Dot(samples, samples)) / float64(len(samples))))
	return peak, rms
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
