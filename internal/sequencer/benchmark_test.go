package sequencer

import (
	"testing"

	"github.com/cbegin/tunes-go/internal/chiptune"
	"github.com/cbegin/tunes-go/internal/tune"
)

func BenchmarkSequencerProcess(b *testing.B) {
	seq, err := tune.CompileString(tune.DefaultBuilderConfig(), "bench", "t150 o5 c/16 d/16 e/16 f/16 g/16 a/16 b/16 c6/16")
	if err != nil {
		b.Fatalf("compile failed: %v", err)
	}
	buf := make([]float32, 2048*2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine := chiptune.New(48000, chiptune.DefaultParams())
		s := New(seq.Tones, engine, 48000)
		s.Process(buf)
	}
}
