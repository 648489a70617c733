// Package midi exports compiled tunes as Standard MIDI Files.
package midi

import (
	"errors"
	"fmt"
	"io"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/tunes-go/internal/tune"
)

// At 60 BPM with 1000 ticks per quarter note one tick is one millisecond, so
// tone durations map onto delta times unchanged.
const (
	ticksPerQuarter = 1000
	exportBPM       = 60
)

type Options struct {
	Channel  uint8
	Program  uint8
	Velocity uint8
}

func DefaultOptions() Options {
	return Options{Channel: 0, Program: 80, Velocity: 100} // GM square lead
}

// Encode converts a finished tone sequence into a single-track SMF.
func Encode(seq *tune.Sequence, opts Options) (*smf.SMF, error) {
	if seq == nil {
		return nil, errors.New("nil tune sequence")
	}
	if opts.Channel > 15 {
		return nil, fmt.Errorf("midi channel %d out of range", opts.Channel)
	}
	if opts.Velocity == 0 || opts.Velocity > 127 {
		opts.Velocity = DefaultOptions().Velocity
	}

	var track smf.Track
	if seq.Name != "" {
		track.Add(0, smf.MetaTrackSequenceName(seq.Name))
	}
	track.Add(0, smf.MetaTempo(exportBPM))
	track.Add(0, gomidi.ProgramChange(opts.Channel, opts.Program&0x7F))

	var delta uint32
	for _, t := range seq.Tones {
		if t.Kind == tune.ToneStop {
			break
		}
		if t.Note == 0 {
			delta += uint32(t.Duration)
			continue
		}
		key := uint8(t.Note)
		track.Add(delta, gomidi.NoteOn(opts.Channel, key, opts.Velocity))
		track.Add(uint32(t.Duration), gomidi.NoteOff(opts.Channel, key))
		delta = 0
	}
	track.Close(delta)

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := sm.Add(track); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	return sm, nil
}

// Write encodes seq and writes the SMF to w.
func Write(w io.Writer, seq *tune.Sequence, opts Options) error {
	sm, err := Encode(seq, opts)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}
