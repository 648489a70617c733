package tune

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
)

const msPerMinute = 60000

// Builder compiles tune text into a tone sequence. Parameters set by one
// operand (tempo, percentage, octave, meter) carry over to the operands that
// follow until changed again. A Builder is not safe for concurrent use.
type Builder struct {
	cfg        BuilderConfig
	logger     *slog.Logger
	tempo      Parameter
	percentage Parameter
	octave     Parameter
	meter      Meter
	tones      []Tone
	source     Source
	status     Status
	ended      bool
}

func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.LowestNote <= 0 {
		cfg.LowestNote = LowestNote
	}
	if cfg.HighestNote <= 0 || cfg.HighestNote > HighestNote {
		cfg.HighestNote = HighestNote
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Builder{cfg: cfg, logger: cfg.Logger}
	b.initialize()
	return b
}

func (b *Builder) initialize() {
	b.tones = nil
	b.tempo = Parameter{Name: "tempo", Minimum: 40, Maximum: math.MaxUint8, Current: 108}
	b.percentage = Parameter{Name: "percentage", Minimum: 1, Maximum: 100, Current: 80}
	b.octave = Parameter{Name: "octave", Minimum: 0, Maximum: 9, Current: 4}
	b.meter.Denominator = Parameter{Name: "meter denominator", Minimum: 2, Maximum: 128, Current: 4}
	b.meter.Numerator = b.meter.Denominator
	b.meter.Numerator.Name = "meter numerator"
	b.source = Source{}
	b.status = StatusOK
	b.ended = false
}

// Reset drops the accumulated tones and restores every default.
func (b *Builder) Reset() { b.initialize() }

func (b *Builder) SetSource(name string) { b.source.Name = name }
func (b *Builder) SetLine(index int)     { b.source.Index = index }

func (b *Builder) Source() Source        { return b.source }
func (b *Builder) Status() Status        { return b.status }
func (b *Builder) Ended() bool           { return b.ended }
func (b *Builder) Tempo() Parameter      { return b.tempo }
func (b *Builder) Percentage() Parameter { return b.percentage }
func (b *Builder) Octave() Parameter     { return b.octave }
func (b *Builder) Meter() Meter          { return b.meter }

func (b *Builder) Tones() []Tone { return slices.Clone(b.tones) }

// Sequence returns the finished tune. It requires End to have been called.
func (b *Builder) Sequence() (*Sequence, error) {
	if b.status == StatusFatal {
		return nil, ErrFatal
	}
	if !b.ended {
		return nil, fmt.Errorf("tune %q has not been ended", b.source.Name)
	}
	return &Sequence{Name: b.source.Name, Tones: slices.Clone(b.tones)}, nil
}

func (b *Builder) checkWritable() error {
	if b.status == StatusFatal {
		return ErrFatal
	}
	if b.ended {
		return ErrEnded
	}
	return nil
}

func (b *Builder) syntaxError(message string) error {
	if b.status == StatusOK {
		b.status = StatusSyntax
	}
	b.logger.Error(message,
		slog.String("source", b.source.Name),
		slog.Int("line", b.source.Index),
		slog.String("token", b.source.Text))
	return &SyntaxError{
		Source:  b.source.Name,
		Line:    b.source.Index,
		Token:   b.source.Text,
		Message: message,
	}
}

// AddTone appends one tone, doubling the buffer when it is full.
func (b *Builder) AddTone(tone Tone) error {
	if b.status == StatusFatal {
		return ErrFatal
	}
	if len(b.tones) == cap(b.tones) {
		size := 1
		if c := cap(b.tones); c > 0 {
			size = c << 1
		}
		if limit := b.cfg.MaxTones; limit > 0 && size > limit {
			if cap(b.tones) >= limit {
				b.status = StatusFatal
				b.logger.Error("tone sequence growth failed",
					slog.String("source", b.source.Name),
					slog.Int("line", b.source.Index),
					slog.Int("capacity", cap(b.tones)))
				return fmt.Errorf("%w: tone buffer full at %d entries", ErrFatal, cap(b.tones))
			}
			size = limit
		}
		grown := make([]Tone, len(b.tones), size)
		copy(grown, b.tones)
		b.tones = grown
	}
	b.tones = append(b.tones, tone)
	return nil
}

// AddNote appends a tone for a note index (0 is silence). Zero durations
// are dropped.
func (b *Builder) AddNote(note int, duration int) error {
	if duration == 0 {
		return nil
	}
	return b.AddTone(Tone{Kind: TonePlay, Note: note, Frequency: NoteFrequency(note), Duration: duration})
}

// End appends the Stop marker. It must be called exactly once per tune.
func (b *Builder) End() error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	if err := b.AddTone(Tone{Kind: ToneStop}); err != nil {
		return err
	}
	b.ended = true
	return nil
}

// ParseLine compiles every whitespace-delimited operand of line, stopping at
// the first one that fails.
func (b *Builder) ParseLine(line string) error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	b.source.Text = line
	operands := strings.FieldsFunc(line, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) })
	for _, operand := range operands {
		if err := b.ParseOperand(operand); err != nil {
			return err
		}
	}
	return nil
}

type operandKind int

const (
	operandTone operandKind = iota
	operandMeter
	operandOctave
	operandPercentage
	operandTempo
)

func classifyOperand(operand string) operandKind {
	if operand == "" {
		return operandTone
	}
	switch operand[0] {
	case 'm':
		return operandMeter
	case 'o':
		return operandOctave
	case 'p':
		return operandPercentage
	case 't':
		return operandTempo
	default:
		return operandTone
	}
}

// ParseOperand compiles a single operand: a meter, octave, percentage or
// tempo setting, or a tone. A rejected operand leaves the settings and the
// tone sequence as they were.
func (b *Builder) ParseOperand(operand string) error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	b.source.Text = operand

	tempo, percentage, octave, meter := b.tempo, b.percentage, b.octave, b.meter
	restore := func() {
		b.tempo, b.percentage, b.octave, b.meter = tempo, percentage, octave, meter
	}

	var (
		next     int
		note     int
		duration int
		tone     bool
		err      error
	)
	switch classifyOperand(operand) {
	case operandMeter:
		next, err = b.parseMeter(operand, 1)
	case operandOctave:
		next, err = b.parseParameter(&b.octave, operand, 1, true)
	case operandPercentage:
		next, err = b.parseParameter(&b.percentage, operand, 1, true)
	case operandTempo:
		next, err = b.parseParameter(&b.tempo, operand, 1, true)
	case operandTone:
		note, duration, next, err = b.parseTone(operand, 0)
		tone = true
	}
	if err != nil {
		restore()
		return err
	}
	if next < len(operand) {
		restore()
		return b.syntaxError("extra data")
	}
	if tone {
		return b.addTone(note, duration)
	}
	return nil
}

// parseNumber reads the decimal run at s[at:]. When the run is absent and not
// required it reports found == false and consumes nothing.
func (b *Builder) parseNumber(s string, at int, required bool, minimum, maximum uint32, name string) (value uint32, next int, found bool, err error) {
	end := at
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end == at {
		if required {
			return 0, at, false, b.syntaxError("invalid " + name)
		}
		return 0, at, false, nil
	}
	v, perr := strconv.ParseUint(s[at:end], 10, 32)
	if perr != nil || uint32(v) < minimum || uint32(v) > maximum {
		return 0, at, false, b.syntaxError("invalid " + name)
	}
	return uint32(v), end, true, nil
}

func (b *Builder) parseParameter(p *Parameter, s string, at int, required bool) (int, error) {
	v, next, found, err := b.parseNumber(s, at, required, p.Minimum, p.Maximum, p.Name)
	if err != nil {
		return at, err
	}
	if found {
		p.Current = v
	}
	return next, nil
}

func (b *Builder) parseMeter(s string, at int) (int, error) {
	next, err := b.parseParameter(&b.meter.Numerator, s, at, true)
	if err != nil {
		return next, err
	}
	if next >= len(s) || s[next] != '/' {
		return next, b.syntaxError("missing meter delimiter")
	}
	return b.parseParameter(&b.meter.Denominator, s, next+1, true)
}

// parseTone resolves the note and duration of a tone operand without
// emitting anything.
func (b *Builder) parseTone(s string, at int) (note, duration, next int, err error) {
	note, next, err = b.parseNote(s, at)
	if err != nil {
		return 0, 0, next, err
	}
	duration, next, err = b.parseDuration(s, next)
	if err != nil {
		return 0, 0, next, err
	}
	return note, duration, next, nil
}

// addTone emits a note for its percentage of duration followed by the
// remaining silence.
func (b *Builder) addTone(note, duration int) error {
	if note != 0 {
		on := duration * int(b.percentage.Current) / 100
		if err := b.AddNote(note, on); err != nil {
			return err
		}
		duration -= on
	}
	return b.AddNote(0, duration)
}

// parseNote resolves a rest, a letter note or a numeric note index. A letter
// note's explicit octave becomes the carried octave for later notes once the
// note is accepted.
func (b *Builder) parseNote(s string, at int) (int, int, error) {
	if at < len(s) && s[at] == 'r' {
		return 0, at + 1, nil
	}

	var note int
	octave := b.octave
	if at < len(s) && isNoteLetter(s[at]) {
		note = NotesPerOctave + noteOffsets[s[at]]
		at = applyAccidentals(s, at+1, &note)

		next, err := b.parseParameter(&octave, s, at, false)
		if err != nil {
			return note, next, err
		}
		note += int(octave.Current) * NotesPerOctave
		at = next
	} else {
		v, next, _, err := b.parseNumber(s, at, true, uint32(b.cfg.LowestNote), uint32(b.cfg.HighestNote), "note")
		if err != nil {
			return 0, next, err
		}
		note = int(v)
		at = applyAccidentals(s, next, &note)
	}

	if note < b.cfg.LowestNote {
		return 0, at, b.syntaxError("note too low")
	}
	if note > b.cfg.HighestNote {
		return 0, at, b.syntaxError("note too high")
	}
	b.octave.Current = octave.Current
	return note, at, nil
}

// applyAccidentals consumes a run of identical '+' or '-' characters,
// raising or lowering note by one semitone per character.
func applyAccidentals(s string, at int, note *int) int {
	if at >= len(s) {
		return at
	}
	accidental := s[at]
	var increment int
	switch accidental {
	case '+':
		increment = 1
	case '-':
		increment = -1
	default:
		return at
	}
	for at < len(s) && s[at] == accidental {
		*note += increment
		at++
	}
	return at
}

func (b *Builder) parseDuration(s string, at int) (int, int, error) {
	var duration int
	if at < len(s) && s[at] == '@' {
		v, next, _, err := b.parseNumber(s, at+1, true, 1, math.MaxInt32, "absolute duration")
		if err != nil {
			return 0, next, err
		}
		duration = int(v)
		at = next
	} else {
		multiplier := uint32(1)
		divisor := b.meter.Denominator.Current
		if at < len(s) && s[at] == '*' {
			v, next, _, err := b.parseNumber(s, at+1, true, 1, 16, "multiplier")
			if err != nil {
				return 0, next, err
			}
			multiplier = v
			at = next
		}
		if at < len(s) && s[at] == '/' {
			v, next, _, err := b.parseNumber(s, at+1, true, 1, 128, "divisor")
			if err != nil {
				return 0, next, err
			}
			divisor = v
			at = next
		}
		duration = b.noteDuration(multiplier, divisor)
	}

	increment := duration
	for at < len(s) && s[at] == '.' {
		increment /= 2
		duration += increment
		at++
	}
	return duration, at, nil
}

// noteDuration is the length in milliseconds of multiplier/divisor notes,
// where a divisor equal to the meter denominator is one beat.
func (b *Builder) noteDuration(multiplier, divisor uint32) int {
	beats := uint64(b.meter.Denominator.Current) * uint64(multiplier)
	return int(msPerMinute * beats / (uint64(b.tempo.Current) * uint64(divisor)))
}
