package tune

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type ToneKind int

const (
	ToneStop ToneKind = iota
	TonePlay
)

func (k ToneKind) String() string {
	switch k {
	case TonePlay:
		return "play"
	case ToneStop:
		return "stop"
	default:
		return fmt.Sprintf("ToneKind(%d)", int(k))
	}
}

// Tone is one entry of a compiled tune. A Play tone with Note 0 is silence.
type Tone struct {
	Kind      ToneKind
	Note      int
	Frequency float64
	Duration  int // milliseconds
}

func (t Tone) Silent() bool { return t.Kind == TonePlay && t.Note == 0 }

type Status int

const (
	StatusOK Status = iota
	StatusSyntax
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSyntax:
		return "syntax"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Parameter is a named setting whose current value carries across operands.
type Parameter struct {
	Name    string
	Minimum uint32
	Maximum uint32
	Current uint32
}

type Meter struct {
	Numerator   Parameter
	Denominator Parameter
}

// Source identifies the text being compiled, for diagnostics only.
type Source struct {
	Name  string
	Index int
	Text  string
}

var (
	ErrSyntax = errors.New("tune syntax error")
	ErrFatal  = errors.New("tune build failed")
	ErrEnded  = errors.New("tune already ended")
)

type SyntaxError struct {
	Source  string
	Line    int
	Token   string
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s[%d]: %s: %s", e.Source, e.Line, e.Message, e.Token)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// Sequence is a finished tune: its last tone is the Stop marker.
type Sequence struct {
	Name  string
	Tones []Tone
}

// Duration is the total playing time up to the Stop marker.
func (s *Sequence) Duration() time.Duration {
	total := 0
	for _, t := range s.Tones {
		if t.Kind == ToneStop {
			break
		}
		total += t.Duration
	}
	return time.Duration(total) * time.Millisecond
}

// Audible returns the number of tones that produce sound.
func (s *Sequence) Audible() int {
	n := 0
	for _, t := range s.Tones {
		if t.Kind == TonePlay && t.Note != 0 {
			n++
		}
	}
	return n
}

type BuilderConfig struct {
	LowestNote  int
	HighestNote int
	// MaxTones caps the tone buffer; growing past it is a fatal build error.
	// Zero means unlimited.
	MaxTones int
	Logger   *slog.Logger
}

func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		LowestNote:  LowestNote,
		HighestNote: HighestNote,
	}
}
