package tune

import "math"

const (
	NotesPerOctave = 12
	LowestNote     = 1
	HighestNote    = 127
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// NoteFrequency returns the equal-tempered frequency of a note index, where
// 69 is A4 at 440 Hz. Note 0 is silence.
func NoteFrequency(note int) float64 {
	if note <= 0 {
		return 0
	}
	return 440 * math.Pow(2, float64(note-69)/NotesPerOctave)
}

func isNoteLetter(b byte) bool { _, ok := noteOffsets[b]; return ok }
func isDigit(b byte) bool      { return b >= '0' && b <= '9' }
func isSpace(b byte) bool      { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }
