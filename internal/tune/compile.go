package tune

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// CompileLines builds a whole tune, numbering lines from 1. It stops at the
// first line that fails.
func CompileLines(cfg BuilderConfig, name string, lines []string) (*Sequence, error) {
	b := NewBuilder(cfg)
	b.SetSource(name)
	for i, line := range lines {
		b.SetLine(i + 1)
		if err := b.ParseLine(line); err != nil {
			return nil, err
		}
	}
	if err := b.End(); err != nil {
		return nil, err
	}
	return b.Sequence()
}

func CompileString(cfg BuilderConfig, name string, text string) (*Sequence, error) {
	return CompileLines(cfg, name, strings.Split(text, "\n"))
}

func CompileReader(cfg BuilderConfig, name string, r io.Reader) (*Sequence, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tune %s: %w", name, err)
	}
	return CompileLines(cfg, name, lines)
}
