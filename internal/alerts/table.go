// Package alerts maps status events to the tunes played for them.
package alerts

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/tunes-go/internal/tune"
)

//go:embed default.yaml
var defaultTable []byte

var ErrUnknownAlert = errors.New("unknown alert")

// Lines is the source of one tune. In YAML it is either a list of lines or a
// single (possibly multi-line) string.
type Lines []string

func (l *Lines) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = strings.Split(strings.TrimRight(value.Value, "\n"), "\n")
		return nil
	case yaml.SequenceNode:
		var lines []string
		if err := value.Decode(&lines); err != nil {
			return err
		}
		*l = lines
		return nil
	default:
		return fmt.Errorf("line %d: tune must be a string or a list of strings", value.Line)
	}
}

type Table struct {
	Name  string           `yaml:"name"`
	Tunes map[string]Lines `yaml:"tunes"`
}

func Load(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var t Table
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{Tunes: map[string]Lines{}}, nil
		}
		return nil, fmt.Errorf("decode alert table: %w", err)
	}
	if t.Tunes == nil {
		t.Tunes = map[string]Lines{}
	}
	return &t, nil
}

func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" {
		t.Name = path
	}
	return t, nil
}

// Default returns the built-in alert table.
func Default() *Table {
	t, err := Load(strings.NewReader(string(defaultTable)))
	if err != nil {
		panic(fmt.Sprintf("built-in alert table: %v", err))
	}
	return t
}

func (t *Table) Names() []string {
	names := make([]string, 0, len(t.Tunes))
	for name := range t.Tunes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (t *Table) sourceName(alert string) string {
	if t.Name == "" {
		return alert
	}
	return t.Name + ":" + alert
}

// Tune compiles the tune for one alert.
func (t *Table) Tune(cfg tune.BuilderConfig, alert string) (*tune.Sequence, error) {
	lines, ok := t.Tunes[alert]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlert, alert)
	}
	return tune.CompileLines(cfg, t.sourceName(alert), lines)
}

// Compile builds every tune in the table. Tunes that fail are left out of
// the result and their errors joined.
func (t *Table) Compile(cfg tune.BuilderConfig) (map[string]*tune.Sequence, error) {
	out := make(map[string]*tune.Sequence, len(t.Tunes))
	var errs []error
	for _, name := range t.Names() {
		seq, err := t.Tune(cfg, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[name] = seq
	}
	return out, errors.Join(errs...)
}

func (t *Table) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}
