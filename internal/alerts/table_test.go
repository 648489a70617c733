package alerts

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/tunes-go/internal/tune"
)

func quietConfig() tune.BuilderConfig {
	cfg := tune.DefaultBuilderConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func TestDefaultTableCompiles(t *testing.T) {
	table := Default()
	assert.Equal(t, "default", table.Name)
	require.NotEmpty(t, table.Names())

	tunes, err := table.Compile(quietConfig())
	require.NoError(t, err)
	assert.Len(t, tunes, len(table.Tunes))
	for name, seq := range tunes {
		assert.Equal(t, "default:"+name, seq.Name)
		assert.Positive(t, seq.Audible(), name)
		assert.Equal(t, tune.ToneStop, seq.Tones[len(seq.Tones)-1].Kind, name)
	}
}

func TestLoadAcceptsStringAndList(t *testing.T) {
	src := `
name: custom
tunes:
  single: t120 c d
  multi: |
    t120 c
    d
  list:
    - t120
    - c d
`
	table, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "multi", "single"}, table.Names())
	assert.Equal(t, Lines{"t120 c d"}, table.Tunes["single"])
	assert.Equal(t, Lines{"t120 c", "d"}, table.Tunes["multi"])
	assert.Equal(t, Lines{"t120", "c d"}, table.Tunes["list"])

	for _, name := range table.Names() {
		seq, err := table.Tune(quietConfig(), name)
		require.NoError(t, err, name)
		assert.Equal(t, 2, seq.Audible(), name)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("tunez:\n  a: c\n"))
	assert.Error(t, err)
}

func TestLoadRejectsBadTuneShape(t *testing.T) {
	_, err := Load(strings.NewReader("tunes:\n  a:\n    b: c\n"))
	assert.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	table, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, table.Names())
}

func TestUnknownAlert(t *testing.T) {
	_, err := Default().Tune(quietConfig(), "no-such-alert")
	assert.ErrorIs(t, err, ErrUnknownAlert)
}

func TestCompileReportsEveryBadTune(t *testing.T) {
	src := `
name: broken
tunes:
  good: c
  bad-note: c zz
  bad-tempo: |
    c
    t999
`
	table, err := Load(strings.NewReader(src))
	require.NoError(t, err)

	tunes, err := table.Compile(quietConfig())
	require.Error(t, err)
	assert.Len(t, tunes, 1)
	assert.Contains(t, tunes, "good")
	assert.ErrorIs(t, err, tune.ErrSyntax)

	msg := err.Error()
	assert.Contains(t, msg, "broken:bad-note[1]: invalid note: zz")
	assert.Contains(t, msg, "broken:bad-tempo[2]: invalid tempo: t999")

	var se *tune.SyntaxError
	require.True(t, errors.As(err, &se))
}

func TestLoadFileAndMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "alerts.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	table, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Tunes, table.Tunes)

	noName := filepath.Join(t.TempDir(), "anon.yaml")
	require.NoError(t, os.WriteFile(noName, bytes.TrimSpace([]byte("tunes:\n  a: c\n")), 0o644))
	table, err = LoadFile(noName)
	require.NoError(t, err)
	assert.Equal(t, noName, table.Name)
}
