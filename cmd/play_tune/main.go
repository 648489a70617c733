package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	tunes "github.com/cbegin/tunes-go"
	"github.com/cbegin/tunes-go/internal/alerts"
	"github.com/cbegin/tunes-go/internal/metrics"
	intmidi "github.com/cbegin/tunes-go/internal/midi"
	"github.com/cbegin/tunes-go/internal/tune"
)

const defaultTune = "t120 c4/8 e4/8 g4/8 c5/4"

type options struct {
	sampleRate int
	wave       string
	loop       bool
	loops      int
	tunePath   string
	tuneInline string
	alertsPath string
	alert      string
	list       bool
	wavPath    string
	midiPath   string
	lowest     int
	highest    int
	volume     float64
	transpose  int
	verbose    bool
}

func main() {
	var opts options
	flag.IntVar(&opts.sampleRate, "sample-rate", 48000, "output sample rate")
	flag.StringVar(&opts.wave, "wave", "square", "oscillator: square|pulse|triangle|sine")
	flag.BoolVar(&opts.loop, "loop", false, "loop playback; use with -loops to count then stop")
	flag.IntVar(&opts.loops, "loops", 3, "when -loop, stop after N loops (0 = loop forever)")
	flag.StringVar(&opts.tunePath, "file", "", "path to a tune file")
	flag.StringVar(&opts.tuneInline, "tune", "", "inline tune text")
	flag.StringVar(&opts.alertsPath, "alerts", "", "path to an alert table (default: built-in)")
	flag.StringVar(&opts.alert, "alert", "", "play the tune for this alert")
	flag.BoolVar(&opts.list, "list", false, "list the alerts in the table and exit")
	flag.StringVar(&opts.wavPath, "wav", "", "render the tune to this WAV file instead of playing it")
	flag.StringVar(&opts.midiPath, "midi", "", "export the tune to this MIDI file instead of playing it")
	flag.IntVar(&opts.lowest, "lowest", tune.LowestNote, "lowest playable MIDI note")
	flag.IntVar(&opts.highest, "highest", tune.HighestNote, "highest playable MIDI note")
	flag.Float64Var(&opts.volume, "volume", 1.0, "master volume scalar")
	flag.IntVar(&opts.transpose, "transpose", 0, "semitone shift applied at playback")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Parse()

	dsn := os.Getenv("SENTRY_DSN")
	if dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		}); err != nil {
			log.Printf("sentry init: %v", err)
			dsn = ""
		}
	}

	err := run(context.Background(), opts, metrics.NewSentryMetrics(dsn != ""))
	if dsn != "" {
		sentry.Flush(2 * time.Second)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options, m *metrics.SentryMetrics) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := tune.DefaultBuilderConfig()
	cfg.LowestNote = opts.lowest
	cfg.HighestNote = opts.highest
	cfg.Logger = logger

	if opts.list {
		table, err := loadTable(opts.alertsPath)
		if err != nil {
			return err
		}
		for _, name := range table.Names() {
			fmt.Println(name)
		}
		return nil
	}

	start := time.Now()
	name, seq, err := resolveTune(cfg, opts)
	m.RecordCompile(ctx, name, seq, time.Since(start), err)
	if err != nil {
		return err
	}
	logger.Debug("compiled tune", "tune", seq.Name, "tones", len(seq.Tones), "length", seq.Duration())

	exported := false
	if opts.wavPath != "" {
		if err := writeWAV(opts.wavPath, seq, opts.sampleRate); err != nil {
			return err
		}
		exported = true
	}
	if opts.midiPath != "" {
		if err := writeMIDI(opts.midiPath, seq); err != nil {
			return err
		}
		exported = true
	}
	if exported {
		return nil
	}

	start = time.Now()
	if err := play(seq, opts, cfg); err != nil {
		return err
	}
	m.RecordPlayback(ctx, seq.Name, time.Since(start))
	return nil
}

func loadTable(path string) (*alerts.Table, error) {
	if strings.TrimSpace(path) == "" {
		return alerts.Default(), nil
	}
	return alerts.LoadFile(path)
}

func resolveTune(cfg tune.BuilderConfig, opts options) (string, *tune.Sequence, error) {
	if opts.alert != "" {
		table, err := loadTable(opts.alertsPath)
		if err != nil {
			return opts.alert, nil, err
		}
		seq, err := table.Tune(cfg, opts.alert)
		return opts.alert, seq, err
	}
	if strings.TrimSpace(opts.tuneInline) != "" {
		seq, err := tune.CompileString(cfg, "inline", opts.tuneInline)
		return "inline", seq, err
	}
	if strings.TrimSpace(opts.tunePath) != "" {
		f, err := os.Open(opts.tunePath)
		if err != nil {
			return opts.tunePath, nil, err
		}
		defer f.Close()
		seq, err := tune.CompileReader(cfg, opts.tunePath, f)
		return opts.tunePath, seq, err
	}
	seq, err := tune.CompileString(cfg, "default", defaultTune)
	return "default", seq, err
}

func writeWAV(path string, seq *tune.Sequence, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	samples := tunes.RenderTune(seq, sampleRate)
	if err := tunes.EncodeWAV(f, samples, sampleRate, 2); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	peak, rms := tunes.Level(samples)
	fmt.Printf("wrote %s (%s, peak %.3f, rms %.3f)\n", path, seq.Duration(), peak, rms)
	return f.Close()
}

func writeMIDI(path string, seq *tune.Sequence) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := intmidi.Write(f, seq, intmidi.DefaultOptions()); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Printf("wrote %s\n", path)
	return f.Close()
}

func play(seq *tune.Sequence, opts options, cfg tune.BuilderConfig) error {
	if seq.Audible() == 0 {
		return errors.New("tune has no audible tones")
	}
	pl, err := tunes.NewPlayer(opts.sampleRate,
		tunes.WithWave(tunes.Wave(strings.ToLower(strings.TrimSpace(opts.wave)))),
		tunes.WithLoopPlayback(opts.loop),
		tunes.WithNoteRange(cfg.LowestNote, cfg.HighestNote),
		tunes.WithLogger(cfg.Logger),
	)
	if err != nil {
		return err
	}
	pl.SetMasterVolume(opts.volume)
	pl.SetTranspose(opts.transpose)
	ch := pl.Watch()
	if err := pl.Play(seq); err != nil {
		return err
	}
	loopCount := 0
	for event := range ch {
		switch event.Kind {
		case tunes.EventPlaybackEnded:
			fmt.Println("playback completed")
			pl.Wait()
			return nil
		case tunes.EventLoopCompleted:
			loopCount++
			fmt.Printf("loop %d completed\n", loopCount)
			if opts.loop && opts.loops > 0 && loopCount >= opts.loops {
				if err := pl.Stop(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
