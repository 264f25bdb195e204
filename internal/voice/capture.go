// Package voice captures one spoken turn: record until Enter, transcribe,
// optionally keep the recording.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"strings"
	"time"
)

var ErrNoAudio = errors.New("no audio captured from microphone")

// Recorder writes microphone audio to path until stop is closed or ctx is
// done. status receives device warnings such as input overflow.
type Recorder interface {
	RecordWAV(ctx context.Context, path string, sampleRate, channels int, stop <-chan struct{}, status func(string)) error
}

type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (text, language string, err error)
}

type Turn struct {
	Text     string
	Language string
}

type Capturer struct {
	Recorder    Recorder
	Transcriber Transcriber

	SampleRate int
	Channels   int
	KeepAudio  bool
	// KeptDir defaults to KeptInputDir.
	KeptDir string

	// Stdin is where Enter is read from.
	Stdin io.Reader
	// Remote, when set, also ends a recording (control socket "stop").
	Remote <-chan struct{}
	Status func(format string, args ...any)

	pending <-chan struct{}
}

// Capture records and transcribes one turn. session only names the
// directory of kept recordings. On any failure a kept recording is deleted
// before the error is returned.
func (c *Capturer) Capture(ctx context.Context, session string) (Turn, error) {
	path, cleanup, err := TurnPath(c.KeepAudio, session, c.KeptDir)
	if err != nil {
		return Turn{}, err
	}
	defer cleanup()

	turn, err := c.record(ctx, path)
	if err != nil {
		if c.KeepAudio {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Warn("Failed to remove recording", "path", path, "err", rmErr)
			}
		}
		return Turn{}, err
	}

	if c.KeepAudio {
		c.status("Saved recording: %s", path)
	}
	return turn, nil
}

func (c *Capturer) record(ctx context.Context, path string) (Turn, error) {
	c.status("Recording... press Enter to stop this turn.")

	done := make(chan struct{})
	defer close(done)
	stop := c.stopSignal(done)

	start := time.Now()
	err := c.Recorder.RecordWAV(ctx, path, c.SampleRate, c.Channels, stop, func(msg string) {
		c.status("%s", msg)
	})
	if err != nil {
		return Turn{}, err
	}
	log.Debug("Recorded turn", "path", path, "took", time.Since(start))

	c.status("Transcribing...")
	text, lang, err := c.Transcriber.TranscribeFile(ctx, path)
	if err != nil {
		return Turn{}, fmt.Errorf("transcribe: %w", err)
	}
	return Turn{Text: strings.TrimSpace(text), Language: lang}, nil
}

// stopSignal closes when Enter is pressed or a remote stop arrives. A turn
// that ended without Enter leaves its line reader running; the next turn
// reuses it so only one goroutine ever reads the terminal.
func (c *Capturer) stopSignal(done <-chan struct{}) <-chan struct{} {
	enter := c.pending
	if enter != nil {
		select {
		case <-enter:
			enter = nil
		default:
		}
	}
	if enter == nil {
		stdin := c.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		enter = WaitForEnter(stdin)
	}
	c.pending = enter

	if c.Remote == nil {
		return enter
	}

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		select {
		case <-enter:
		case <-c.Remote:
		case <-done:
		}
	}()
	return stop
}

func (c *Capturer) status(format string, args ...any) {
	if c.Status != nil {
		c.Status(format, args...)
	}
}
