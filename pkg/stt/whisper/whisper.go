// Package whisper runs speech recognition through the whisper.cpp bindings.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	wcpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"vincent/pkg/audioconv"
	"vincent/pkg/stt"
)

// ModelDir is where bare model names such as "base" are looked up.
var ModelDir = "models"

type Transcriber struct {
	mu    sync.Mutex
	model wcpp.Model // interface, not pointer
	opt   stt.Options
}

// ResolveModel maps a model name to a ggml file. Existing paths are used as
// they are; "base" becomes models/ggml-base.bin.
func ResolveModel(name string) string {
	if name == "" {
		return ""
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	if strings.ContainsRune(name, os.PathSeparator) || strings.HasSuffix(name, ".bin") {
		return name
	}
	return filepath.Join(ModelDir, "ggml-"+name+".bin")
}

// New loads the model once; the transcriber is reused for every turn.
func New(model string, opt stt.Options) (*Transcriber, error) {
	path := ResolveModel(model)
	if path == "" {
		return nil, errors.New("empty model path")
	}
	m, err := wcpp.New(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	log.Debug("Loaded whisper model", "path", path)
	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// TranscribeFile decodes an audio file and returns its text and the
// detected language.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, string, error) {
	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", path, err)
	}
	if len(pcm) == 0 {
		return "", "", nil
	}

	res, err := t.TranscribePCM(ctx, pcm)
	if err != nil {
		return "", "", err
	}
	return res.Text, res.Language, nil
}

// pcm16k must be mono @ 16 kHz, float32 in [-1, 1]
func (t *Transcriber) TranscribePCM(ctx context.Context, pcm16k []float32) (stt.Result, error) {
	if t.model == nil {
		return stt.Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return stt.Result{}, errors.New("no audio samples provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("new context: %w", err)
	}

	lang := t.opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return stt.Result{}, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(t.opt.Task == stt.TaskTranslate)

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("process: %w", err)
	}

	var segs []stt.Segment
	for {
		select {
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		default:
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, stt.Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
	}

	detected := wctx.DetectedLanguage()
	if detected == "" && lang != "auto" {
		detected = lang
	}

	return stt.Result{
		Text:     stt.JoinSegments(segs),
		Segments: segs,
		Language: detected,
	}, nil
}
