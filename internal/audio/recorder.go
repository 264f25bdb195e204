package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"vincent/internal/voice"
	"vincent/pkg/audioconv"
)

const (
	framesPerBuffer = 1024
	pollInterval    = 100 * time.Millisecond
)

type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordWAV captures from the default input device until stop is closed or
// ctx is done, then writes everything as 16-bit PCM WAV.
func (r *Recorder) RecordWAV(ctx context.Context, path string, sampleRate, channels int, stop <-chan struct{}, status func(string)) error {
	var (
		mu     sync.Mutex
		chunks [][]float32
		total  int
	)

	callback := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		buf := make([]float32, len(in))
		copy(buf, in)

		mu.Lock()
		chunks = append(chunks, buf)
		total += len(buf)
		mu.Unlock()

		if flags&portaudio.InputOverflow != 0 && status != nil {
			status("input overflow")
		}
	}

	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), framesPerBuffer, callback)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			stream.Abort()
			return ctx.Err()
		case <-stop:
			break wait
		case <-ticker.C:
		}
	}

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("stop input stream: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if total == 0 {
		return voice.ErrNoAudio
	}

	samples := make([]float32, 0, total)
	for _, c := range chunks {
		samples = append(samples, c...)
	}
	log.Debug("Captured audio", "samples", len(samples), "rms", frameRMS(samples))

	return audioconv.WriteWAV(path, samples, sampleRate, channels)
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
