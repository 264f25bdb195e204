package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"vincent/pkg/audioconv"
)

func wavBytes(t *testing.T, n, rate int) []byte {
	t.Helper()
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.25
	}
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audioconv.WriteWAV(path, samples, rate, 1); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

type fakeServer struct {
	mu       sync.Mutex
	requests []map[string]any
	voices   []string
	audio    []byte
	fail     bool
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/audio/voices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"voices": f.voices})
	})
	mux.HandleFunc("POST /v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.requests = append(f.requests, body)
		f.mu.Unlock()

		if f.fail {
			http.Error(w, `{"error":{"message":"bad voice"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(f.audio)
	})
	return mux
}

func newTestKokoro(t *testing.T, fs *fakeServer, voice string) *Kokoro {
	t.Helper()
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	return NewKokoro(Config{
		BaseURL:  srv.URL + "/v1",
		APIKey:   "not-needed",
		Voice:    voice,
		LangCode: "b",
		Speed:    1.2,
	})
}

type fakePlayer struct {
	clips []audioconv.PCM
	err   error
}

func (p *fakePlayer) Play(_ context.Context, pcm audioconv.PCM) error {
	p.clips = append(p.clips, pcm)
	return p.err
}

type fakeDucker struct{ calls int }

func (d *fakeDucker) While(_ context.Context, fn func() error) error {
	d.calls++
	return fn()
}

func TestVoices(t *testing.T) {
	fs := &fakeServer{voices: []string{"bf_emma", "af_heart", "am_adam"}}
	k := newTestKokoro(t, fs, "af_heart")

	got, err := k.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	want := []string{"af_heart", "am_adam", "bf_emma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Voices() = %v, want %v", got, want)
	}
}

func TestSpeak(t *testing.T) {
	fs := &fakeServer{voices: []string{"af_heart"}, audio: wavBytes(t, 2400, 24000)}
	k := newTestKokoro(t, fs, "af_heart")
	player := &fakePlayer{}
	ducker := &fakeDucker{}

	s, err := NewSpeaker(context.Background(), k, player, WithDucker(ducker))
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}

	if err := s.Speak(context.Background(), "First line.\n\n\nSecond line.\n"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if len(fs.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(fs.requests))
	}
	req := fs.requests[0]
	if req["input"] != "First line." || req["voice"] != "af_heart" || req["lang_code"] != "b" {
		t.Fatalf("request = %v", req)
	}
	if req["speed"] != 1.2 || req["response_format"] != "wav" || req["model"] != "kokoro" {
		t.Fatalf("request = %v", req)
	}
	if fs.requests[1]["input"] != "Second line." {
		t.Fatalf("second input = %v", fs.requests[1]["input"])
	}

	if len(player.clips) != 1 {
		t.Fatalf("played %d clips, want 1 joined clip", len(player.clips))
	}
	if c := player.clips[0]; c.Rate != 24000 || len(c.Samples) != 4800 {
		t.Fatalf("clip = rate %d, %d samples", c.Rate, len(c.Samples))
	}
	if ducker.calls != 1 {
		t.Fatalf("ducker calls = %d", ducker.calls)
	}
}

func TestSpeakBlankIsNoop(t *testing.T) {
	fs := &fakeServer{voices: []string{"af_heart"}, audio: wavBytes(t, 10, 24000)}
	k := newTestKokoro(t, fs, "af_heart")
	player := &fakePlayer{}

	s, err := NewSpeaker(context.Background(), k, player)
	if err != nil {
		t.Fatalf("NewSpeaker: %v", err)
	}
	if err := s.Speak(context.Background(), "\n \n"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(fs.requests) != 0 || len(player.clips) != 0 {
		t.Fatalf("requests=%d clips=%d", len(fs.requests), len(player.clips))
	}
}

func TestSpeakErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		fs := &fakeServer{voices: []string{"af_heart"}, fail: true}
		s, err := NewSpeaker(context.Background(), newTestKokoro(t, fs, "af_heart"), &fakePlayer{})
		if err != nil {
			t.Fatalf("NewSpeaker: %v", err)
		}
		if err := s.Speak(context.Background(), "hello"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("player interrupted", func(t *testing.T) {
		fs := &fakeServer{voices: []string{"af_heart"}, audio: wavBytes(t, 100, 24000)}
		player := &fakePlayer{err: context.Canceled}
		s, err := NewSpeaker(context.Background(), newTestKokoro(t, fs, "af_heart"), player)
		if err != nil {
			t.Fatalf("NewSpeaker: %v", err)
		}
		if err := s.Speak(context.Background(), "hello"); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}

func TestNewSpeakerInitFailures(t *testing.T) {
	t.Run("unknown voice", func(t *testing.T) {
		fs := &fakeServer{voices: []string{"af_heart"}}
		_, err := NewSpeaker(context.Background(), newTestKokoro(t, fs, "zz_nobody"), &fakePlayer{})
		if !errors.Is(err, ErrInitializationFailed) {
			t.Fatalf("err = %v, want ErrInitializationFailed", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		k := NewKokoro(Config{BaseURL: url + "/v1", APIKey: "x", Voice: "af_heart", LangCode: "a"})
		_, err := NewSpeaker(context.Background(), k, &fakePlayer{})
		if !errors.Is(err, ErrInitializationFailed) {
			t.Fatalf("err = %v, want ErrInitializationFailed", err)
		}
	})

	t.Run("unknown lang code", func(t *testing.T) {
		fs := &fakeServer{voices: []string{"af_heart"}}
		k := newTestKokoro(t, fs, "af_heart")
		k.cfg.LangCode = "q"
		_, err := NewSpeaker(context.Background(), k, &fakePlayer{})
		if !errors.Is(err, ErrInitializationFailed) {
			t.Fatalf("err = %v, want ErrInitializationFailed", err)
		}
	})
}

func TestCheckVoice(t *testing.T) {
	avail := []string{"af_heart", "af_bella"}
	tests := []struct {
		voice   string
		wantErr bool
	}{
		{voice: "af_heart"},
		{voice: "af_heart+af_bella(0.3)"},
		{voice: "af_nope", wantErr: true},
		{voice: "", wantErr: true},
	}
	for _, tt := range tests {
		if err := checkVoice(tt.voice, avail); (err != nil) != tt.wantErr {
			t.Errorf("checkVoice(%q) err = %v, wantErr %v", tt.voice, err, tt.wantErr)
		}
	}
	if err := checkVoice("anything", nil); err != nil {
		t.Errorf("empty catalogue should accept any voice: %v", err)
	}
}

func TestSplitText(t *testing.T) {
	got := SplitText("one\n\ntwo\n   \nthree")
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitText() = %q, want %q", got, want)
	}
}
