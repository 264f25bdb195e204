// Package tts speaks assistant replies through a Kokoro server that exposes
// the OpenAI audio API (Kokoro-FastAPI and compatible).
package tts

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"sort"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Voice    string
	LangCode string
	Speed    float64
	Format   string // wav, mp3 or opus

	// HTTPClient is optional, e.g. a SOCKS client from internal/proxy.
	HTTPClient *http.Client
}

type Kokoro struct {
	client openai.Client
	cfg    Config
}

func NewKokoro(cfg Config) *Kokoro {
	if cfg.Model == "" {
		cfg.Model = "kokoro"
	}
	if cfg.Format == "" {
		cfg.Format = "wav"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
		option.WithRequestTimeout(2 * time.Minute),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Kokoro{client: openai.NewClient(opts...), cfg: cfg}
}

// Synthesize renders one piece of text and returns the encoded audio in the
// configured response format.
func (k *Kokoro) Synthesize(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	resp, err := k.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          k.cfg.Model,
		Voice:          openai.AudioSpeechNewParamsVoice(k.cfg.Voice),
		Speed:          openai.Float(k.cfg.Speed),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(k.cfg.Format),
	}, option.WithJSONSet("lang_code", k.cfg.LangCode))
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}

	log.Debug("Synthesized speech", "chars", len(text), "bytes", len(data), "took", time.Since(start))
	return data, nil
}

type voicesResponse struct {
	Voices []string `json:"voices"`
}

// Voices lists the voice ids the server offers, sorted.
func (k *Kokoro) Voices(ctx context.Context) ([]string, error) {
	var res voicesResponse
	if err := k.client.Get(ctx, "audio/voices", nil, &res); err != nil {
		return nil, err
	}
	sort.Strings(res.Voices)
	return res.Voices, nil
}
