package tts

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"

	"vincent/pkg/audioconv"
)

var ErrInitializationFailed = errors.New("voice output could not be initialized")

// Player plays mono PCM and blocks until done or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, pcm audioconv.PCM) error
}

// Ducker runs fn while other audio is turned down.
type Ducker interface {
	While(ctx context.Context, fn func() error) error
}

type Speaker struct {
	kokoro *Kokoro
	player Player
	ducker Ducker
}

type SpeakerOption func(*Speaker)

func WithDucker(d Ducker) SpeakerOption {
	return func(s *Speaker) { s.ducker = d }
}

// NewSpeaker checks that the server answers and offers the configured
// voice before the first reply needs it.
func NewSpeaker(ctx context.Context, k *Kokoro, p Player, opts ...SpeakerOption) (*Speaker, error) {
	voices, err := k.Voices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s unreachable: %v", ErrInitializationFailed, k.cfg.BaseURL, err)
	}
	if err := checkVoice(k.cfg.Voice, voices); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}
	if _, ok := LangCodes[k.cfg.LangCode]; !ok {
		return nil, fmt.Errorf("%w: unknown language code %q", ErrInitializationFailed, k.cfg.LangCode)
	}

	s := &Speaker{kokoro: k, player: p}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Speak renders text piece by piece (split on blank lines) and plays the
// result. Text that produces no audio is silently skipped.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	var clips []audioconv.PCM
	for _, chunk := range SplitText(text) {
		data, err := s.kokoro.Synthesize(ctx, chunk)
		if err != nil {
			return err
		}
		pcm, err := audioconv.DecodeBytes(data)
		if err != nil {
			return fmt.Errorf("decode speech: %w", err)
		}
		if len(pcm.Samples) == 0 {
			continue
		}
		clips = append(clips, pcm)
	}

	clips = joinClips(clips)
	if len(clips) == 0 {
		log.Debug("Nothing to speak")
		return nil
	}

	var seconds float64
	for _, c := range clips {
		seconds += c.Duration()
	}
	log.Debug("Speaking", "clips", len(clips), "seconds", seconds)

	play := func() error {
		for _, c := range clips {
			if err := s.player.Play(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}
	if s.ducker != nil {
		return s.ducker.While(ctx, play)
	}
	return play()
}

var newlines = regexp.MustCompile(`\n+`)

// SplitText breaks text on runs of newlines and drops blank pieces.
func SplitText(text string) []string {
	var out []string
	for _, p := range newlines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// joinClips concatenates neighbouring clips of the same rate.
func joinClips(clips []audioconv.PCM) []audioconv.PCM {
	var out []audioconv.PCM
	for _, c := range clips {
		if n := len(out); n > 0 && out[n-1].Rate == c.Rate {
			out[n-1].Samples = append(out[n-1].Samples, c.Samples...)
			continue
		}
		out = append(out, audioconv.PCM{Samples: append([]float32(nil), c.Samples...), Rate: c.Rate})
	}
	return out
}

// checkVoice accepts blends such as "af_heart+af_bella(0.3)". An empty
// catalogue means the server does not list voices; anything goes then.
func checkVoice(voice string, available []string) error {
	if voice == "" {
		return errors.New("no voice configured")
	}
	if len(available) == 0 {
		return nil
	}

	known := make(map[string]bool, len(available))
	for _, v := range available {
		known[v] = true
	}
	for _, part := range strings.Split(voice, "+") {
		name := strings.TrimSpace(part)
		if i := strings.IndexByte(name, '('); i >= 0 {
			name = name[:i]
		}
		if !known[name] {
			return fmt.Errorf("unknown voice %q", name)
		}
	}
	return nil
}
