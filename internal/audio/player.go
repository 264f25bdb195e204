package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"vincent/pkg/audioconv"
)

// Kokoro renders at 24 kHz; other rates are resampled on the fly.
const DefaultPlaybackRate = 24000

type Player struct {
	rate beep.SampleRate
}

// NewPlayer opens the default output device. Only one Player may exist per
// process since beep's speaker is global.
func NewPlayer(rate int) (*Player, error) {
	if rate <= 0 {
		rate = DefaultPlaybackRate
	}
	sr := beep.SampleRate(rate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &Player{rate: sr}, nil
}

// Play blocks until pcm has been played or ctx is done, in which case
// playback is cut off.
func (p *Player) Play(ctx context.Context, pcm audioconv.PCM) error {
	if len(pcm.Samples) == 0 {
		return nil
	}

	var s beep.Streamer = &monoStreamer{samples: pcm.Samples}
	if src := beep.SampleRate(pcm.Rate); src != p.rate {
		s = beep.Resample(4, src, p.rate, s)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func (p *Player) Close() {
	speaker.Clear()
	speaker.Close()
}

type monoStreamer struct {
	samples []float32
	pos     int
}

func (m *monoStreamer) Stream(out [][2]float64) (int, bool) {
	if m.pos >= len(m.samples) {
		return 0, false
	}
	n := copy2(out, m.samples[m.pos:])
	m.pos += n
	return n, true
}

func (m *monoStreamer) Err() error { return nil }

func copy2(out [][2]float64, in []float32) int {
	n := len(out)
	if len(in) < n {
		n = len(in)
	}
	for i := 0; i < n; i++ {
		v := float64(in[i])
		out[i][0], out[i][1] = v, v
	}
	return n
}
