// Package pulse lowers the volume of other PulseAudio streams while the
// assistant is speaking.
package pulse

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var (
	percentRe = regexp.MustCompile(`(\d+)\s*%`)
)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ctl is the slice of pactl the Ducker needs.
type Ctl interface {
	ListSinkInputs(ctx context.Context) (string, error)
	SetSinkInputVolume(ctx context.Context, id, percent int) error
}

// Ducker fades every sink input except those whose application.name is in
// selfNames.
type Ducker struct {
	mu          sync.Mutex
	ctl         Ctl
	active      bool
	selfNames   []string
	originalVol map[int]int // id -> volume % before ducking
	minVolume   int

	Factor float64
	Fade   time.Duration
}

func NewDucker(ctl Ctl, selfNames []string, minVolume int) *Ducker {
	if ctl == nil {
		ctl = Pactl{}
	}
	if minVolume < 0 {
		minVolume = 0
	}
	if minVolume > maxVolume {
		minVolume = maxVolume
	}

	return &Ducker{
		ctl:         ctl,
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   minVolume,
		Factor:      0.3,
		Fade:        200 * time.Millisecond,
	}
}

// While ducks other streams, runs fn and restores them. Ducking problems
// are logged, never returned: fn's result is what matters.
func (d *Ducker) While(ctx context.Context, fn func() error) error {
	if err := d.DuckOthers(ctx, d.Factor, d.Fade); err != nil {
		log.Warn("Failed to duck other streams", "err", err)
	}
	defer func() {
		// ctx may already be cancelled; volumes must come back regardless.
		restore, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := d.UnduckOthers(restore, d.Fade); err != nil {
			log.Warn("Failed to restore other streams", "err", err)
		}
	}()
	return fn()
}

// DuckOthers fades every foreign stream to current*factor, not below
// minVolume.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return fmt.Errorf("listStreams: %w", err)
	}

	d.originalVol = make(map[int]int)

	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelfStream(s) {
			continue
		}

		from := s.Volume
		target := float64(from) * factor
		if target < float64(d.minVolume) {
			target = float64(d.minVolume)
		}
		if target > maxVolume {
			target = maxVolume
		}

		d.originalVol[s.ID] = from
		targets = append(targets, fadeTarget{id: s.ID, from: from, to: int(math.Round(target))})
	}

	if len(targets) > 0 {
		if err := d.fadeInputs(ctx, targets, duration); err != nil {
			return err
		}
	}

	d.active = true
	return nil
}

// UnduckOthers fades foreign streams back to their original volume.
// Streams that appeared after ducking are left alone.
func (d *Ducker) UnduckOthers(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return fmt.Errorf("listStreams: %w", err)
	}

	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelfStream(s) {
			continue
		}
		orig, ok := d.originalVol[s.ID]
		if !ok {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if len(targets) > 0 {
		if err := d.fadeInputs(ctx, targets, duration); err != nil {
			return err
		}
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelfStream(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := d.ctl.ListSinkInputs(ctx)
	if err != nil {
		return nil, err
	}
	return parseSinkInputs(out), nil
}

// fadeInputs steps every target from its current to its final volume.
func (d *Ducker) fadeInputs(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if duration <= 0 {
		for _, t := range targets {
			if err := d.ctl.SetSinkInputVolume(ctx, t.id, t.to); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}
		return nil
	}

	const minStepDuration = 10 * time.Millisecond

	steps := int(duration / minStepDuration)
	if steps < 1 {
		steps = 1
	}
	stepDuration := duration / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frac := float64(i) / float64(steps)
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.ctl.SetSinkInputVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			time.Sleep(stepDuration)
		}
	}

	return nil
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(text string) []streamInfo {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []streamInfo
	for _, block := range parts[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
					}
				}
			}

			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				// application.name = "Firefox"
				if idx := strings.Index(line, "\""); idx >= 0 {
					rest := line[idx+1:]
					if idx2 := strings.Index(rest, "\""); idx2 >= 0 {
						s.AppName = rest[:idx2]
					}
				}
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}

// Pactl shells out to the pactl binary.
type Pactl struct{}

func (Pactl) ListSinkInputs(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return "", fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return string(out), nil
}

func (Pactl) SetSinkInputVolume(ctx context.Context, id, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > maxVolume {
		percent = maxVolume
	}
	arg := fmt.Sprintf("%d%%", percent)
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}
