package chat

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vincent/internal/opencode"
	"vincent/internal/session"
	"vincent/internal/term"
	"vincent/internal/voice"
)

type captureStep struct {
	turn voice.Turn
	err  error
}

type fakeCapturer struct {
	steps  []captureStep
	labels []string
	cancel context.CancelFunc
}

func (f *fakeCapturer) Capture(ctx context.Context, label string) (voice.Turn, error) {
	f.labels = append(f.labels, label)
	if len(f.steps) == 0 {
		// script exhausted: behave like Ctrl-C during recording
		f.cancel()
		return voice.Turn{}, ctx.Err()
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.turn, s.err
}

type askStep struct {
	reply opencode.Reply
	err   error
}

type fakeAssistant struct {
	steps   []askStep
	prompts []string
	opts    []opencode.RunOptions
	before  func(call int)
}

func (f *fakeAssistant) Ask(_ context.Context, prompt string, opt opencode.RunOptions) (opencode.Reply, error) {
	if f.before != nil {
		f.before(len(f.prompts))
	}
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opt)
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.reply, s.err
}

type fakeSpeaker struct {
	said []string
	errs []error
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	f.said = append(f.said, text)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type harness struct {
	loop     *Loop
	store    *session.Store
	capturer *fakeCapturer
	asst     *fakeAssistant
	speaker  *fakeSpeaker
	out      *bytes.Buffer
	status   *bytes.Buffer
	ctx      context.Context
}

func newHarness(t *testing.T, captures []captureStep, asks []askStep) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		store:    session.NewStore(filepath.Join(t.TempDir(), "state.json")),
		capturer: &fakeCapturer{steps: captures, cancel: cancel},
		asst:     &fakeAssistant{steps: asks},
		speaker:  &fakeSpeaker{},
		out:      &bytes.Buffer{},
		status:   &bytes.Buffer{},
		ctx:      ctx,
	}
	h.loop = &Loop{
		Capturer:  h.capturer,
		Assistant: h.asst,
		Speaker:   h.speaker,
		Sessions:  h.store,
		Console:   term.NewConsole(h.out, h.status, term.NewStyle(false)),
		Options:   opencode.RunOptions{Model: "m1", Agent: "build"},
	}
	return h
}

func (h *harness) statusHas(t *testing.T, line string) {
	t.Helper()
	if !strings.Contains(h.status.String(), line+"\n") {
		t.Fatalf("status missing %q:\n%s", line, h.status.String())
	}
}

func TestRunPersistsDiscoveredSession(t *testing.T) {
	h := newHarness(t,
		[]captureStep{
			{turn: voice.Turn{Text: "hello", Language: "en"}},
			{turn: voice.Turn{Text: "and again"}},
			{turn: voice.Turn{Text: " Quit "}},
		},
		[]askStep{
			{reply: opencode.Reply{Text: "Hi!"}},
			{reply: opencode.Reply{Text: "Again!", SessionID: "ses_42"}},
		},
	)
	h.asst.before = func(call int) {
		if saved, _ := h.store.Load(); saved != "" {
			t.Errorf("call %d: session saved too early: %q", call, saved)
		}
	}

	if err := h.loop.Run(h.ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if saved, _ := h.store.Load(); saved != "ses_42" {
		t.Fatalf("saved session = %q, want ses_42", saved)
	}
	if len(h.asst.prompts) != 2 {
		t.Fatalf("prompts = %q, exit phrase must not be dispatched", h.asst.prompts)
	}
	for i, opt := range h.asst.opts {
		if opt.SessionID != "" || opt.Model != "m1" || opt.Agent != "build" {
			t.Fatalf("call %d options = %+v", i, opt)
		}
	}
	if got := h.capturer.labels; len(got) != 3 || got[0] != "new-session" || got[2] != "ses_42" {
		t.Fatalf("capture labels = %q", got)
	}

	h.statusHas(t, "No saved opencode session found. A new session will be created on the first prompt.")
	h.statusHas(t, "Detected language: en")
	h.statusHas(t, "Saved opencode session: ses_42 ("+h.store.Path()+")")
	h.statusHas(t, "Exit phrase detected.")
	if n := strings.Count(h.status.String(), "Saved opencode session"); n != 1 {
		t.Fatalf("session saved %d times", n)
	}

	wantOut := "You:\nhello\n\nAssistant:\nHi!\n\nYou:\nand again\n\nAssistant:\nAgain!\n\nYou:\n Quit \n\n"
	if h.out.String() != wantOut {
		t.Fatalf("out = %q\nwant %q", h.out.String(), wantOut)
	}
	if strings.Join(h.speaker.said, "|") != "Hi!|Again!" {
		t.Fatalf("spoken = %q", h.speaker.said)
	}
}

func TestRunUsesKnownSession(t *testing.T) {
	h := newHarness(t,
		[]captureStep{{turn: voice.Turn{Text: "status?"}}, {turn: voice.Turn{Text: "exit"}}},
		[]askStep{{reply: opencode.Reply{Text: "fine", SessionID: "ses_1"}}},
	)

	if err := h.loop.Run(h.ctx, "ses_1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	h.statusHas(t, "Using opencode session: ses_1")
	if h.asst.opts[0].SessionID != "ses_1" {
		t.Fatalf("session not passed: %+v", h.asst.opts[0])
	}
	if strings.Contains(h.status.String(), "Saved opencode session") {
		t.Fatal("unchanged session was saved again")
	}
}

func TestRunRecoversFromErrors(t *testing.T) {
	h := newHarness(t,
		[]captureStep{
			{err: voice.ErrNoAudio},
			{turn: voice.Turn{Text: ""}},
			{turn: voice.Turn{Text: "first"}},
			{turn: voice.Turn{Text: "second"}},
			{turn: voice.Turn{Text: "third"}},
			{turn: voice.Turn{Text: "goodbye"}},
		},
		[]askStep{
			{err: &opencode.ProcessError{Code: 7, Detail: "boom"}},
			{reply: opencode.Reply{Text: ""}},
			{reply: opencode.Reply{Text: "spoken badly"}},
		},
	)
	h.speaker.errs = []error{errors.New("device gone")}

	if err := h.loop.Run(h.ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	h.statusHas(t, "no audio captured from microphone")
	h.statusHas(t, "Please try again.")
	h.statusHas(t, "No speech detected.")
	h.statusHas(t, "opencode run failed (7): boom")
	h.statusHas(t, "opencode returned no text response.")
	h.statusHas(t, "Kokoro playback failed: device gone")
	h.statusHas(t, "Exit phrase detected.")

	if len(h.speaker.said) != 1 {
		t.Fatalf("spoken = %q, empty reply must not be spoken", h.speaker.said)
	}
}

func TestRunStopsOnInterrupt(t *testing.T) {
	t.Run("during capture", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		if err := h.loop.Run(h.ctx, ""); err != nil {
			t.Fatalf("Run: %v", err)
		}
		h.statusHas(t, "Stopped.")
	})

	t.Run("during ask", func(t *testing.T) {
		h := newHarness(t,
			[]captureStep{{turn: voice.Turn{Text: "hello"}}},
			[]askStep{{err: context.Canceled}},
		)
		if err := h.loop.Run(h.ctx, ""); err != nil {
			t.Fatalf("Run: %v", err)
		}
		h.statusHas(t, "Stopped.")
		if len(h.capturer.labels) != 1 {
			t.Fatalf("loop continued after interrupt: %d captures", len(h.capturer.labels))
		}
	})

	t.Run("during speech", func(t *testing.T) {
		h := newHarness(t,
			[]captureStep{{turn: voice.Turn{Text: "hello"}}, {turn: voice.Turn{Text: "more"}}},
			[]askStep{{reply: opencode.Reply{Text: "long answer"}}},
		)
		h.speaker.errs = []error{context.Canceled}

		if err := h.loop.Run(h.ctx, ""); err != nil {
			t.Fatalf("Run: %v", err)
		}
		h.statusHas(t, "Stopped.")
		if len(h.capturer.labels) != 1 {
			t.Fatalf("loop continued after interrupt: %d captures", len(h.capturer.labels))
		}
	})
}

func TestRunWithoutSpeaker(t *testing.T) {
	h := newHarness(t,
		[]captureStep{{turn: voice.Turn{Text: "hi"}}, {turn: voice.Turn{Text: "exit"}}},
		[]askStep{{reply: opencode.Reply{Text: "hello"}}},
	)
	h.loop.Speaker = nil

	if err := h.loop.Run(h.ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(h.out.String(), "Assistant:\nhello\n\n") {
		t.Fatalf("out = %q", h.out.String())
	}
}

func TestIsExitPhrase(t *testing.T) {
	for _, s := range []string{"exit", " QUIT ", "Goodbye", "\tquit\n"} {
		if !IsExitPhrase(s) {
			t.Errorf("IsExitPhrase(%q) = false", s)
		}
	}
	for _, s := range []string{"", "exit now", "good bye", "quit."} {
		if IsExitPhrase(s) {
			t.Errorf("IsExitPhrase(%q) = true", s)
		}
	}
}

func TestRunKeepsSessionWhenSaveFails(t *testing.T) {
	h := newHarness(t,
		[]captureStep{
			{turn: voice.Turn{Text: "first"}},
			{turn: voice.Turn{Text: "second"}},
			{turn: voice.Turn{Text: "exit"}},
		},
		[]askStep{
			{reply: opencode.Reply{Text: "one", SessionID: "ses_42"}},
			{reply: opencode.Reply{Text: "two", SessionID: "ses_42"}},
		},
	)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h.store = session.NewStore(filepath.Join(blocker, "state.json"))
	h.loop.Sessions = h.store

	if err := h.loop.Run(h.ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(h.status.String(), "Could not save session file "+h.store.Path()+": ") {
		t.Fatalf("save failure not reported:\n%s", h.status.String())
	}
	if strings.Contains(h.status.String(), "Saved opencode session") {
		t.Fatal("reported a save that failed")
	}
	if len(h.asst.opts) != 2 || h.asst.opts[1].SessionID != "ses_42" {
		t.Fatalf("second ask options = %+v, want in-memory session ses_42", h.asst.opts)
	}
	if len(h.speaker.said) != 2 {
		t.Fatalf("spoken = %q, loop should go on after a failed save", h.speaker.said)
	}
}
