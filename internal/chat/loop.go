// Package chat runs the record, transcribe, ask, reply loop.
package chat

import (
	"context"
	"errors"
	log "log/slog"
	"strings"

	"vincent/internal/opencode"
	"vincent/internal/term"
	"vincent/internal/voice"
)

var exitPhrases = map[string]bool{
	"exit":    true,
	"quit":    true,
	"goodbye": true,
}

// IsExitPhrase reports whether a transcript ends the conversation.
func IsExitPhrase(text string) bool {
	return exitPhrases[strings.ToLower(strings.TrimSpace(text))]
}

type Capturer interface {
	Capture(ctx context.Context, session string) (voice.Turn, error)
}

type Assistant interface {
	Ask(ctx context.Context, prompt string, opt opencode.RunOptions) (opencode.Reply, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type SessionStore interface {
	Save(id string) error
	Path() string
}

type Loop struct {
	Capturer  Capturer
	Assistant Assistant
	// Speaker is nil when voice output is off.
	Speaker  Speaker
	Sessions SessionStore
	Console  *term.Console

	// Options carries model, agent, attach and dir; SessionID is managed by
	// the loop.
	Options opencode.RunOptions
}

// Run loops until an exit phrase or ctx is cancelled. Both are clean stops
// and return nil. sessionID is the session to start with, "" for a new one.
func (l *Loop) Run(ctx context.Context, sessionID string) error {
	c := l.Console

	if sessionID != "" {
		c.Statusf("Using opencode session: %s", sessionID)
	} else {
		c.Statusf("No saved opencode session found. A new session will be created on the first prompt.")
	}
	c.Statusf("Speak, then press Enter to finish each turn.")
	c.Statusf("Say 'exit' or 'quit' to end the loop.")

	for turn := 1; ; turn++ {
		label := sessionID
		if label == "" {
			label = "new-session"
		}

		t, err := l.Capturer.Capture(ctx, label)
		if err != nil {
			if interrupted(ctx, err) {
				c.Statusf("Stopped.")
				return nil
			}
			c.Statusf("%v", err)
			c.Statusf("Please try again.")
			continue
		}

		if t.Text == "" {
			c.Statusf("No speech detected.")
			continue
		}

		c.User(t.Text)
		if t.Language != "" {
			c.Statusf("Detected language: %s", t.Language)
		}

		if IsExitPhrase(t.Text) {
			c.Statusf("Exit phrase detected.")
			return nil
		}

		c.Statusf("Asking opencode...")
		opt := l.Options
		opt.SessionID = sessionID

		reply, err := l.Assistant.Ask(ctx, t.Text, opt)
		if err != nil {
			if interrupted(ctx, err) {
				c.Statusf("Stopped.")
				return nil
			}
			c.Statusf("%v", err)
			continue
		}
		log.Debug("Turn answered", "turn", turn, "session", reply.SessionID)

		if reply.SessionID != "" && reply.SessionID != sessionID {
			sessionID = reply.SessionID
			if err := l.Sessions.Save(sessionID); err != nil {
				c.Statusf("Could not save session file %s: %v", l.Sessions.Path(), err)
			} else {
				c.Statusf("Saved opencode session: %s (%s)", sessionID, l.Sessions.Path())
			}
		}

		if reply.Text == "" {
			c.Statusf("opencode returned no text response.")
			continue
		}

		c.Assistant(reply.Text)

		if l.Speaker == nil {
			continue
		}
		if err := l.Speaker.Speak(ctx, reply.Text); err != nil {
			if interrupted(ctx, err) {
				c.Statusf("Stopped.")
				return nil
			}
			c.Statusf("Kokoro playback failed: %v", err)
		}
	}
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
