// Package opencode runs the opencode CLI as a subprocess and turns its
// JSON event stream into a reply.
package opencode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const DefaultExecutable = "opencode"

var ErrExecutableNotFound = errors.New("executable not found in PATH")

// LaunchError is returned when the process could not be started for a
// reason other than a missing executable.
type LaunchError struct {
	Exe string
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Exe, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ProcessError is a non-zero exit of `opencode run`.
type ProcessError struct {
	Code   int
	Detail string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("opencode run failed (%d): %s", e.Code, e.Detail)
}

// RunOptions are passed through to `opencode run`. Empty fields are omitted.
type RunOptions struct {
	SessionID string
	Model     string
	Agent     string
	Attach    string
	Dir       string
}

type Reply struct {
	Text      string
	SessionID string
}

type Client struct {
	exe string
}

func NewClient(exe string) *Client {
	if exe == "" {
		exe = DefaultExecutable
	}
	return &Client{exe: exe}
}

// Args builds the argv for one prompt. The message is always last.
func (c *Client) Args(message string, opt RunOptions) []string {
	args := []string{c.exe, "run", "--format", "json"}
	if opt.SessionID != "" {
		args = append(args, "--session", opt.SessionID)
	}
	if opt.Model != "" {
		args = append(args, "--model", opt.Model)
	}
	if opt.Agent != "" {
		args = append(args, "--agent", opt.Agent)
	}
	if opt.Attach != "" {
		args = append(args, "--attach", opt.Attach)
	}
	if opt.Dir != "" {
		args = append(args, "--dir", opt.Dir)
	}
	return append(args, message)
}

// Ask sends one prompt and waits for the process to finish. The returned
// session id is the last one reported by opencode, or opt.SessionID when the
// output named none.
func (c *Client) Ask(ctx context.Context, prompt string, opt RunOptions) (Reply, error) {
	argv := c.Args(prompt, opt)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("Running opencode", "argv", argv[:len(argv)-1], "chars", len(prompt))
	start := time.Now()

	err := cmd.Run()
	if ctx.Err() != nil {
		return Reply{}, ctx.Err()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = strings.TrimSpace(stdout.String())
			}
			return Reply{}, &ProcessError{Code: exitCode(exitErr), Detail: detail}
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return Reply{}, fmt.Errorf("`%s` %w", c.exe, ErrExecutableNotFound)
		}
		return Reply{}, &LaunchError{Exe: c.exe, Err: err}
	}

	text, sid := ParseEvents(stdout.String(), opt.SessionID)
	log.Debug("opencode finished", "took", time.Since(start), "session", sid, "chars", len(text))

	return Reply{Text: text, SessionID: sid}, nil
}

// exitCode reports a process killed by a signal as the negated signal
// number.
func exitCode(err *exec.ExitError) int {
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return err.ExitCode()
}
