package term

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console owns the two output streams of the voice loop: conversation
// text on out, one-line status messages on status.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	status io.Writer
	style  Style
}

func NewConsole(out, status io.Writer, style Style) *Console {
	return &Console{out: out, status: status, style: style}
}

// Statusf writes a single status line. A trailing newline is added when
// missing.
func (c *Console) Statusf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	msg = strings.TrimRight(msg, "\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.status, c.style.System(msg)+"\n")
}

func (c *Console) User(text string) {
	c.turn(c.style.User("You:"), text)
}

func (c *Console) Assistant(text string) {
	c.turn(c.style.Assistant("Assistant:"), c.style.Reply(text))
}

func (c *Console) turn(label, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s\n%s\n\n", label, body)
}
