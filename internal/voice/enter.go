package voice

import (
	"bufio"
	"io"
)

// WaitForEnter starts one goroutine that blocks on a line read from r and
// closes the returned channel when the line (or EOF) arrives. The goroutine
// outlives an interrupted turn until the user presses Enter.
func WaitForEnter(r io.Reader) <-chan struct{} {
	stop := make(chan struct{})
	go func() {
		defer close(stop)
		br := bufio.NewReader(r)
		_, _ = br.ReadString('\n')
	}()
	return stop
}
