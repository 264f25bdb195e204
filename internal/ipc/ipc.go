// Package ipc is a one-message-per-connection JSON control channel over a
// unix socket, used to end a recording turn from a hotkey.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"path/filepath"
)

const CmdStop = "stop"

var DefaultSocketPath = filepath.Join(os.TempDir(), "vincent.sock")

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

// StartServer listens on path until ctx is done, handing every decoded
// message to handler. A stale socket file is replaced.
func StartServer(ctx context.Context, path string, handler func(ControlMessage)) error {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
		os.Remove(path)
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				log.Warn("Control socket accept failed", "err", err)
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return nil
}

func handleConn(conn net.Conn, handler func(ControlMessage)) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Debug("Bad control message", "err", err)
		return
	}
	handler(msg)
}

func SendCommand(path, cmd string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()

	return json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd})
}

// StopSignals turns "stop" messages into sends on a channel. A stop that
// arrives while nobody is recording is dropped.
func StopSignals() (<-chan struct{}, func(ControlMessage)) {
	ch := make(chan struct{})
	return ch, func(msg ControlMessage) {
		if msg.Cmd != CmdStop {
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
