package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"vincent/internal/ipc"
)

// Bind to a hotkey to end the current recording turn without Enter.
func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket of a running vincent")
	cli.Parse()

	cmd := ipc.CmdStop
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	if err := ipc.SendCommand(*socket, cmd); err != nil {
		fmt.Fprintln(os.Stderr, "vincent not running:", err)
		os.Exit(1)
	}
}
