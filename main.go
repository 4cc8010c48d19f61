package main

import (
	"os"
	"runtime/debug"

	"rosettagw/cmd"
	"rosettagw/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("GATEWAY CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
