package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
)

func main() {
	if err := newRootCmd(hostEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.Error.Sprintf("crankctl: %v", err))
		os.Exit(1)
	}
}
