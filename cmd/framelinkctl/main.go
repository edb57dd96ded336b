package main

import (
	"fmt"
	"os"

	"github.com/danmuck/framelink/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "framelinkctl: %v\n", err)
		os.Exit(1)
	}
}
