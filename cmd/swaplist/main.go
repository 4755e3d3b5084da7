package main

import (
	"os"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/cli"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/logging"
)

func main() {
	logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
	if err := cli.Execute(os.Args[1:], logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
