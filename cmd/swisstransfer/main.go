package main

import (
	_ "embed"
	"os"
	"strings"

	"swisstransfer/pkg/log"
)

//go:embed VERSION
var Version string

func main() {
	// Initialize logger first
	_ = log.Logger

	rootCmd.Version = strings.TrimSpace(Version)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
