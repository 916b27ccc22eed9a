// Package main provides the terminal dashboard entry point for kerneural.
package main

import (
	"flag"
	"fmt"
	"os"

	"kerneural/internal/tui"
)

var version = "dev"

func main() {
	var (
		showVersion bool
		serverURL   string
	)

	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&showVersion, "v", false, "Show version and exit (shorthand)")
	flag.StringVar(&serverURL, "server", "http://127.0.0.1:8088", "kerneural status server URL")
	flag.StringVar(&serverURL, "s", "http://127.0.0.1:8088", "kerneural status server URL (shorthand)")
	flag.Parse()

	if showVersion {
		fmt.Printf("kerneural-tui %s\n", version)
		os.Exit(0)
	}

	fmt.Printf("Connecting to: %s\n", serverURL)

	if err := tui.Run(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
