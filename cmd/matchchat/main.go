package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/matchchat/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Rebuild-and-restart loop for local development.
	if os.Getenv("MATCHCHAT_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
