package main

import (
	"os"

	"github.com/rustyeddy/levered/cmd/levered/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
