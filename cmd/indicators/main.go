package main

import (
	"os"

	"github.com/baxromumarov/econ-indicators/cmd/indicators/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
