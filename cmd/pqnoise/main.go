package main

import (
	"os"

	"github.com/qtc-project/pqnoise/cmd/pqnoise/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
