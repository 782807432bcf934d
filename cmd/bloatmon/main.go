package main

import (
	"os"

	"github.com/jgalley/bloatmon/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
