package main

import (
	"os"

	"github.com/investly/investly/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
