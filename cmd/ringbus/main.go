package main

import (
	"os"

	"github.com/aradilov/ringbus/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
