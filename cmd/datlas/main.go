package main

import (
	"os"

	"github.com/sabio/datlas-chat-plugin/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
