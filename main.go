package main

import (
	"os"

	"github.com/chunklog/chunklog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
