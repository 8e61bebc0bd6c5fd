package main

import (
	"os"

	"github.com/gridwise/energysim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
