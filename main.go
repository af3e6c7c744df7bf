package main

import (
	"os"

	"github.com/tharun797/deep-matchmaker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
