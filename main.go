package main

import (
	"os"

	"github.com/contrimap/contrimap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
