package main

import (
	"os"

	"github.com/conneroisu/motiondeck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
