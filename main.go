package main

import (
	"os"

	"github.com/andesdata/webpresence/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
