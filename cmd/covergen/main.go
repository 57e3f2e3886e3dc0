package main

import (
	"fmt"
	"os"

	"github.com/covergen/covergen/cmd/covergen/app"
)

func main() {
	if err := app.NewCovergenCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
