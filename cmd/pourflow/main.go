package main

import (
	"fmt"
	"os"

	"github.com/ghalamif/PourFlow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pourflow: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
