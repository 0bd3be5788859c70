package main

import (
	"log/slog"
	"os"

	"github.com/billbatista/acasinha-splits/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		printErrorAndExit("acasinha", err)
	}
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
