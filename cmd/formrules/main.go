package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-formrules/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formrules:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
