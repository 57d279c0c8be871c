package main

import (
	"fmt"
	"io"
	"os"
)

var version = "dev"

var commands = map[string]func(args []string, stdout io.Writer) error{
	"run":      runRun,
	"validate": runValidate,
	"steps":    runSteps,
}

func usage() {
	fmt.Fprintf(os.Stderr, `pipeline - ETL pipeline runner (version %s)

Usage:
  pipeline <command> [options]

Commands:
  run        Run a pipeline definition file
  validate   Load every step of a pipeline without running it
  steps      List the built-in step types

Run 'pipeline <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		return
	}
	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err := fn(os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
