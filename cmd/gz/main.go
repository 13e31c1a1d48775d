// Package main provides the gz command.
package main

import (
	"os"

	"github.com/leapstack-labs/gz/internal/cli"
	"github.com/leapstack-labs/gz/internal/pipeline"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(pipeline.ExitCode(err))
	}
}
