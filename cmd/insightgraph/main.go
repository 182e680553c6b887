// Package main provides the insightgraph CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/insightgraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
