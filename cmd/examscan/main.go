// Package main provides the entry point for the examscan CLI.
package main

import (
	"fmt"
	"os"

	"github.com/acssjr/examscan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
