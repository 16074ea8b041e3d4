package main

import (
	"fmt"
	"os"

	"telemetry-peak-analyzer/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
