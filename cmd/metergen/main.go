// Package main implements the metergen binary.
// It synthesizes one day of smart meter readings per meter per date and
// uploads them in batches to object storage under dt=<date>/ prefixes.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
