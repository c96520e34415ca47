// Package main provides the hatsdeploy CLI for deploying the
// AllowlistEligibility factory and its modules.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
