// Package main is the entrypoint for the Poisson daemon and CLI.
package main

import "github.com/poisson-noise/poisson/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
