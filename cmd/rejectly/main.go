// Package main is the single-binary entrypoint for rejectly.
package main

import "github.com/rejectly/rejectly/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
