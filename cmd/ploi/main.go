//go:build !test

// Code coverage for main is ignored; the command tree is tested in internal/cli.
package main

import (
	"os"

	"github.com/jbweber/homelab/ploi/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
