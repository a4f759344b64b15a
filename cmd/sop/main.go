// Package main is the entry point for the sop application.
package main

import (
	"os"

	"github.com/jmylchreest/sop/cmd/sop/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
