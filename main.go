// Package main is the entry point for the mirror application
package main

import (
	"github.com/ethpandaops/mirror/cmd"
)

func main() {
	cmd.Execute()
}
