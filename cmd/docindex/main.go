// Command docindex creates, populates, queries and maintains a file-backed
// index from the command line.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/docindex/cmd/docindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
