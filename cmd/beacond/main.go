// Command beacond is the long-running daemon process described in
// §4.J. It is the one process entrypoint the core itself owns; a full
// CLI front-end is out of scope (see SPEC_FULL.md §1).
package main

import (
	"fmt"
	"os"

	"beacon/internal/daemon"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: beacond <repository-root>")
		os.Exit(2)
	}
	root := os.Args[1]

	server, err := daemon.Bootstrap(root, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beacond: %v\n", err)
		os.Exit(1)
	}
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "beacond: %v\n", err)
		os.Exit(1)
	}
}
