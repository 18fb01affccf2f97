// Prism - architecture graphs, structural diffs and plan previews.
//
// Prism parses Python and TypeScript/JavaScript source trees into a graph of
// directories, files, functions and classes, then diffs graph snapshots or
// previews a declarative architecture plan against the current graph.
package main

import (
	"fmt"
	"os"

	"github.com/rHedBull/prism/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
