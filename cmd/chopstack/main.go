// Command chopstack drives a declarative task plan to completion across
// isolated git working copies, producing a reviewable stack of branches.
package main

import (
	"fmt"
	"os"

	"github.com/arittr/chopstack/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
