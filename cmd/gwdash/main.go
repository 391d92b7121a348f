// Command gwdash watches a Zigbee gateway and runs one-shot maintenance jobs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gwdash: %v\n", err)
		os.Exit(1)
	}
}
