// Command storagectl is a thin CLI over the object store's service
// boundary, grounded on dittofs's cmd/dittofs entrypoint shape.
package main

import (
	"fmt"
	"os"

	"github.com/zynqcloud/objectstore/cmd/storagectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
