// Command wmsfetch renders a map from a single WMS service, lists its layers
// or prints the GetMap URL it would send.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
