// Command seismig models seismic shots over a layered velocity model and
// migrates them with Kirchhoff or reverse-time migration.
package main

import (
	"fmt"
	"os"
)

// Version information
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
