package main

import (
	"fmt"
	"os"
)

var (
	GitCommit = ""
	GitDate   = ""
	Version   = "0.1.0"
)

// VersionWithCommit renders the build version with commit metadata when the
// linker injected it.
func VersionWithCommit(gitCommit, gitDate string) string {
	version := Version
	if gitCommit != "" {
		if len(gitCommit) >= 8 {
			version += "-" + gitCommit[:8]
		} else {
			version += "-" + gitCommit
		}
	}
	if gitDate != "" {
		version += "-" + gitDate
	}
	return version
}

func main() {
	app := newCli(GitCommit, GitDate)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "catalyst-wallet: %v\n", err)
		os.Exit(1)
	}
}
