package main

import (
	"os"

	"pixwebhook/internal/cli"
	"pixwebhook/internal/version"
)

func main() {
	if err := cli.Execute(version.Version); err != nil {
		os.Exit(1)
	}
}
