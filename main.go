package main

import (
	"os"

	"github.com/forgeci/forgecfg/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
