package main

import (
	"os"

	"github.com/walletscope/pkg/cli"
)

func main() {
	os.Exit(cli.NewRunner().Run(os.Args[1:]))
}
