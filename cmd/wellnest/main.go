package main

import (
	"os"

	"wellnest/core/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
