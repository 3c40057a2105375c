package main

import (
	"os"

	"spilld/internal/cli"
)

func main() { os.Exit(cli.Main()) }
