package main

import (
	"os"

	"tft-analyzer/cmd/analyzer/commands"
)

func main() {
	os.Exit(commands.Execute())
}
