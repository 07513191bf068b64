package main

import (
	"os"

	"cipherdm/cmd/cipherdm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
