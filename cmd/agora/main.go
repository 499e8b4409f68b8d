package main

import (
	"os"

	"agora/cmd/agora/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
