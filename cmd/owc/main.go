package main

import (
	"os"

	"github.com/chainsafe/optimal-wallet/cmd/owc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
