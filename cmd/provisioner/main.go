package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chainsafe/optimal-wallet/pkg/app"
	"github.com/chainsafe/optimal-wallet/pkg/app/provisioner"
	"github.com/chainsafe/optimal-wallet/pkg/config"
)

var configPath = flag.String("config", "config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = provisioner.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Provisioner stopped: %v\n", err)
		os.Exit(1)
	}
}
