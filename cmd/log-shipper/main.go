package main

import (
	"os"

	"github.com/GabrielNunesIT/log-shipper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
