package main

import (
	"os"

	"github.com/g1itchbot8888-del/agent-memory/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
