package main

import (
	"os"

	"github.com/nchat-dev/auditledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
