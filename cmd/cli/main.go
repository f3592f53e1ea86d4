package main

import (
	"os"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
