package main

import (
	"os"

	"github.com/yond5413/agent-workflow-builder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
