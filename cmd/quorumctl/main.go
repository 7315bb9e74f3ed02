package main

import (
	"os"

	quorumcmd "github.com/telekom/k8s-quorum/pkg/quorumctl/cmd"
)

func main() {
	root := quorumcmd.NewRootCommand(quorumcmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
