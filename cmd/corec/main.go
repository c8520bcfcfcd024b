package main

import (
	"os"

	"github.com/vmlang/corec/cmd/corec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(2)
	}
}
