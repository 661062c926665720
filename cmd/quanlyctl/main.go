package main

import (
	"fmt"
	"os"

	"github.com/quanly-erp/quanly/cmd/quanlyctl/cli"
)

func main() {
	root := cli.NewRootCommand(os.Stdout, cli.Deps{})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
