// Package main is the sphereloc command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"go.viam.com/sphereloc/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
