// ABOUTME: Entry point for the cistore CLI, REST server, and MCP server
// ABOUTME: Delegates to the cobra command tree in package cli
package main

import (
	"os"

	"github.com/harperreed/cistore/cli"
)

const version = "0.1.0"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
