// Command crisisdrill serves branching crisis-decision exercises over MCP
// and validates scenario documents offline.
package main

import (
	"fmt"
	"os"
)

const usage = `usage: crisisdrill <command> [flags]

commands:
  serve      run the MCP server on stdio (default)
  validate   check a scenario document
  install    write settings and fetch the mermaid-ascii renderer
  version    print the version
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "validate":
		err = runValidate(args, os.Stdout)
	case "install":
		err = runInstall(args)
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
