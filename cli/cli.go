// Package cli provides the command-line interface for placing signature
// images on PDF pages.
package cli

import (
	"fmt"
	"os"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

type command struct {
	name    string
	summary string
	run     func(args []string)
}

var commands = []command{
	{"sign", "Embed a signature image into a page", SignCommand},
	{"info", "Show page count and page sizes", InfoCommand},
	{"version", "Show version information", func([]string) { VersionCommand() }},
	{"help", "Show this help message", nil},
}

// Run dispatches args[1] to its subcommand. Unknown commands exit with 1.
func Run(args []string) {
	if len(args) < 2 {
		Usage()
		return
	}

	name := args[1]
	if name == "-h" || name == "--help" {
		name = "help"
	}
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		// A nil run prints Usage, which reads this table.
		if cmd.run == nil {
			Usage()
		} else {
			cmd.run(args)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[1])
	Usage()
	osExit(1)
}

// Usage prints the CLI usage information.
func Usage() {
	prog := os.Args[0]
	fmt.Printf("signpad - place a handwritten signature on a PDF page\n\n")
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", prog)
	fmt.Println("Commands:")
	for _, cmd := range commands {
		fmt.Printf("  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Printf("\nUse '%s <command> -h' for command-specific help\n\n", prog)
	fmt.Println("Examples:")
	fmt.Printf("  %s sign -page 2 -x 50 -y 80 -w 120 -h 40 -rendered-width 306 contract.pdf signature.png\n", prog)
	fmt.Printf("  %s info -json contract.pdf\n", prog)
}

// VersionCommand prints version information.
func VersionCommand() {
	fmt.Printf("signpad version %s\n", Version)
	fmt.Printf("Build time: %s\n", BuildTime)
}
