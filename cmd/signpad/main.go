// Command signpad places a handwritten signature image on a PDF page.
//
// Usage:
//
//	signpad <command> [options] <args>
//
// Commands:
//
//	sign     Embed a signature image into a page
//	info     Show page count and page sizes
//	version  Show version information
//	help     Show help message
//
// Examples:
//
//	# Sign page 2, placed as on a page rendered 306 pixels wide
//	signpad sign -page 2 -x 50 -y 80 -w 120 -h 40 -rendered-width 306 contract.pdf signature.png
//
//	# Page sizes as JSON
//	signpad info -json contract.pdf
package main

import (
	"os"

	"github.com/georgepadayatti/signpad/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/signpad
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	cli.Run(os.Args)
}
