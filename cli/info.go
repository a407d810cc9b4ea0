package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/georgepadayatti/signpad/stamp"
)

// PageInfo describes one page as displayed.
type PageInfo struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// InfoOutput is the result of the info command.
type InfoOutput struct {
	File      string     `json:"file"`
	PageCount int        `json:"page_count"`
	Pages     []PageInfo `json:"pages"`
	// Validated is false when pdfcpu rejected the document; the page
	// data then comes from signpad's own reader alone.
	Validated       bool   `json:"validated"`
	ValidationError string `json:"validation_error,omitempty"`
}

// InfoCommand implements the 'info' command.
func InfoCommand(args []string) {
	infoFlags := flag.NewFlagSet("info", flag.ExitOnError)
	jsonOutput := infoFlags.Bool("json", false, "Output results in JSON format")

	infoFlags.Usage = func() {
		fmt.Printf("Usage: %s info [options] <input.pdf>\n\n", os.Args[0])
		fmt.Println("Show the page count and the displayed size of each page in points.")
		fmt.Println("")
		fmt.Println("Options:")
		infoFlags.PrintDefaults()
	}

	if err := infoFlags.Parse(args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		osExit(1)
		return
	}
	if len(infoFlags.Args()) < 1 {
		infoFlags.Usage()
		osExit(1)
		return
	}

	output, err := documentInfo(infoFlags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
		return
	}

	if *jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(output); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			osExit(1)
		}
		return
	}

	fmt.Printf("File: %s\n", output.File)
	fmt.Printf("Pages: %d\n", output.PageCount)
	if output.Validated {
		fmt.Println("Validation: passed")
	} else {
		fmt.Printf("Validation: failed (%s)\n", output.ValidationError)
	}
	for _, p := range output.Pages {
		fmt.Printf("  %d: %g x %g pt\n", p.Number, p.Width, p.Height)
	}
}

func documentInfo(path string) (*InfoOutput, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	count, err := stamp.PageCount(doc)
	if err != nil {
		return nil, err
	}
	output := &InfoOutput{File: path, PageCount: count, Pages: make([]PageInfo, 0, count)}
	for i := 0; i < count; i++ {
		w, h, err := stamp.PageSize(doc, i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		output.Pages = append(output.Pages, PageInfo{Number: i + 1, Width: w, Height: h})
	}

	switch n, err := stamp.ValidatedPageCount(doc); {
	case err != nil:
		output.ValidationError = err.Error()
	case n != count:
		output.ValidationError = fmt.Sprintf("pdfcpu counts %d pages", n)
	default:
		output.Validated = true
	}
	return output, nil
}
