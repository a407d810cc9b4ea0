package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/georgepadayatti/signpad/config"
	"github.com/georgepadayatti/signpad/geometry"
	"github.com/georgepadayatti/signpad/session"
	"github.com/georgepadayatti/signpad/stamp"
)

// SignOptions contains options for the sign command.
type SignOptions struct {
	ConfigFile    string
	Output        string
	Page          int
	X, Y          float64
	Width, Height float64
	RenderedWidth float64
	ScaleMode     string
	Validate      bool

	// set holds the names of flags given on the command line.
	set map[string]bool
}

// SignCommand implements the 'sign' command.
func SignCommand(args []string) {
	signFlags := flag.NewFlagSet("sign", flag.ExitOnError)

	var opts SignOptions

	signFlags.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	signFlags.StringVar(&opts.Output, "out", "", "Output file (default: <input>_signed.pdf next to the input)")
	signFlags.IntVar(&opts.Page, "page", 1, "Page number, starting at 1")
	signFlags.Float64Var(&opts.X, "x", 0, "Left edge of the signature in rendered pixels (default: configured position)")
	signFlags.Float64Var(&opts.Y, "y", 0, "Top edge of the signature in rendered pixels (default: configured position)")
	signFlags.Float64Var(&opts.Width, "w", 0, "Signature width in rendered pixels (default: half the image width)")
	signFlags.Float64Var(&opts.Height, "h", 0, "Signature height in rendered pixels (default: half the image height)")
	signFlags.Float64Var(&opts.RenderedWidth, "rendered-width", 0, "Width the page is rendered at in pixels (default: one pixel per point)")
	signFlags.StringVar(&opts.ScaleMode, "scale-mode", "", "Image layout inside the box: stretch, fit, fill, none")
	signFlags.BoolVar(&opts.Validate, "validate", false, "Validate the output with pdfcpu")

	signFlags.Usage = func() {
		fmt.Printf("Usage: %s sign [options] <input.pdf> <signature.png>\n\n", os.Args[0])
		fmt.Println("Embed a signature image into a page, positioned as it would be on screen.")
		fmt.Println("")
		fmt.Println("Arguments:")
		fmt.Println("  input.pdf      PDF file to sign")
		fmt.Println("  signature.png  Signature image (PNG, JPEG, GIF, BMP, TIFF or WebP)")
		fmt.Println("")
		fmt.Println("Options:")
		signFlags.PrintDefaults()
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Printf("  %s sign contract.pdf signature.png\n", os.Args[0])
		fmt.Printf("  %s sign -page 3 -x 40 -y 600 -w 150 -h 50 contract.pdf signature.png\n", os.Args[0])
		fmt.Printf("  %s sign -rendered-width 306 -x 50 -y 50 -w 100 -h 50 -out signed.pdf contract.pdf signature.png\n", os.Args[0])
	}

	if err := signFlags.Parse(args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		osExit(1)
		return
	}

	opts.set = make(map[string]bool)
	signFlags.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if len(signFlags.Args()) < 2 {
		signFlags.Usage()
		osExit(1)
		return
	}

	outputPath, err := signPDF(signFlags.Arg(0), signFlags.Arg(1), &opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
		return
	}

	fmt.Printf("Successfully signed PDF: %s\n", outputPath)
}

// signPDF runs one capture-place-commit cycle through a session, with the
// file standing in for the signature pad and a fixed page rendering
// standing in for the viewer.
func signPDF(inputPath, signaturePath string, opts *SignOptions) (string, error) {
	cfg := config.DefaultConfig()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.ConfigFile); err != nil {
			return "", err
		}
	}
	if opts.ScaleMode != "" {
		cfg.Editor.ScaleMode = opts.ScaleMode
	}
	if opts.Validate {
		cfg.Editor.ValidateOutput = true
	}

	logger, closeLog, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return "", err
	}
	defer closeLog()

	editorOpts, err := cfg.EditorOptions()
	if err != nil {
		return "", err
	}
	editor := stamp.NewEditor(append(editorOpts, stamp.WithLogger(logger))...)

	doc, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	sig, err := os.ReadFile(signaturePath)
	if err != nil {
		return "", fmt.Errorf("failed to read signature: %w", err)
	}

	viewer := &staticViewer{doc: doc, page: opts.Page, renderedWidth: opts.RenderedWidth}
	sess := session.New(editor, viewer, cfg.SessionConfig(), logger)
	if err := sess.Load(filepath.Base(inputPath), doc); err != nil {
		return "", err
	}
	sess.SetPage(opts.Page)
	sess.MountPad(&filePad{png: sig})
	defer sess.ClosePad()

	if err := sess.SaveSignature(); err != nil {
		return "", err
	}
	rect, _ := sess.Overlay()
	if opts.set["x"] {
		rect.X = opts.X
	}
	if opts.set["y"] {
		rect.Y = opts.Y
	}
	if opts.Width > 0 {
		rect.Width = opts.Width
	}
	if opts.Height > 0 {
		rect.Height = opts.Height
	}
	if err := sess.Place(rect); err != nil {
		return "", err
	}
	if err := sess.Commit(context.Background()); err != nil {
		return "", err
	}

	outputPath := opts.Output
	if outputPath == "" {
		outputPath = filepath.Join(filepath.Dir(inputPath), sess.DownloadName())
	}
	if err := os.WriteFile(outputPath, sess.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	return outputPath, nil
}

// staticViewer reports every page rendered at one width with its container
// at the origin.
type staticViewer struct {
	doc           []byte
	page          int
	renderedWidth float64
}

func (v *staticViewer) CurrentPage() int { return v.page }

func (v *staticViewer) RenderedSize(page int) (float64, float64, bool) {
	w, h, err := stamp.PageSize(v.doc, page-1)
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	if v.renderedWidth <= 0 {
		return w, h, true
	}
	return v.renderedWidth, v.renderedWidth * h / w, true
}

func (v *staticViewer) ContainerOffset() (geometry.Point, bool) {
	return geometry.Point{}, true
}

// filePad is a signature pad holding an image read from disk.
type filePad struct {
	png []byte
}

func (p *filePad) IsEmpty() bool              { return len(p.png) == 0 }
func (p *filePad) ExportPNG() ([]byte, error) { return p.png, nil }
func (p *filePad) Clear()                     { p.png = nil }
