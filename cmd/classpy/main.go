package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/starsquare/classpy"
	"github.com/starsquare/classpy/dump"
	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/tree"
	"github.com/starsquare/classpy/verify"
	"github.com/starsquare/classpy/wasmfile"
)

type config struct {
	path        string
	format      string
	diffWith    string
	color       string
	depth       int
	verify      bool
	interactive bool
	verbose     bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.format, "format", "auto", "Container format: auto, class, dex or wasm")
	flag.StringVar(&cfg.diffWith, "diff", "", "Print a unified diff against the dump of another file")
	flag.StringVar(&cfg.color, "color", "auto", "Colorize the dump: auto, always or never")
	flag.IntVar(&cfg.depth, "depth", 0, "Limit dump depth (0 = unlimited)")
	flag.BoolVar(&cfg.verify, "verify", false, "Cross-check a wasm module against wazero")
	flag.BoolVar(&cfg.interactive, "i", false, "Interactive tree browser")
	flag.BoolVar(&cfg.verbose, "v", false, "Verbose logging to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: classpy [-format auto|class|dex|wasm] [-color auto|always|never] [-depth n] <file>")
		fmt.Fprintln(os.Stderr, "       classpy -diff <other> <file>")
		fmt.Fprintln(os.Stderr, "       classpy -verify <file.wasm>")
		fmt.Fprintln(os.Stderr, "       classpy -i <file>  (interactive mode)")
		os.Exit(2)
	}
	cfg.path = flag.Arg(0)

	log, err := newLogger(cfg.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	classpy.SetLogger(log)
	verify.SetLogger(log.Named("verify"))

	if err := run(cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func run(cfg config, out io.Writer) error {
	format, err := classpy.ParseFormat(cfg.format)
	if err != nil {
		return err
	}
	opts := classpy.DefaultOptions()
	opts.Format = format

	if cfg.interactive {
		return runInteractive(cfg.path, opts)
	}

	data, err := load(cfg.path)
	if err != nil {
		return err
	}
	root, parseErr := classpy.Parse(data, opts)
	if root == nil {
		return parseErr
	}

	switch {
	case cfg.diffWith != "":
		if err := runDiff(out, cfg.path, root, cfg.diffWith, opts); err != nil {
			return err
		}
	case cfg.verify:
		if err := runVerify(out, data, root); err != nil {
			return err
		}
	default:
		dumpOpts := dump.Options{MaxDepth: cfg.depth}
		if styles, ok := colorStyles(cfg.color, out); ok {
			dumpOpts.Styles = &styles
		}
		if err := dump.Write(out, root, dumpOpts); err != nil {
			return err
		}
	}
	return parseErr
}

func load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	return data, nil
}

// colorStyles picks dump styles for the color mode. Auto colors only when
// out is a terminal.
func colorStyles(mode string, out io.Writer) (dump.Styles, bool) {
	r := lipgloss.NewRenderer(out)
	switch mode {
	case "never":
		return dump.Styles{}, false
	case "always":
		r.SetColorProfile(termenv.ANSI256)
	default:
		f, ok := out.(*os.File)
		if !ok || !term.IsTerminal(int(f.Fd())) {
			return dump.Styles{}, false
		}
	}
	return dump.DefaultStyles(r), true
}

func runDiff(w io.Writer, path string, root tree.Component, otherPath string, opts classpy.Options) error {
	data, err := load(otherPath)
	if err != nil {
		return err
	}
	other, err := classpy.Parse(data, opts)
	if other == nil {
		return err
	}
	diff, err := dump.Diff(path, root, otherPath, other)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, diff)
	return err
}

func runVerify(w io.Writer, data []byte, root tree.Component) error {
	mod, ok := root.(*wasmfile.File)
	if !ok {
		return errors.InvalidInput(errors.PhaseVerify, "-verify needs a wasm module")
	}
	report, err := verify.Module(context.Background(), data, mod)
	if err != nil {
		return err
	}
	for _, m := range report.Mismatches {
		fmt.Fprintln(w, m)
	}
	if report.OK() {
		fmt.Fprintf(w, "ok: %d function imports, %d function exports match wazero\n", report.Imports, report.Exports)
	}
	return report.Err()
}
