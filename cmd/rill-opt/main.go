package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/rill-lang/rill/internal/cli"
	"github.com/rill-lang/rill/internal/mir"
	"github.com/rill-lang/rill/internal/optimizer"
)

// rill-opt runs the MIR inline pass over textual .mir modules.
// Flags:
//
//	-kind       inline flavor: performance (default) or mandatory.
//	-threshold  maximum callee cost (expensive instructions) to inline.
//	-w          write result back to the source file.
//	-l          list functions that changed instead of printing modules.
//	-watch      keep running and re-optimize inputs when they change.
//	-verbose    report per-file progress.
//	-version    print version information and exit.
func main() {
	var (
		kindName     string
		threshold    int
		writeInPlace bool
		listOnly     bool
		watch        bool
		verbose      bool
		showVersion  bool
	)
	flag.StringVar(&kindName, "kind", "performance", "inline flavor: performance or mandatory")
	flag.IntVar(&threshold, "threshold", 20, "maximum callee cost eligible for inlining")
	flag.BoolVar(&writeInPlace, "w", false, "write result to (source) file instead of stdout")
	flag.BoolVar(&listOnly, "l", false, "list functions changed by inlining")
	flag.BoolVar(&watch, "watch", false, "re-run when an input file changes")
	flag.BoolVar(&verbose, "verbose", false, "verbose progress output")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		cli.PrintVersion("rill-opt", false)
		return
	}

	var kind optimizer.InlineKind
	switch kindName {
	case "performance":
		kind = optimizer.PerformanceInline
	case "mandatory":
		kind = optimizer.MandatoryInline
	default:
		cli.ExitWithError("unknown inline kind %q", kindName)
	}

	files := flag.Args()
	if len(files) == 0 {
		cli.ExitWithError("no input files")
	}

	logger := cli.NewLogger(verbose)
	opts := options{
		kind:         kind,
		threshold:    threshold,
		writeInPlace: writeInPlace,
		listOnly:     listOnly,
		logger:       logger,
	}

	if err := runAll(files, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if !watch {
			os.Exit(1)
		}
	}
	if !watch {
		return
	}
	if err := watchLoop(files, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	kind         optimizer.InlineKind
	threshold    int
	writeInPlace bool
	listOnly     bool
	logger       *cli.Logger
}

// runAll optimizes every input file. Files are independent modules, so they
// are processed concurrently; output is buffered per file and printed in
// input order to keep runs deterministic.
func runAll(files []string, opts options) error {
	outputs := make([]string, len(files))
	var g errgroup.Group
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			out, err := runFile(path, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, out := range outputs {
		fmt.Print(out)
	}
	return nil
}

// runFile parses, optimizes and renders one module. The returned string is
// what should reach stdout for this file (empty when writing in place).
func runFile(path string, opts options) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	m, err := mir.ParseModule(string(data))
	if err != nil {
		return "", err
	}

	var changed []string
	for _, f := range m.Functions {
		if n := optimizer.InlineAll(f, opts.threshold, opts.kind); n > 0 {
			changed = append(changed, f.Name)
			opts.logger.Info("%s: inlined %d call sites into @%s", path, n, f.Name)
		}
	}

	if opts.listOnly {
		out := ""
		for _, name := range changed {
			out += fmt.Sprintf("%s: @%s\n", path, name)
		}
		return out, nil
	}
	rendered := m.String()
	if opts.writeInPlace {
		if len(changed) == 0 {
			return "", nil
		}
		return "", os.WriteFile(path, []byte(rendered), 0o666)
	}
	return rendered, nil
}

// watchLoop re-optimizes a file whenever it is written. Editors that
// replace files on save show up as create or rename events, so those
// trigger a re-run too.
func watchLoop(files []string, opts options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	for _, path := range files {
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	opts.logger.Info("watching %d files", len(files))
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			out, err := runFile(ev.Name, opts)
			if err != nil {
				opts.logger.Error("%s: %v", ev.Name, err)
				continue
			}
			fmt.Print(out)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			opts.logger.Error("watcher: %v", err)
		}
	}
}
