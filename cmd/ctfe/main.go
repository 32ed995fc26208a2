// ctfe evaluates the vtables and associated items requested by
// consteval.toml projects and prints what it built.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/consteval/manifest"
	"github.com/chazu/consteval/vm"
)

const (
	exitOK    = 0
	exitError = 1
	exitAbort = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// project is one loaded consteval.toml and the output of evaluating it.
type project struct {
	dir      string
	manifest *manifest.Manifest
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	code     int
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ctfe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("C", ".", "Directory to search for consteval.toml (walks up)")
	verbose := fs.Bool("v", false, "Verbose output (info-level logging)")
	output := fs.String("o", "", "Write the evaluated memory image to this file")
	inspect := fs.String("inspect", "", "Print the vtables stored in an image file and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ctfe [options] [project dirs...]\n\n")
		fmt.Fprintf(stderr, "Builds the [[vtable]] requests and resolves the [[const]] and [[call]]\n")
		fmt.Fprintf(stderr, "requests of the nearest consteval.toml. Several project directories are\n")
		fmt.Fprintf(stderr, "evaluated concurrently, each in its own heap.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  ctfe                        # Evaluate ./consteval.toml\n")
		fmt.Fprintf(stderr, "  ctfe -C examples/shapes -o shapes.cbor\n")
		fmt.Fprintf(stderr, "  ctfe a/ b/ c/                # Evaluate three projects\n")
		fmt.Fprintf(stderr, "  ctfe -inspect shapes.cbor   # Decode vtables offline\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	if *inspect != "" {
		if err := inspectImage(stdout, *inspect); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = []string{*dir}
	}
	if *output != "" && len(dirs) > 1 {
		fmt.Fprintf(stderr, "Error: -o needs a single project, got %d\n", len(dirs))
		return exitError
	}

	projects := make([]*project, len(dirs))
	for i, d := range dirs {
		m, err := manifest.FindAndLoad(d)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		if m == nil {
			fmt.Fprintf(stderr, "Error: no %s found in %s or its parents\n", manifest.FileName, d)
			return exitError
		}
		projects[i] = &project{dir: d, manifest: m}
	}

	// Logging is process-wide; the first project's [log] section wins.
	verbosity := projects[0].manifest.Log.Verbosity
	if *verbose && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, projects[0].manifest.LogFile())

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range projects {
		p := p
		g.Go(func() error {
			p.code = p.evaluate(*output)
			return nil
		})
	}
	g.Wait()

	status := exitOK
	for _, p := range projects {
		if len(projects) > 1 {
			fmt.Fprintf(stdout, "== %s\n", p.manifest.Dir)
		}
		stdout.Write(p.stdout.Bytes())
		stderr.Write(p.stderr.Bytes())
		status = max(status, p.code)
	}
	return status
}

// evaluate builds and runs one project and returns its exit status.
func (p *project) evaluate(output string) int {
	cfg, err := p.manifest.VMConfig()
	if err != nil {
		fmt.Fprintf(&p.stderr, "Error: %v\n", err)
		return exitError
	}
	plan, err := p.manifest.Build()
	if err != nil {
		fmt.Fprintf(&p.stderr, "Error: %v\n", err)
		return exitError
	}

	ecx := vm.NewEvalContext(plan.Program, nil, cfg)
	status := exitOK
	err = vm.Catch(func() error {
		if !evaluate(&p.stdout, &p.stderr, ecx, plan) {
			status = exitError
		}
		return nil
	})
	var abort *vm.Abort
	if errors.As(err, &abort) {
		fmt.Fprintln(&p.stderr, abort)
		return exitAbort
	}

	if output != "" {
		if err := writeImage(ecx.Memory, output); err != nil {
			fmt.Fprintf(&p.stderr, "Error: %v\n", err)
			return exitError
		}
	}
	return status
}
