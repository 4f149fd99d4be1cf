package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/MShaffar19/itcl/classfile"
	"github.com/MShaffar19/itcl/itcl"
	"github.com/MShaffar19/itcl/starhost"
)

func main() {
	if err := runCLI(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	if len(args) < 2 {
		return usageError()
	}
	switch args[1] {
	case "run":
		return runCommand(args[2:])
	case "check":
		return checkCommand(args[2:])
	case "repl":
		return replCommand(args[2:])
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError()
	}
}

type commonFlags struct {
	classFiles pathList
	logLevel   string
	strict     bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.Var(&c.classFiles, "classes", "load a class definition file (repeatable)")
	fs.StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	fs.BoolVar(&c.strict, "strict", false, "reject ambiguous inherited names")
}

func (c *commonFlags) newHost(stdout io.Writer) (*starhost.Host, error) {
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.SetLevel(level)
	return starhost.New(starhost.Config{
		Registry: itcl.Config{Logger: logger, StrictInheritance: c.strict},
		Stdout:   stdout,
	})
}

func (c *commonFlags) loadClasses(h *starhost.Host, scriptPath string) error {
	files, err := computeClassFiles(scriptPath, c.classFiles)
	if err != nil {
		return err
	}
	if _, err := classfile.LoadAll(h.Registry(), files...); err != nil {
		return fmt.Errorf("load classes: %w", err)
	}
	return nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	remaining := fs.Args()
	if len(remaining) == 0 {
		return errors.New("itclsh run: script path required")
	}
	scriptPath, err := filepath.Abs(remaining[0])
	if err != nil {
		return fmt.Errorf("resolve script path: %w", err)
	}
	h, err := common.newHost(os.Stdout)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer h.Close(ctx)
	if err := common.loadClasses(h, scriptPath); err != nil {
		return err
	}
	if _, err := h.ExecFile(ctx, scriptPath); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	return nil
}

// checkCommand loads class files into a scratch registry and prints every
// class with its heritage.
func checkCommand(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := append([]string(nil), common.classFiles...)
	files = append(files, fs.Args()...)
	if len(files) == 0 {
		return errors.New("itclsh check: class file required")
	}
	h, err := common.newHost(io.Discard)
	if err != nil {
		return err
	}
	defer h.Close(context.Background())
	if _, err := classfile.LoadAll(h.Registry(), files...); err != nil {
		return err
	}
	for _, cls := range h.Registry().Classes() {
		fmt.Println(describeClass(cls))
	}
	return nil
}

func describeClass(cls *itcl.Class) string {
	var names []string
	for _, c := range cls.Heritage() {
		names = append(names, c.FullName)
	}
	return itcl.JoinList(names)
}

func replCommand(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	out := new(bytes.Buffer)
	h, err := common.newHost(out)
	if err != nil {
		return err
	}
	defer h.Close(context.Background())
	if _, err := classfile.LoadAll(h.Registry(), common.classFiles...); err != nil {
		return fmt.Errorf("load classes: %w", err)
	}
	return runREPL(h, out)
}

func usageError() error {
	printUsage()
	return errors.New("invalid command")
}

func printUsage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s run [flags] <script.star>\n", prog)
	fmt.Fprintf(os.Stderr, "       %s check [flags] <classes.yaml>...\n", prog)
	fmt.Fprintf(os.Stderr, "       %s repl [flags]\n", prog)
	fmt.Fprintln(os.Stderr, "Flags:")
	fmt.Fprintln(os.Stderr, "  -classes <file>")
	fmt.Fprintln(os.Stderr, "    load a class definition file (repeatable)")
	fmt.Fprintln(os.Stderr, "  -log-level string")
	fmt.Fprintln(os.Stderr, "    log level (default \"warn\")")
	fmt.Fprintln(os.Stderr, "  -strict")
	fmt.Fprintln(os.Stderr, "    reject ambiguous inherited names")
}

type flagErrorSink struct{}

func (flagErrorSink) Write(p []byte) (int, error) {
	return len(p), nil
}

type pathList []string

func (l *pathList) String() string {
	return strings.Join(*l, string(os.PathListSeparator))
}

func (l *pathList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// computeClassFiles returns the class files to load for a script: a
// classes.yaml next to the script when present, then the explicit files.
func computeClassFiles(scriptPath string, extras []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	addFile := func(label, p string, optional bool) error {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s %q: %w", label, p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if optional && errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("access %s %q: %w", label, abs, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s %q is a directory", label, abs)
		}
		if _, ok := seen[abs]; ok {
			return nil
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
		return nil
	}
	if err := addFile("script classes", filepath.Join(filepath.Dir(scriptPath), "classes.yaml"), true); err != nil {
		return nil, err
	}
	for _, extra := range extras {
		if err := addFile("class file", extra, false); err != nil {
			return nil, err
		}
	}
	return files, nil
}
