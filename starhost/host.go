package starhost

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"

	"github.com/MShaffar19/itcl/itcl"
)

// The resolve flags are process wide; see the package documentation.
func init() {
	resolve.AllowFloat = true
	resolve.AllowSet = true
	resolve.AllowLambda = true
	resolve.AllowNestedDef = true
	resolve.AllowGlobalReassign = true
}

const (
	localContext = "itcl.context"
	localError   = "itcl.error"
	bodyFunction = "__body__"
)

type command struct {
	handler itcl.CommandHandler
	handle  int
}

// Host is a Starlark interpreter owning one itcl registry. Like the registry it
// is single threaded.
type Host struct {
	cfg      Config
	log      logrus.FieldLogger
	reg      *itcl.Registry
	commands map[string]*command
	next     int
	programs map[string]*starlark.Program
	builtins starlark.StringDict
}

var _ itcl.Host = (*Host)(nil)

// New creates a host and the registry bound to it.
func New(cfg Config) (*Host, error) {
	cfg = cfg.withDefaults()
	h := &Host{
		cfg:      cfg,
		log:      cfg.Registry.Logger,
		commands: make(map[string]*command),
		programs: make(map[string]*starlark.Program),
	}
	reg, err := itcl.NewRegistry(h, cfg.Registry)
	if err != nil {
		return nil, errors.Wrap(err, "creating registry")
	}
	h.reg = reg
	h.builtins = h.newBuiltins()
	if _, err := h.InstallCommand("puts", itcl.CommandFunc(h.puts)); err != nil {
		return nil, err
	}
	for _, ext := range cfg.Extensions {
		ext.OnStart(h)
	}
	return h, nil
}

// MustNew is New that panics on error.
func MustNew(cfg Config) *Host {
	h, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return h
}

// Registry returns the registry the host serves.
func (h *Host) Registry() *itcl.Registry {
	return h.reg
}

// Close deletes every object and class.
func (h *Host) Close(ctx context.Context) error {
	return h.reg.Close(ctx)
}

// Commands lists installed command names.
func (h *Host) Commands() []string {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register installs a Go command callable from scripts through cmd().
func (h *Host) Register(name string, fn itcl.CommandFunc) error {
	_, err := h.InstallCommand(name, fn)
	return err
}

func commandName(name string) string {
	return strings.TrimPrefix(name, "::")
}

func (h *Host) InstallCommand(name string, handler itcl.CommandHandler) (itcl.Handle, error) {
	name = commandName(name)
	if _, exists := h.commands[name]; exists {
		return nil, errors.Errorf("command %q already exists", name)
	}
	h.next++
	h.commands[name] = &command{handler: handler, handle: h.next}
	h.log.WithField("command", name).Debug("command installed")
	return h.next, nil
}

func (h *Host) DeleteCommand(name string) error {
	name = commandName(name)
	if _, exists := h.commands[name]; !exists {
		return errors.Errorf("command %q not found", name)
	}
	delete(h.commands, name)
	h.log.WithField("command", name).Debug("command deleted")
	return nil
}

func (h *Host) RenameCommand(oldName, newName string) error {
	oldName, newName = commandName(oldName), commandName(newName)
	cmd, ok := h.commands[oldName]
	if !ok {
		return errors.Errorf("command %q not found", oldName)
	}
	if _, exists := h.commands[newName]; exists {
		return errors.Errorf("command %q already exists", newName)
	}
	delete(h.commands, oldName)
	h.commands[newName] = cmd
	return nil
}

// RemoveCommand deletes a command the way a script deleting it behind the
// registry's back would. The registry is told so it can drop the class or
// object that owned the command.
func (h *Host) RemoveCommand(ctx context.Context, name string) error {
	name = commandName(name)
	cmd, ok := h.commands[name]
	if !ok {
		return errors.Errorf("command %q not found", name)
	}
	delete(h.commands, name)
	if h.reg.IsObjectCommand(name) || h.reg.IsClassCommand(name) {
		return h.reg.CommandDeleted(ctx, cmd.handle)
	}
	return nil
}

func (h *Host) InvokeCommand(ctx context.Context, words []string) (string, error) {
	if len(words) == 0 {
		return "", errors.New("empty command")
	}
	cmd, ok := h.commands[commandName(words[0])]
	if !ok {
		return "", errors.Errorf("invalid command name %q", words[0])
	}
	return cmd.handler.Dispatch(ctx, words[1:])
}

func (h *Host) puts(ctx context.Context, args []string) (string, error) {
	_, err := fmt.Fprintln(h.cfg.Stdout, strings.Join(args, " "))
	return "", err
}

// Eval runs a member body. The body is compiled once as the body of a Starlark
// function whose parameters are the member's formal arguments.
func (h *Host) Eval(ctx context.Context, frame *itcl.Frame, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	params := bodyParams(frame.Code.Args)
	prog, err := h.compile(filenameFor(frame), params, body)
	if err != nil {
		return "", err
	}
	thread := h.newThread(ctx, frame.Command)
	predeclared := make(starlark.StringDict, len(h.builtins)+1)
	for name, value := range h.builtins {
		predeclared[name] = value
	}
	predeclared["self"] = &selfValue{frame: frame, thread: thread}
	globals, err := prog.Init(thread, predeclared)
	if err != nil {
		return "", h.scriptError(thread, err)
	}
	var args starlark.Tuple
	for _, arg := range frame.Code.Args.Args {
		if arg.Name == "args" && frame.Code.Args.Variadic() {
			continue
		}
		args = append(args, starlark.String(frame.Args[arg.Name]))
	}
	for _, extra := range frame.Rest {
		args = append(args, starlark.String(extra))
	}
	result, err := starlark.Call(thread, globals[bodyFunction], args, nil)
	if err != nil {
		return "", h.scriptError(thread, err)
	}
	return toWord(result), nil
}

func filenameFor(frame *itcl.Frame) string {
	if fn := frame.Function(); fn != nil {
		return commandName(fn.FullName)
	}
	return frame.Command
}

func bodyParams(list itcl.ArgList) []string {
	params := list.Names()
	if list.Variadic() {
		params[len(params)-1] = "*args"
	}
	return params
}

func (h *Host) compile(filename string, params []string, body string) (*starlark.Program, error) {
	key := filename + "\x00" + strings.Join(params, ",") + "\x00" + body
	if prog, ok := h.programs[key]; ok {
		return prog, nil
	}
	var src strings.Builder
	fmt.Fprintf(&src, "def %s(%s):\n", bodyFunction, strings.Join(params, ", "))
	lines := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			src.WriteString("\n")
			continue
		}
		src.WriteString("    ")
		src.WriteString(line)
		src.WriteString("\n")
		lines++
	}
	if lines == 0 {
		src.WriteString("    pass\n")
	}
	_, prog, err := starlark.SourceProgram(filename, src.String(), h.isPredeclared)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling %s", filename)
	}
	h.programs[key] = prog
	h.log.WithFields(logrus.Fields{"member": filename, "cached": len(h.programs)}).Debug("body compiled")
	return prog, nil
}

func (h *Host) isPredeclared(name string) bool {
	if name == "self" {
		return true
	}
	_, ok := h.builtins[name]
	return ok
}

func (h *Host) newThread(ctx context.Context, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(h.cfg.Stdout, msg)
		},
	}
	thread.SetLocal(localContext, ctx)
	return thread
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(localContext).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// coreError remembers an error raised by the registry so that it survives the
// trip through Starlark's own error type.
func coreError(thread *starlark.Thread, err error) error {
	thread.SetLocal(localError, err)
	return err
}

func (h *Host) scriptError(thread *starlark.Thread, err error) error {
	if cause, ok := thread.Local(localError).(error); ok && cause != nil {
		return errors.WithStack(cause)
	}
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return errors.New(evalErr.Backtrace())
	}
	return errors.WithStack(err)
}
