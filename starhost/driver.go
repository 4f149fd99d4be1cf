package starhost

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/MShaffar19/itcl/itcl"
)

type builtinFunc func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func (h *Host) newBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"new":      h.builtin("new", h.newObject),
		"obj":      h.builtin("obj", h.lookupObject),
		"delete":   h.builtin("delete", h.deleteCommand),
		"rename":   h.builtin("rename", h.renameObject),
		"invoke":   h.builtin("invoke", h.invoke),
		"cmd":      h.builtin("cmd", h.command),
		"classes":  h.builtin("classes", h.classNames),
		"objects":  h.builtin("objects", h.objectNames),
		"heritage": h.builtin("heritage", h.heritage),
	}
}

func (h *Host) builtin(name string, impl builtinFunc) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		for _, ext := range h.cfg.Extensions {
			ext.OnBuiltinCall(name, fn)
		}
		return impl(thread, fn, args, kwargs)
	})
}

func (h *Host) objectValue(name string) (*objectValue, error) {
	obj, ok := h.reg.Object(name)
	if !ok {
		return nil, errors.Wrapf(itcl.ErrUnknownObject, "object %q not found", name)
	}
	return &objectValue{host: h, obj: obj}, nil
}

// new(class, name="#auto", *args, **options)
func (h *Host) newObject(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: missing class name", fn.Name())
	}
	name := "#auto"
	if len(args) > 1 {
		name = toWord(args[1])
	}
	words := []string{toWord(args[0]), name}
	if len(args) > 2 {
		words = append(words, toWords(args[2:])...)
	}
	words = append(words, optionWords(kwargs)...)
	if !h.reg.IsClassCommand(commandName(words[0])) {
		return nil, coreError(thread, errors.Wrapf(itcl.ErrUnknownClass, "class %q not found", words[0]))
	}
	created, err := h.InvokeCommand(threadContext(thread), words)
	if err != nil {
		return nil, coreError(thread, err)
	}
	value, err := h.objectValue(created)
	if err != nil {
		return nil, coreError(thread, err)
	}
	return value, nil
}

// obj(name)
func (h *Host) lookupObject(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	value, err := h.objectValue(name)
	if err != nil {
		return nil, coreError(thread, err)
	}
	return value, nil
}

// delete(name) removes an object, a class, or a plain command.
func (h *Host) deleteCommand(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &target); err != nil {
		return nil, err
	}
	ctx := threadContext(thread)
	name := commandName(toWord(target))
	var err error
	switch {
	case h.reg.IsObjectCommand(name):
		err = h.reg.DeleteObject(ctx, name)
	case h.reg.IsClassCommand(name):
		err = h.reg.DeleteClass(ctx, name)
	default:
		err = h.DeleteCommand(name)
	}
	if err != nil {
		return nil, coreError(thread, err)
	}
	return starlark.None, nil
}

// rename(object, newName); an empty new name deletes the object.
func (h *Host) renameObject(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target starlark.Value
	var newName string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &target, &newName); err != nil {
		return nil, err
	}
	if err := h.reg.RenameObject(threadContext(thread), toWord(target), newName); err != nil {
		return nil, coreError(thread, err)
	}
	return starlark.None, nil
}

// invoke(object, method, *args, **options)
func (h *Host) invoke(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%s: want an object and a method", fn.Name())
	}
	words := append(toWords(args[1:]), optionWords(kwargs)...)
	result, err := h.reg.Invoke(threadContext(thread), toWord(args[0]), words...)
	if err != nil {
		return nil, coreError(thread, err)
	}
	return starlark.String(result), nil
}

// cmd(*words) runs any installed command.
func (h *Host) command(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: missing command name", fn.Name())
	}
	words := append(toWords(args), optionWords(kwargs)...)
	result, err := h.InvokeCommand(threadContext(thread), words)
	if err != nil {
		return nil, coreError(thread, err)
	}
	return starlark.String(result), nil
}

func (h *Host) classNames(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	var names []string
	for _, cls := range h.reg.Classes() {
		names = append(names, commandName(cls.FullName))
	}
	return stringList(names), nil
}

func (h *Host) objectNames(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	var names []string
	for _, obj := range h.reg.Objects() {
		names = append(names, obj.Name)
	}
	return stringList(names), nil
}

// heritage(class) lists the class and its ancestors, most specific first.
func (h *Host) heritage(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	cls, ok := h.reg.Class(name)
	if !ok {
		return nil, coreError(thread, errors.Wrapf(itcl.ErrUnknownClass, "class %q not found", name))
	}
	var names []string
	for _, c := range cls.Heritage() {
		names = append(names, commandName(c.FullName))
	}
	return stringList(names), nil
}

// ExecFile runs a driver script from disk.
func (h *Host) ExecFile(ctx context.Context, path string) (starlark.StringDict, error) {
	return h.exec(ctx, path, nil, h.builtins)
}

// ExecSource runs a driver script held in memory.
func (h *Host) ExecSource(ctx context.Context, filename, src string) (starlark.StringDict, error) {
	return h.exec(ctx, filename, src, h.builtins)
}

func (h *Host) exec(ctx context.Context, filename string, src interface{}, predeclared starlark.StringDict) (starlark.StringDict, error) {
	for _, ext := range h.cfg.Extensions {
		ext.OnExec(filename)
	}
	thread := h.newThread(ctx, filename)
	globals, err := starlark.ExecFile(thread, filename, src, predeclared)
	if err != nil {
		if cause, ok := thread.Local(localError).(error); ok && cause != nil {
			return nil, errors.Wrap(cause, filename)
		}
		return nil, h.scriptError(thread, err)
	}
	return globals, nil
}

// Session evaluates a sequence of snippets that share globals, as an
// interactive shell does.
type Session struct {
	host    *Host
	globals starlark.StringDict
}

// NewSession starts an empty session.
func (h *Host) NewSession() *Session {
	return &Session{host: h, globals: make(starlark.StringDict)}
}

func (s *Session) env() starlark.StringDict {
	env := make(starlark.StringDict, len(s.host.builtins)+len(s.globals))
	for name, value := range s.host.builtins {
		env[name] = value
	}
	for name, value := range s.globals {
		env[name] = value
	}
	return env
}

// Eval runs one snippet. Expressions return their value rendered as a word;
// statements update the session's globals and return "".
func (s *Session) Eval(ctx context.Context, src string) (string, error) {
	thread := s.host.newThread(ctx, "<session>")
	value, err := starlark.Eval(thread, "<session>", src, s.env())
	if err == nil {
		if value == starlark.None {
			return "", nil
		}
		return toWord(value), nil
	}
	if _, isSyntax := err.(syntax.Error); !isSyntax {
		return "", s.host.scriptError(thread, err)
	}
	globals, err := s.host.exec(ctx, "<session>", src, s.env())
	if err != nil {
		return "", err
	}
	for name, value := range globals {
		s.globals[name] = value
	}
	return "", nil
}

// Globals lists the names the session has defined.
func (s *Session) Globals() []string {
	return s.globals.Keys()
}
