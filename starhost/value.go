package starhost

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/MShaffar19/itcl/itcl"
)

// selfValue is the `self` of a running member body. Attribute reads and
// writes go through the frame's resolver.
type selfValue struct {
	frame  *itcl.Frame
	thread *starlark.Thread
}

var (
	_ starlark.HasSetField = (*selfValue)(nil)
	_ starlark.HasAttrs    = (*objectValue)(nil)
	_ starlark.Comparable  = (*objectValue)(nil)
)

func (s *selfValue) String() string {
	if obj := s.frame.Object(); obj != nil {
		return obj.Name
	}
	return commandName(s.frame.Class().FullName)
}

func (s *selfValue) Type() string          { return "itcl.self" }
func (s *selfValue) Freeze()               {}
func (s *selfValue) Truth() starlark.Bool  { return starlark.True }
func (s *selfValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", s.Type()) }

func (s *selfValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "call":
		return starlark.NewBuiltin("call", s.call), nil
	case "var":
		return starlark.NewBuiltin("var", s.variable), nil
	case "setvar":
		return starlark.NewBuiltin("setvar", s.setvar), nil
	}
	if ref, ok := s.frame.ResolveVariable(name); ok {
		value, err := ref.Get()
		if err != nil {
			return nil, coreError(s.thread, err)
		}
		return starlark.String(value), nil
	}
	if ref, ok := s.frame.ResolveCommand(name); ok {
		return invoker(name, ref.Invoke), nil
	}
	return nil, nil
}

func (s *selfValue) AttrNames() []string {
	return []string{"call", "setvar", "var"}
}

func (s *selfValue) SetField(name string, v starlark.Value) error {
	if err := s.frame.SetVar(name, toWord(v)); err != nil {
		return coreError(s.thread, err)
	}
	return nil
}

// call(name, *args) resolves name from the frame, so qualified names such as
// Base::constructor work.
func (s *selfValue) call(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: missing command name", fn.Name())
	}
	name, ok := starlark.AsString(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: command name must be a string, got %s", fn.Name(), args[0].Type())
	}
	words := append(toWords(args[1:]), optionWords(kwargs)...)
	result, err := s.frame.Call(threadContext(thread), name, words...)
	if err != nil {
		return nil, coreError(thread, err)
	}
	return starlark.String(result), nil
}

func (s *selfValue) variable(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	value, err := s.frame.Var(name)
	if err != nil {
		return nil, coreError(thread, err)
	}
	return starlark.String(value), nil
}

func (s *selfValue) setvar(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var value starlark.Value
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &name, &value); err != nil {
		return nil, err
	}
	if err := s.frame.SetVar(name, toWord(value)); err != nil {
		return nil, coreError(thread, err)
	}
	return starlark.String(toWord(value)), nil
}

// objectValue is an object seen from a driver script or a body.
type objectValue struct {
	host *Host
	obj  *itcl.Object
}

func (o *objectValue) String() string { return o.obj.Name }
func (o *objectValue) Type() string   { return "itcl.object" }
func (o *objectValue) Freeze()        {}

func (o *objectValue) Truth() starlark.Bool {
	return o.obj.Flags()&itcl.ObjectDeleted == 0
}

func (o *objectValue) Hash() (uint32, error) {
	return starlark.String(o.obj.Name).Hash()
}

func (o *objectValue) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	other := y.(*objectValue)
	switch op {
	case syntax.EQL:
		return o.obj == other.obj, nil
	case syntax.NEQ:
		return o.obj != other.obj, nil
	}
	return false, fmt.Errorf("%s %s %s not implemented", o.Type(), op, y.Type())
}

func (o *objectValue) Attr(name string) (starlark.Value, error) {
	return invoker(name, func(ctx context.Context, args ...string) (string, error) {
		return o.host.InvokeCommand(ctx, append([]string{o.obj.Name, name}, args...))
	}), nil
}

func (o *objectValue) AttrNames() []string {
	seen := map[string]struct{}{"cget": {}, "configure": {}, "info": {}, "isa": {}}
	for _, cls := range o.obj.Class().Heritage() {
		for _, fn := range cls.Functions() {
			if fn.Protection == itcl.Public && !fn.Proc() && fn.Name != "constructor" && fn.Name != "destructor" {
				seen[fn.Name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// invoker wraps a command so Starlark can call it. Positional arguments become
// words; keyword arguments become -name value pairs.
func invoker(name string, invoke func(ctx context.Context, args ...string) (string, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		words := append(toWords(args), optionWords(kwargs)...)
		result, err := invoke(threadContext(thread), words...)
		if err != nil {
			return nil, coreError(thread, err)
		}
		return starlark.String(result), nil
	})
}

func optionWords(kwargs []starlark.Tuple) []string {
	var words []string
	for _, kv := range kwargs {
		key, _ := starlark.AsString(kv[0])
		words = append(words, "-"+strings.TrimPrefix(key, "-"), toWord(kv[1]))
	}
	return words
}

func toWords(values starlark.Tuple) []string {
	words := make([]string, len(values))
	for i, v := range values {
		words[i] = toWord(v)
	}
	return words
}

// toWord turns a Starlark value into the string form the registry stores.
// Sequences become lists.
func toWord(v starlark.Value) string {
	switch v := v.(type) {
	case nil, starlark.NoneType:
		return ""
	case starlark.String:
		return string(v)
	case starlark.Bool:
		if v {
			return "1"
		}
		return "0"
	case starlark.Tuple:
		return itcl.JoinList(toWords(v))
	case *starlark.List:
		elems := make([]string, v.Len())
		for i := range elems {
			elems[i] = toWord(v.Index(i))
		}
		return itcl.JoinList(elems)
	default:
		return v.String()
	}
}

func stringList(words []string) *starlark.List {
	elems := make([]starlark.Value, len(words))
	for i, w := range words {
		elems[i] = starlark.String(w)
	}
	return starlark.NewList(elems)
}
