package itcl

import (
	"fmt"
	"strings"
)

// Arg is one formal parameter of a member.
type Arg struct {
	Name       string
	Default    string
	HasDefault bool
}

// ArgList is a parsed argument specification such as `a {b 1} args`.
type ArgList struct {
	Args []Arg
	// ArgCount is the number of declared arguments.
	ArgCount int
	// MaxArgCount is -1 when the list ends in `args`.
	MaxArgCount int
	Usage       string
	spec        string
}

// ParseArgList parses an argument specification.
func ParseArgList(spec string) (ArgList, error) {
	elems, err := SplitList(spec)
	if err != nil {
		return ArgList{}, fmt.Errorf("%w: %v", ErrBadArgList, err)
	}
	list := ArgList{spec: spec}
	seen := make(map[string]struct{}, len(elems))
	var usage []string
	for idx, elem := range elems {
		parts, err := SplitList(elem)
		if err != nil {
			return ArgList{}, fmt.Errorf("%w: %v", ErrBadArgList, err)
		}
		switch {
		case len(parts) == 0:
			return ArgList{}, fmt.Errorf("%w: argument #%d has no name", ErrBadArgList, idx)
		case len(parts) > 2:
			return ArgList{}, fmt.Errorf("%w: too many fields in argument specifier %q", ErrBadArgList, elem)
		}
		arg := Arg{Name: parts[0]}
		if strings.Contains(arg.Name, "::") {
			return ArgList{}, fmt.Errorf("%w: bad argument name %q", ErrBadArgList, arg.Name)
		}
		if _, dup := seen[arg.Name]; dup {
			return ArgList{}, fmt.Errorf("%w: argument %q is not unique", ErrBadArgList, arg.Name)
		}
		seen[arg.Name] = struct{}{}
		if len(parts) == 2 {
			arg.Default = parts[1]
			arg.HasDefault = true
		}
		if arg.Name == "args" && idx != len(elems)-1 {
			return ArgList{}, fmt.Errorf("%w: \"args\" must be the last argument", ErrBadArgList)
		}
		switch {
		case arg.Name == "args" && idx == len(elems)-1:
			usage = append(usage, "?arg arg ...?")
			list.MaxArgCount = -1
		case arg.HasDefault:
			usage = append(usage, "?"+arg.Name+"?")
		default:
			usage = append(usage, arg.Name)
		}
		list.Args = append(list.Args, arg)
	}
	list.ArgCount = len(list.Args)
	if list.MaxArgCount != -1 {
		list.MaxArgCount = list.ArgCount
	}
	list.Usage = strings.Join(usage, " ")
	return list, nil
}

// MustParseArgList is ParseArgList that panics on error.
func MustParseArgList(spec string) ArgList {
	list, err := ParseArgList(spec)
	if err != nil {
		panic(err)
	}
	return list
}

// Spec returns the specification the list was parsed from.
func (l ArgList) Spec() string {
	return l.spec
}

// Variadic reports whether the list ends in `args`.
func (l ArgList) Variadic() bool {
	return l.MaxArgCount == -1
}

// Names returns the declared argument names in order.
func (l ArgList) Names() []string {
	names := make([]string, len(l.Args))
	for i, arg := range l.Args {
		names[i] = arg.Name
	}
	return names
}

// Bind pairs actual values with formal parameters. Missing optional arguments
// take their defaults; surplus values are collected into `args`, both as a list
// string in the map and as the returned slice.
func (l ArgList) Bind(command string, values []string) (map[string]string, []string, error) {
	bound := make(map[string]string, len(l.Args))
	fixed := l.Args
	if l.Variadic() {
		fixed = l.Args[:len(l.Args)-1]
	}
	if !l.Variadic() && len(values) > len(fixed) {
		return nil, nil, l.wrongArgs(command)
	}
	for i, arg := range fixed {
		switch {
		case i < len(values):
			bound[arg.Name] = values[i]
		case arg.HasDefault:
			bound[arg.Name] = arg.Default
		default:
			return nil, nil, l.wrongArgs(command)
		}
	}
	var rest []string
	if l.Variadic() {
		if len(values) > len(fixed) {
			rest = append(rest, values[len(fixed):]...)
		}
		bound["args"] = JoinList(rest)
	}
	return bound, rest, nil
}

func (l ArgList) wrongArgs(command string) error {
	usage := command
	if l.Usage != "" {
		usage += " " + l.Usage
	}
	return resolutionErrorf(ErrWrongArgs, command, "wrong # args: should be %q", usage)
}

// sameSignature compares two lists the way body redefinition requires.
func (l ArgList) sameSignature(other ArgList) bool {
	if len(l.Args) != len(other.Args) {
		return false
	}
	for i := range l.Args {
		if l.Args[i] != other.Args[i] {
			return false
		}
	}
	return true
}
