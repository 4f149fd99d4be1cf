package itcl

import (
	"context"
	"fmt"
	"strings"
)

// Implementation tells how a member body runs.
type Implementation int

const (
	ImplementNone Implementation = iota
	// ImplementScript bodies are evaluated by the host.
	ImplementScript
	// ImplementNative bodies are Go functions.
	ImplementNative
)

// NativeFunc implements a member in Go.
type NativeFunc func(ctx context.Context, frame *Frame) (string, error)

// MemberCode is the executable part of a member: its argument list plus either
// a host script body or a native function.
type MemberCode struct {
	impl       Implementation
	Args       ArgList
	hasArgSpec bool
	Body       string
	Native     NativeFunc
	// nativeName is set for `@name` bodies until the registry binds them.
	nativeName string
}

// NewScriptCode builds code evaluated by the host. A body of the form `@name`
// refers to a native implementation registered with Registry.RegisterNative and
// is bound when the owning class is defined.
func NewScriptCode(argSpec, body string) (*MemberCode, error) {
	code := &MemberCode{impl: ImplementScript, Body: body}
	if err := code.setArgs(argSpec); err != nil {
		return nil, err
	}
	if name, ok := strings.CutPrefix(strings.TrimSpace(body), "@"); ok && name != "" && !strings.ContainsAny(name, " \t\n") {
		code.impl = ImplementNone
		code.nativeName = name
	}
	return code, nil
}

// NewNativeCode builds code implemented in Go.
func NewNativeCode(argSpec string, fn NativeFunc) (*MemberCode, error) {
	if fn == nil {
		return nil, fmt.Errorf("itcl: native code requires a function")
	}
	code := &MemberCode{impl: ImplementNative, Native: fn}
	if err := code.setArgs(argSpec); err != nil {
		return nil, err
	}
	return code, nil
}

// DeclareCode builds code that has an argument list but no body yet. The body
// is supplied later with Class.SetBody.
func DeclareCode(argSpec string) (*MemberCode, error) {
	code := &MemberCode{}
	if err := code.setArgs(argSpec); err != nil {
		return nil, err
	}
	return code, nil
}

// MustNativeCode is NewNativeCode that panics on error.
func MustNativeCode(argSpec string, fn NativeFunc) *MemberCode {
	code, err := NewNativeCode(argSpec, fn)
	if err != nil {
		panic(err)
	}
	return code
}

// MustScriptCode is NewScriptCode that panics on error.
func MustScriptCode(argSpec, body string) *MemberCode {
	code, err := NewScriptCode(argSpec, body)
	if err != nil {
		panic(err)
	}
	return code
}

func (c *MemberCode) setArgs(argSpec string) error {
	if strings.TrimSpace(argSpec) == "" {
		c.Args = ArgList{}
		return nil
	}
	args, err := ParseArgList(argSpec)
	if err != nil {
		return err
	}
	c.Args = args
	c.hasArgSpec = true
	return nil
}

// Implementation reports how the code runs.
func (c *MemberCode) Implementation() Implementation {
	if c == nil {
		return ImplementNone
	}
	return c.impl
}

// Implemented reports whether the code has a body to run.
func (c *MemberCode) Implemented() bool {
	return c.Implementation() != ImplementNone
}

func (c *MemberCode) bindNative(natives map[string]NativeFunc) error {
	if c == nil || c.nativeName == "" {
		return nil
	}
	fn, ok := natives[c.nativeName]
	if !ok {
		return fmt.Errorf("no native implementation registered for \"@%s\"", c.nativeName)
	}
	c.Native = fn
	c.impl = ImplementNative
	return nil
}
