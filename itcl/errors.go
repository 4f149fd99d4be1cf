package itcl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures reported by the core.
type ErrorKind int

const (
	// DefinitionError is raised while a class is being defined.
	DefinitionError ErrorKind = iota + 1
	// InstantiationError is raised when an object cannot be constructed.
	InstantiationError
	// ResolutionError is raised when a member or delegation target cannot be found at call time.
	ResolutionError
)

func (k ErrorKind) String() string {
	switch k {
	case DefinitionError:
		return "DefinitionError"
	case InstantiationError:
		return "InstantiationError"
	case ResolutionError:
		return "ResolutionError"
	default:
		return "Error"
	}
}

var (
	ErrDuplicateMember  = errors.New("duplicate member")
	ErrDuplicateName    = errors.New("name already in use")
	ErrInheritanceCycle = errors.New("inheritance cycle")
	ErrBadArgList       = errors.New("bad argument list")
	ErrBadName          = errors.New("bad member name")
	ErrUnknownClass     = errors.New("unknown class")
	ErrUnknownObject    = errors.New("unknown object")
	ErrUnknownMember    = errors.New("unknown member")
	ErrAmbiguousMember  = errors.New("ambiguous inherited member")
	ErrDelegationTarget = errors.New("delegation target missing")
	ErrProtection       = errors.New("member not accessible")
	ErrStackEmpty       = errors.New("stack is empty")
	ErrObjectDeleted    = errors.New("object has been deleted")
	ErrClassDeleted     = errors.New("class is being deleted")
	ErrSealed           = errors.New("class definition is sealed")
	ErrReadOnlyOption   = errors.New("read-only option")
	ErrWrongArgs        = errors.New("wrong # args")
	ErrRecursionLimit   = errors.New("recursion limit exceeded")
)

// StackFrame names one member invocation an error passed through.
type StackFrame struct {
	Object string
	Member string
}

// Error is the error type returned by registry operations.
type Error struct {
	Kind    ErrorKind
	Op      string
	Name    string
	Message string
	Frames  []StackFrame
	Err     error
}

const (
	errorFrameHead = 8
	errorFrameTail = 8
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Message == "" && e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	renderFrame := func(frame StackFrame) {
		if frame.Object != "" {
			fmt.Fprintf(&b, "\n  while invoking %s (object %q)", frame.Member, frame.Object)
		} else {
			fmt.Fprintf(&b, "\n  while invoking %s", frame.Member)
		}
	}
	if len(e.Frames) <= errorFrameHead+errorFrameTail {
		for _, frame := range e.Frames {
			renderFrame(frame)
		}
		return b.String()
	}
	for _, frame := range e.Frames[:errorFrameHead] {
		renderFrame(frame)
	}
	fmt.Fprintf(&b, "\n  ... %d frames omitted ...", len(e.Frames)-(errorFrameHead+errorFrameTail))
	for _, frame := range e.Frames[len(e.Frames)-errorFrameTail:] {
		renderFrame(frame)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AssertionError is the panic value for corrupted internal bookkeeping.
type AssertionError struct {
	message string
}

func (e *AssertionError) Error() string {
	return "itcl: internal assertion failed: " + e.message
}

func assert(cond bool, format string, args ...any) {
	if !cond {
		panic(&AssertionError{message: fmt.Sprintf(format, args...)})
	}
}

func definitionErrorf(sentinel error, name, format string, args ...any) *Error {
	return &Error{Kind: DefinitionError, Name: name, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

func resolutionErrorf(sentinel error, name, format string, args ...any) *Error {
	return &Error{Kind: ResolutionError, Name: name, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var itclErr *Error
	if errors.As(err, &itclErr) {
		return itclErr.Kind == kind
	}
	return false
}

// withFrame appends the active member to an error travelling up the call stack.
// Errors from outside the core are wrapped so frames can accumulate.
func withFrame(err error, frame StackFrame) error {
	if err == nil {
		return nil
	}
	var itclErr *Error
	if errors.As(err, &itclErr) {
		itclErr.Frames = append(itclErr.Frames, frame)
		return err
	}
	return &Error{Message: err.Error(), Err: err, Frames: []StackFrame{frame}}
}
