package itcl

import (
	"context"
	"fmt"
	"strings"
)

type varLookup struct {
	v          *Variable
	accessible bool
	ambiguous  bool
}

type cmdLookup struct {
	fn        *Function
	ambiguous bool
}

// qualifiedNames lists every name a member can be reached by, least qualified
// first: x, Class::x, ns::Class::x, ::ns::Class::x.
func qualifiedNames(classFullName, member string) []string {
	segs := strings.Split(strings.TrimPrefix(classFullName, "::"), "::")
	names := []string{member}
	qual := member
	for i := len(segs) - 1; i >= 0; i-- {
		qual = segs[i] + "::" + qual
		names = append(names, qual)
	}
	return append(names, "::"+qual)
}

// buildResolveTables fills resolveVars and resolveCmds. Classes are visited
// most-derived first so the simplest name of a member goes to the most
// specific declaration; qualified names always reach their own declaration.
func (c *Class) buildResolveTables() {
	if c.resolveVars != nil && c.resolveCmds != nil {
		return
	}
	vars := make(map[string]*varLookup)
	cmds := make(map[string]*cmdLookup)
	owners := make(map[string]*Class)
	count := 0
	it := NewHierIter(c, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		for _, v := range cls.variables.values() {
			if !v.Common() {
				count++
			}
			accessible := v.Protection != Private || cls == c
			for i, name := range qualifiedNames(cls.FullName, v.Name) {
				if existing, taken := vars[name]; taken {
					if i == 0 && !owners["v:"+name].IsA(cls) {
						existing.ambiguous = true
					}
					continue
				}
				vars[name] = &varLookup{v: v, accessible: accessible}
				if i == 0 {
					owners["v:"+name] = cls
				}
			}
		}
		for _, fn := range cls.functions.values() {
			for i, name := range qualifiedNames(cls.FullName, fn.Name) {
				if existing, taken := cmds[name]; taken {
					if i == 0 && !owners["f:"+name].IsA(cls) {
						existing.ambiguous = true
					}
					continue
				}
				cmds[name] = &cmdLookup{fn: fn}
				if i == 0 {
					owners["f:"+name] = cls
				}
			}
		}
	}
	c.resolveVars = vars
	c.resolveCmds = cmds
	c.numInstanceVars = count
}

func (c *Class) lookupVar(name string) (*varLookup, bool) {
	c.buildResolveTables()
	lookup, ok := c.resolveVars[name]
	return lookup, ok
}

func (c *Class) lookupCmd(name string) (*cmdLookup, bool) {
	c.buildResolveTables()
	lookup, ok := c.resolveCmds[name]
	return lookup, ok
}

// Frame is the view a running member body has of its invocation: the bound
// arguments plus the call context used to resolve object and class names.
// Frame implements Resolver.
type Frame struct {
	reg     *Registry
	context *CallContext
	Code    *MemberCode
	Args    map[string]string
	Rest    []string
	Command string
}

var _ Resolver = (*Frame)(nil)

// Registry returns the registry the frame belongs to.
func (f *Frame) Registry() *Registry { return f.reg }

// Context returns the active call context.
func (f *Frame) Context() *CallContext { return f.context }

// Object returns the object the member runs for, or nil in procs.
func (f *Frame) Object() *Object { return f.context.Object }

// Class returns the class whose declaration is running.
func (f *Frame) Class() *Class { return f.context.Class }

// Function returns the running member.
func (f *Frame) Function() *Function { return f.context.Member }

// Arg returns a bound argument.
func (f *Frame) Arg(name string) string {
	return f.Args[name]
}

// Var reads a variable through the resolver.
func (f *Frame) Var(name string) (string, error) {
	ref, ok := f.ResolveVariable(name)
	if !ok {
		return "", resolutionErrorf(ErrUnknownMember, name, "can't read %q: no such variable", name)
	}
	return ref.Get()
}

// SetVar writes a variable through the resolver.
func (f *Frame) SetVar(name, value string) error {
	ref, ok := f.ResolveVariable(name)
	if !ok {
		return resolutionErrorf(ErrUnknownMember, name, "can't set %q: no such variable", name)
	}
	return ref.Set(value)
}

// Call resolves a command name from the frame and invokes it.
func (f *Frame) Call(ctx context.Context, name string, args ...string) (string, error) {
	ref, ok := f.ResolveCommand(name)
	if !ok {
		return "", resolutionErrorf(ErrUnknownMember, name, "invalid command name %q", name)
	}
	return ref.Invoke(ctx, args...)
}

// ResolveVariable searches object-level names first, then the declaring
// class's table, which covers the class and then its ancestors.
func (f *Frame) ResolveVariable(name string) (VarRef, bool) {
	obj := f.context.Object
	if obj != nil {
		if name == "this" {
			return thisRef{obj: obj}, true
		}
		if mv, ok := obj.methodVariables[name]; ok {
			return methodVarRef{obj: obj, mv: mv}, true
		}
	}
	cls := f.context.Class
	if cls == nil {
		return nil, false
	}
	lookup, ok := cls.lookupVar(name)
	if !ok || !lookup.accessible {
		return nil, false
	}
	if lookup.ambiguous && f.reg.config.StrictInheritance && !strings.Contains(name, "::") {
		return ambiguousRef{name: name, cls: cls}, true
	}
	if lookup.v.Common() {
		return commonRef{v: lookup.v}, true
	}
	if obj == nil {
		return nil, false
	}
	return instanceRef{obj: obj, v: lookup.v}, true
}

// ResolveCommand looks the name up through the declaring class. Unqualified,
// non-private methods are then re-resolved through the object's own class so
// that overrides win.
func (f *Frame) ResolveCommand(name string) (CommandRef, bool) {
	obj := f.context.Object
	cls := f.context.Class
	if cls != nil {
		if lookup, ok := cls.lookupCmd(name); ok {
			fn := lookup.fn
			qualified := strings.Contains(name, "::")
			if lookup.ambiguous && !qualified && f.reg.config.StrictInheritance {
				return ambiguousRef{name: name, cls: cls}, true
			}
			if !qualified && obj != nil && !fn.Proc() && fn.Protection != Private {
				if virtual, ok := obj.class.lookupCmd(fn.Name); ok && virtual.fn.Protection != Private && !virtual.fn.Proc() {
					fn = virtual.fn
				}
			}
			return functionRef{frame: f, fn: fn, name: name}, true
		}
	}
	if obj != nil && obj.respondsTo(name) {
		return objectRef{frame: f, obj: obj, name: name}, true
	}
	return nil, false
}

type thisRef struct{ obj *Object }

func (r thisRef) Name() string { return "this" }
func (r thisRef) Get() (string, error) { return r.obj.Name, nil }
func (r thisRef) Set(string) error {
	return resolutionErrorf(ErrReadOnlyOption, "this", "can't set \"this\": variable is read-only")
}

type instanceRef struct {
	obj *Object
	v   *Variable
}

func (r instanceRef) Name() string { return r.v.FullName }

func (r instanceRef) Get() (string, error) {
	if err := r.obj.checkAlive(); err != nil {
		return "", err
	}
	return r.obj.vars[r.v], nil
}

func (r instanceRef) Set(value string) error {
	if err := r.obj.checkAlive(); err != nil {
		return err
	}
	r.obj.vars[r.v] = value
	return nil
}

type commonRef struct{ v *Variable }

func (r commonRef) Name() string { return r.v.FullName }
func (r commonRef) Get() (string, error) { return r.v.Class.commons[r.v], nil }
func (r commonRef) Set(value string) error {
	r.v.Class.commons[r.v] = value
	return nil
}

type methodVarRef struct {
	obj *Object
	mv  *MethodVariable
}

func (r methodVarRef) Name() string { return r.mv.FullName }
func (r methodVarRef) Get() (string, error) { return r.obj.mvValues[r.mv], nil }
func (r methodVarRef) Set(value string) error {
	r.obj.mvValues[r.mv] = value
	return nil
}

type ambiguousRef struct {
	name string
	cls  *Class
}

func (r ambiguousRef) err() error {
	return resolutionErrorf(ErrAmbiguousMember, r.name, "ambiguous inherited member %q in class %q: qualify it with a base class name", r.name, r.cls.FullName)
}

func (r ambiguousRef) Name() string { return r.name }
func (r ambiguousRef) Get() (string, error) { return "", r.err() }
func (r ambiguousRef) Set(string) error { return r.err() }
func (r ambiguousRef) Invoke(context.Context, ...string) (string, error) {
	return "", r.err()
}

type functionRef struct {
	frame *Frame
	fn    *Function
	name  string
}

func (r functionRef) Name() string { return r.fn.FullName }

func (r functionRef) Invoke(ctx context.Context, args ...string) (string, error) {
	caller := r.frame.context
	obj := caller.Object
	if r.fn.Flags&FlagConstructor != 0 {
		if obj == nil || obj.flags&ObjectConstructing == 0 {
			return "", resolutionErrorf(ErrProtection, r.name, "constructor for class %q can only be invoked while an object is constructed", r.fn.Class.FullName)
		}
		return "", r.frame.reg.constructExplicit(ctx, obj, r.fn.Class, args)
	}
	if r.fn.Flags&FlagDestructor != 0 {
		return "", resolutionErrorf(ErrProtection, r.name, "destructor for class %q cannot be invoked directly", r.fn.Class.FullName)
	}
	if r.fn.Proc() {
		obj = nil
	}
	return r.frame.reg.callFunction(ctx, caller.Class, obj, r.fn, args)
}

type objectRef struct {
	frame *Frame
	obj   *Object
	name  string
}

func (r objectRef) Name() string { return r.name }

func (r objectRef) Invoke(ctx context.Context, args ...string) (string, error) {
	return r.frame.reg.dispatch(ctx, r.frame.context.Class, r.obj, append([]string{r.name}, args...))
}

func (f *Frame) String() string {
	if obj := f.context.Object; obj != nil {
		return fmt.Sprintf("%s (%s)", f.context.Member.FullName, obj.Name)
	}
	return f.context.Member.FullName
}
