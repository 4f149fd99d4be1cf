package itcl

import (
	"context"
	"sort"
	"strings"
)

// classCommand is installed for every class: `Class objName ?args...?`.
type classCommand struct {
	reg *Registry
	cls *Class
}

func (c classCommand) Dispatch(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", resolutionErrorf(ErrWrongArgs, c.cls.FullName, "wrong # args: should be \"%s objName ?arg arg ...?\"", commandKey(c.cls.FullName))
	}
	obj, err := c.reg.CreateObject(ctx, c.cls, args[0], args[1:])
	if err != nil {
		return "", err
	}
	return obj.Name, nil
}

// procCommand is installed as Class::proc for every proc.
type procCommand struct {
	reg *Registry
	fn  *Function
}

func (c procCommand) Dispatch(ctx context.Context, args []string) (string, error) {
	return c.reg.callFunction(ctx, c.reg.callerClass(), nil, c.fn, args)
}

// objectCommand is installed for every object: `obj method ?args...?`.
type objectCommand struct {
	reg *Registry
	obj *Object
}

func (c objectCommand) Dispatch(ctx context.Context, args []string) (string, error) {
	return c.reg.dispatch(ctx, c.reg.callerClass(), c.obj, args)
}

func (r *Registry) callerClass() *Class {
	if cc := r.CurrentContext(); cc != nil {
		return cc.Class
	}
	return nil
}

// Invoke dispatches `obj method args...` as if called from outside any class.
func (r *Registry) Invoke(ctx context.Context, object string, args ...string) (string, error) {
	obj, ok := r.Object(object)
	if !ok {
		return "", resolutionErrorf(ErrUnknownObject, object, "object %q not found", object)
	}
	return r.dispatch(ctx, nil, obj, args)
}

// CallProc invokes a public proc by its qualified name, e.g. "Counter::total".
func (r *Registry) CallProc(ctx context.Context, name string, args ...string) (string, error) {
	idx := strings.LastIndex(name, "::")
	if idx <= 0 {
		return "", resolutionErrorf(ErrUnknownMember, name, "proc %q must be qualified by its class", name)
	}
	cls, ok := r.Class(name[:idx])
	if !ok {
		return "", resolutionErrorf(ErrUnknownClass, name[:idx], "class %q not found", name[:idx])
	}
	fn, ok := cls.FindFunction(name[idx+2:])
	if !ok || !fn.Proc() {
		return "", resolutionErrorf(ErrUnknownMember, name, "proc %q not found", name)
	}
	return r.callFunction(ctx, nil, nil, fn, args)
}

// dispatch resolves a method name for obj: specific delegated function, class
// function, method variable, the built-ins, then wildcard delegation.
func (r *Registry) dispatch(ctx context.Context, caller *Class, obj *Object, args []string) (string, error) {
	if err := obj.checkAlive(); err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", resolutionErrorf(ErrWrongArgs, obj.Name, "wrong # args: should be \"%s option ?arg arg ...?\"", obj.Name)
	}
	name, rest := args[0], args[1:]

	if d, ok := obj.delegatedFunction(name); ok {
		return r.forwardFunction(ctx, obj, d, name, rest)
	}
	if lookup, ok := obj.class.lookupCmd(name); ok {
		fn := lookup.fn
		if lookup.ambiguous && r.config.StrictInheritance && !strings.Contains(name, "::") {
			return "", resolutionErrorf(ErrAmbiguousMember, name, "ambiguous inherited member %q in class %q: qualify it with a base class name", name, obj.class.FullName)
		}
		if fn.Flags&(FlagConstructor|FlagDestructor) != 0 {
			return "", resolutionErrorf(ErrProtection, name, "%q can't be invoked directly on object %q", fn.Name, obj.Name)
		}
		if fn.Proc() {
			return r.callFunction(ctx, caller, nil, fn, rest)
		}
		return r.callFunction(ctx, caller, obj, fn, rest)
	}
	if mv, ok := obj.methodVariables[name]; ok {
		return r.methodVariable(ctx, caller, obj, mv, rest)
	}
	if result, ok, err := r.builtin(ctx, obj, name, rest); ok {
		return result, err
	}
	if d, ok := obj.delegatedFunction("*"); ok && !d.Excepts(name) {
		return r.forwardFunction(ctx, obj, d, name, rest)
	}
	return "", resolutionErrorf(ErrUnknownMember, name, "bad option %q: should be one of...\n  %s", name, strings.Join(r.usageLines(caller, obj), "\n  "))
}

// builtin runs the methods every object has. They are found before wildcard
// delegation so that a component never takes over cget or configure.
func (r *Registry) builtin(ctx context.Context, obj *Object, name string, rest []string) (string, bool, error) {
	switch name {
	case "cget":
		if len(rest) != 1 {
			return "", true, resolutionErrorf(ErrWrongArgs, name, "wrong # args: should be \"%s cget -option\"", obj.Name)
		}
		result, err := r.cget(ctx, obj, rest[0])
		return result, true, err
	case "configure":
		result, err := r.configure(ctx, obj, rest)
		return result, true, err
	case "isa":
		if len(rest) != 1 {
			return "", true, resolutionErrorf(ErrWrongArgs, name, "wrong # args: should be \"%s isa className\"", obj.Name)
		}
		cls, ok := r.Class(rest[0])
		if !ok {
			return "", true, resolutionErrorf(ErrUnknownClass, rest[0], "class %q not found", rest[0])
		}
		if obj.IsA(cls) {
			return "1", true, nil
		}
		return "0", true, nil
	case "info":
		result, err := r.info(obj, rest)
		return result, true, err
	}
	return "", false, nil
}

func (r *Registry) usageLines(caller *Class, obj *Object) []string {
	var lines []string
	seen := map[string]struct{}{}
	it := NewHierIter(obj.class, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		for _, fn := range cls.functions.values() {
			if _, dup := seen[fn.Name]; dup || fn.Flags&(FlagConstructor|FlagDestructor) != 0 {
				continue
			}
			seen[fn.Name] = struct{}{}
			if !canAccess(caller, fn.Member) {
				continue
			}
			usage := obj.Name + " " + fn.Name
			if fn.Code.Args.Usage != "" {
				usage += " " + fn.Code.Args.Usage
			}
			lines = append(lines, usage)
		}
	}
	for _, builtin := range []string{"cget -option", "configure ?-option? ?value -option value...?", "isa className", "info option ?arg arg ...?"} {
		lines = append(lines, obj.Name+" "+builtin)
	}
	sort.Strings(lines)
	return lines
}

// canAccess applies member protection for a call made from caller's methods.
// A nil caller is code outside any class.
func canAccess(caller *Class, m Member) bool {
	switch m.Protection {
	case Private:
		return caller == m.Class
	case Protected:
		return caller != nil && (caller.IsA(m.Class) || m.Class.IsA(caller))
	default:
		return true
	}
}

func (r *Registry) callFunction(ctx context.Context, caller *Class, obj *Object, fn *Function, args []string) (string, error) {
	if !canAccess(caller, fn.Member) {
		return "", resolutionErrorf(ErrProtection, fn.Name, "can't access %q: %s function", fn.FullName, fn.Protection)
	}
	return r.invokeFunction(ctx, obj, fn, args)
}

// invokeFunction binds args and runs fn without protection checks.
func (r *Registry) invokeFunction(ctx context.Context, obj *Object, fn *Function, args []string) (string, error) {
	if !fn.Code.Implemented() {
		return "", resolutionErrorf(ErrUnknownMember, fn.FullName, "member function %q is not defined and cannot be autoloaded", fn.FullName)
	}
	command := commandKey(fn.FullName)
	if obj != nil {
		command = obj.Name + " " + fn.Name
	}
	bound, rest, err := fn.Code.Args.Bind(command, args)
	if err != nil {
		return "", err
	}
	return r.runCode(ctx, obj, fn.Class, fn, fn.Code, bound, rest)
}

// runCode executes member code inside a pushed call context.
func (r *Registry) runCode(ctx context.Context, obj *Object, cls *Class, member *Function, code *MemberCode, bound map[string]string, rest []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cc, err := r.PushContext(obj, cls, member)
	if err != nil {
		return "", err
	}
	frame := &Frame{reg: r, context: cc, Code: code, Args: bound, Rest: rest, Command: member.FullName}
	var result string
	switch code.Implementation() {
	case ImplementNative:
		result, err = code.Native(ctx, frame)
	case ImplementScript:
		result, err = r.host.Eval(ctx, frame, code.Body)
	default:
		err = resolutionErrorf(ErrUnknownMember, member.FullName, "member %q has no implementation", member.FullName)
	}
	if perr := r.PopContext(cc); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return "", withFrame(err, cc.frame())
	}
	return result, nil
}

// methodVariable reads the variable with no arguments and sets it with one.
// A callback method runs with the new value first; if it fails the value is
// left unchanged.
func (r *Registry) methodVariable(ctx context.Context, caller *Class, obj *Object, mv *MethodVariable, args []string) (string, error) {
	if !canAccess(caller, mv.Member) {
		return "", resolutionErrorf(ErrProtection, mv.Name, "can't access %q: %s methodvariable", mv.FullName, mv.Protection)
	}
	switch len(args) {
	case 0:
		return obj.mvValues[mv], nil
	case 1:
		if mv.Callback != "" {
			if _, err := r.callInternal(ctx, obj, mv.Callback, args[0]); err != nil {
				return "", err
			}
		}
		obj.mvValues[mv] = args[0]
		return args[0], nil
	default:
		return "", resolutionErrorf(ErrWrongArgs, mv.Name, "wrong # args: should be \"%s %s ?value?\"", obj.Name, mv.Name)
	}
}

// callInternal runs a hook method of obj named by a class declaration. Hooks
// bypass protection: private hooks are common.
func (r *Registry) callInternal(ctx context.Context, obj *Object, method string, args ...string) (string, error) {
	if lookup, ok := obj.class.lookupCmd(method); ok {
		fn := lookup.fn
		if fn.Proc() {
			return r.invokeFunction(ctx, nil, fn, args)
		}
		return r.invokeFunction(ctx, obj, fn, args)
	}
	return r.dispatch(ctx, obj.class, obj, append([]string{method}, args...))
}

// respondsTo reports whether dispatch on obj can handle name without a class function.
func (o *Object) respondsTo(name string) bool {
	if _, ok := o.methodVariables[name]; ok {
		return true
	}
	if _, ok := o.delegatedFunction(name); ok {
		return true
	}
	if d, ok := o.delegatedFunction("*"); ok && !d.Excepts(name) {
		return true
	}
	switch name {
	case "cget", "configure", "isa", "info":
		return true
	}
	return false
}

func (r *Registry) info(obj *Object, args []string) (string, error) {
	if len(args) == 0 {
		return "", resolutionErrorf(ErrWrongArgs, "info", "wrong # args: should be \"%s info option ?arg arg ...?\"", obj.Name)
	}
	var names []string
	switch args[0] {
	case "class":
		return obj.class.FullName, nil
	case "heritage":
		for _, cls := range obj.class.Heritage() {
			names = append(names, cls.FullName)
		}
	case "function":
		for _, cls := range obj.class.Heritage() {
			for _, fn := range cls.functions.values() {
				names = append(names, fn.FullName)
			}
		}
	case "variable":
		for _, cls := range obj.class.Heritage() {
			for _, v := range cls.variables.values() {
				names = append(names, v.FullName)
			}
		}
	case "option":
		for name := range obj.options {
			names = append(names, name)
		}
		sort.Strings(names)
	case "component":
		for _, cls := range obj.class.Heritage() {
			for _, comp := range cls.components.values() {
				names = append(names, comp.Name)
			}
		}
	case "delegated":
		if len(args) != 2 || (args[1] != "option" && args[1] != "method") {
			return "", resolutionErrorf(ErrWrongArgs, "info", "wrong # args: should be \"%s info delegated option|method\"", obj.Name)
		}
		names = obj.delegatedNames(args[1] == "option")
	default:
		return "", resolutionErrorf(ErrUnknownMember, args[0], "bad info option %q: must be class, component, delegated, function, heritage, option or variable", args[0])
	}
	return JoinList(names), nil
}

func (r *Registry) notSet(obj *Object, comp *Component) error {
	return resolutionErrorf(ErrDelegationTarget, comp.Name, "component %q of object %q is not set", comp.Name, obj.Name)
}

func (r *Registry) componentValue(obj *Object, comp *Component) (string, error) {
	var value string
	if comp.Variable.Common() {
		value = comp.Variable.Class.commons[comp.Variable]
	} else {
		value = obj.vars[comp.Variable]
	}
	if strings.TrimSpace(value) == "" {
		return "", r.notSet(obj, comp)
	}
	return value, nil
}
