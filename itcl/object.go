package itcl

import (
	"context"
	"fmt"
	"strings"
)

// ObjectFlags track an object through construction and destruction.
type ObjectFlags uint32

const (
	ObjectDeleted ObjectFlags = 1 << iota
	ObjectDestructed
	ObjectRenamed
	ObjectHostDeleted
	ObjectDestructing
	ObjectConstructing
)

// Object is one instance of its most-specific class.
type Object struct {
	Name   string
	class  *Class
	reg    *Registry
	handle Handle

	vars            map[*Variable]string
	options         map[string]*Option
	optionValues    map[string]string
	methodVariables map[string]*MethodVariable
	mvValues        map[*MethodVariable]string

	delegatedOptions   table[*DelegatedOption]
	delegatedFunctions table[*DelegatedFunction]

	constructed  map[classID]struct{}
	destructed   map[classID]struct{}
	contextCache map[*Function]*CallContext
	flags        ObjectFlags
}

func newObject(reg *Registry, cls *Class, name string) *Object {
	obj := &Object{
		Name:               name,
		class:              cls,
		reg:                reg,
		vars:               make(map[*Variable]string),
		options:            make(map[string]*Option),
		optionValues:       make(map[string]string),
		methodVariables:    make(map[string]*MethodVariable),
		mvValues:           make(map[*MethodVariable]string),
		delegatedOptions:   newTable[*DelegatedOption](),
		delegatedFunctions: newTable[*DelegatedFunction](),
		constructed:        make(map[classID]struct{}),
		destructed:         make(map[classID]struct{}),
		contextCache:       make(map[*Function]*CallContext),
	}
	it := NewHierIter(cls, DerivedFirst)
	for c := it.Next(); c != nil; c = it.Next() {
		for _, v := range c.variables.values() {
			if !v.Common() {
				obj.vars[v] = v.Init
			}
		}
		for _, opt := range c.options.values() {
			if _, shadowed := obj.options[opt.Name]; !shadowed {
				obj.options[opt.Name] = opt
				obj.optionValues[opt.Name] = opt.Default
			}
		}
		for _, mv := range c.methodVariables.values() {
			if _, shadowed := obj.methodVariables[mv.Name]; !shadowed {
				obj.methodVariables[mv.Name] = mv
				obj.mvValues[mv] = mv.Default
			}
		}
	}
	return obj
}

func (o *Object) String() string {
	return o.Name
}

// Class returns the object's most-specific class.
func (o *Object) Class() *Class { return o.class }

// Handle returns the host handle of the object's access command.
func (o *Object) Handle() Handle { return o.handle }

// Flags returns the object status flags.
func (o *Object) Flags() ObjectFlags { return o.flags }

// IsA reports whether the object's class is cls or derives from it.
func (o *Object) IsA(cls *Class) bool { return o.class.IsA(cls) }

// Constructed reports whether cls finished its constructor for this object.
func (o *Object) Constructed(cls *Class) bool {
	_, ok := o.constructed[cls.id]
	return ok
}

// Destructed reports whether cls's destructor already ran for this object.
func (o *Object) Destructed(cls *Class) bool {
	_, ok := o.destructed[cls.id]
	return ok
}

// Variable reads an instance or common variable visible from the object's
// class, ignoring protection. Qualified names reach shadowed declarations.
func (o *Object) Variable(name string) (string, bool) {
	lookup, ok := o.class.lookupVar(name)
	if !ok {
		return "", false
	}
	if lookup.v.Common() {
		return lookup.v.Class.commons[lookup.v], true
	}
	value, ok := o.vars[lookup.v]
	return value, ok
}

func (o *Object) checkAlive() error {
	if o.flags&ObjectDeleted != 0 {
		return resolutionErrorf(ErrObjectDeleted, o.Name, "object %q has been deleted", o.Name)
	}
	return nil
}

const maxAutoNameAttempts = 1000

// CreateObject instantiates cls. A "#auto" in name is replaced with a
// generated name. When the class declares no constructor the arguments are
// handed to configure once every class is constructed.
func (r *Registry) CreateObject(ctx context.Context, cls *Class, name string, args []string) (*Object, error) {
	if cls == nil {
		return nil, &Error{Kind: InstantiationError, Op: "create", Name: name, Message: "missing class", Err: ErrUnknownClass}
	}
	if r.closed || cls.flags&(ClassDeleteCalled|ClassDeleted) != 0 {
		return nil, &Error{Kind: InstantiationError, Op: "create", Name: name, Message: fmt.Sprintf("class %q is being deleted", cls.FullName), Err: ErrClassDeleted}
	}
	if !cls.Sealed() {
		return nil, &Error{Kind: InstantiationError, Op: "create", Name: name, Message: fmt.Sprintf("class %q is still being defined", cls.FullName), Err: ErrSealed}
	}
	pattern := name
	auto := strings.Contains(pattern, "#auto")
	var obj *Object
	for attempt := 1; ; attempt++ {
		if auto {
			name = cls.nextAutoName(pattern)
		}
		if name == "" || strings.ContainsAny(name, " \t\n") {
			return nil, &Error{Kind: InstantiationError, Op: "create", Name: name, Message: fmt.Sprintf("bad object name %q", name), Err: ErrBadName}
		}
		if r.commandTaken(name) {
			return nil, &Error{Kind: InstantiationError, Op: "create", Name: name, Message: fmt.Sprintf("command %q already exists in namespace", name), Err: ErrDuplicateName}
		}
		obj = newObject(r, cls, commandKey(name))
		handle, err := r.host.InstallCommand(obj.Name, objectCommand{reg: r, obj: obj})
		if err == nil {
			obj.handle = handle
			break
		}
		// A generated name may collide with a command only the host knows.
		if !auto || attempt == maxAutoNameAttempts {
			return nil, &Error{Kind: InstantiationError, Op: "create", Name: obj.Name, Message: fmt.Sprintf("can't install command for %q: %v", obj.Name, err), Err: err}
		}
	}
	r.objects[obj.Name] = obj
	r.objectMeta[obj.handle] = obj

	obj.flags |= ObjectConstructing
	r.constructing.Push(obj)
	err := r.construct(ctx, obj, cls, args)
	if err == nil && cls.constructor == nil && len(args) > 0 {
		_, err = r.configure(ctx, obj, args)
	}
	popped, _ := r.constructing.Pop()
	assert(popped == obj, "constructor stack out of order")
	obj.flags &^= ObjectConstructing

	if err != nil {
		// Only classes that finished construction are destructed. The unwind
		// still runs when ctx was cancelled.
		_ = r.deleteObject(context.WithoutCancel(ctx), obj, true)
		return nil, &Error{Kind: InstantiationError, Op: "create", Name: obj.Name, Message: fmt.Sprintf("can't create object %q: %v", obj.Name, err), Err: err}
	}
	r.log.WithField("class", cls.FullName).WithField("object", obj.Name).Debug("object created")
	return obj, nil
}

type constructPhase int

const (
	phaseConInit constructPhase = iota
	phaseBases
	phaseBody
)

type constructFrame struct {
	cls      *Class
	args     []string
	bound    map[string]string
	rest     []string
	phase    constructPhase
	nextBase int
}

// construct builds cls and the bases it has not constructed yet. For each
// class the constructor init code runs first and may construct bases
// explicitly; remaining bases follow in declaration order with no arguments,
// then the class init code and the constructor body.
func (r *Registry) construct(ctx context.Context, obj *Object, cls *Class, args []string) error {
	var pending Stack[*constructFrame]
	pending.Push(&constructFrame{cls: cls, args: args})
	for pending.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, _ := pending.Peek()
		switch f.phase {
		case phaseConInit:
			if obj.Constructed(f.cls) {
				_, _ = pending.Pop()
				continue
			}
			f.phase = phaseBases
			if ctor := f.cls.constructor; ctor != nil {
				bound, rest, err := ctor.Code.Args.Bind(obj.Name+" "+f.cls.Name, f.args)
				if err != nil {
					return err
				}
				f.bound, f.rest = bound, rest
				if init := f.cls.constructorInit; init != nil {
					if _, err := r.runCode(ctx, obj, f.cls, init, init.Code, copyArgs(bound), rest); err != nil {
						return err
					}
				}
			} else if f.cls != cls && len(f.args) > 0 {
				return resolutionErrorf(ErrWrongArgs, f.cls.FullName, "class %q has no constructor taking arguments", f.cls.FullName)
			}
		case phaseBases:
			bases := f.cls.Bases()
			for f.nextBase < len(bases) && obj.Constructed(bases[f.nextBase]) {
				f.nextBase++
			}
			if f.nextBase < len(bases) {
				pending.Push(&constructFrame{cls: bases[f.nextBase]})
				f.nextBase++
				continue
			}
			f.phase = phaseBody
		case phaseBody:
			if init := f.cls.initFunc; init != nil {
				if _, err := r.runCode(ctx, obj, f.cls, init, init.Code, map[string]string{}, nil); err != nil {
					return err
				}
			}
			if ctor := f.cls.constructor; ctor != nil && ctor.Code.Implemented() {
				if _, err := r.runCode(ctx, obj, f.cls, ctor, ctor.Code, f.bound, f.rest); err != nil {
					return err
				}
			}
			obj.constructed[f.cls.id] = struct{}{}
			_, _ = pending.Pop()
		}
	}
	return nil
}

// constructExplicit handles `Base::constructor args` from constructor init
// code. A base that is already constructed is left alone.
func (r *Registry) constructExplicit(ctx context.Context, obj *Object, cls *Class, args []string) error {
	if !obj.IsA(cls) {
		return resolutionErrorf(ErrUnknownClass, cls.FullName, "class %q is not a base of %q", cls.FullName, obj.class.FullName)
	}
	if obj.Constructed(cls) {
		return nil
	}
	return r.construct(ctx, obj, cls, args)
}

func copyArgs(bound map[string]string) map[string]string {
	out := make(map[string]string, len(bound))
	for k, v := range bound {
		out[k] = v
	}
	return out
}

// DeleteObject runs the destructors of the object's classes, most-derived
// first, then removes the object and its command. A failing destructor
// leaves the object alive.
func (r *Registry) DeleteObject(ctx context.Context, name string) error {
	obj, ok := r.Object(name)
	if !ok {
		return resolutionErrorf(ErrUnknownObject, name, "object %q not found", name)
	}
	return r.deleteObject(ctx, obj, false)
}

func (r *Registry) deleteObject(ctx context.Context, obj *Object, ignoreErrors bool) error {
	if obj.flags&ObjectDeleted != 0 {
		return nil
	}
	if obj.flags&ObjectDestructing != 0 {
		if ignoreErrors {
			return nil
		}
		return resolutionErrorf(ErrObjectDeleted, obj.Name, "can't delete object %q: already being destructed", obj.Name)
	}
	if obj.flags&ObjectConstructing != 0 && !ignoreErrors {
		return resolutionErrorf(ErrObjectDeleted, obj.Name, "can't delete object %q while it is being constructed", obj.Name)
	}
	obj.flags |= ObjectDestructing
	order := collectHierarchy(obj.class, BaseFirst)
	for i := len(order) - 1; i >= 0; i-- {
		cls := order[i]
		if !obj.Constructed(cls) || obj.Destructed(cls) {
			continue
		}
		if dtor := cls.destructor; dtor != nil && dtor.Code.Implemented() {
			if _, err := r.runCode(ctx, obj, cls, dtor, dtor.Code, map[string]string{}, nil); err != nil {
				if !ignoreErrors {
					obj.flags &^= ObjectDestructing
					return err
				}
				r.log.WithField("object", obj.Name).WithField("class", cls.FullName).WithError(err).Warn("ignoring destructor error")
			}
		}
		obj.destructed[cls.id] = struct{}{}
	}
	obj.flags |= ObjectDestructed
	r.unregisterObject(obj)
	r.log.WithField("object", obj.Name).Debug("object deleted")
	return nil
}

func (r *Registry) unregisterObject(obj *Object) {
	if obj.flags&ObjectHostDeleted == 0 {
		r.ignore(r.host.DeleteCommand(obj.Name), "object", obj.Name)
	}
	delete(r.objectMeta, obj.handle)
	if r.objects[obj.Name] == obj {
		delete(r.objects, obj.Name)
	}
	obj.flags &^= ObjectDestructing
	obj.flags |= ObjectDeleted
	clear(obj.vars)
	clear(obj.contextCache)
}

// RenameObject moves an object to a new command name. Renaming to the empty
// string deletes the object.
func (r *Registry) RenameObject(ctx context.Context, oldName, newName string) error {
	obj, ok := r.Object(oldName)
	if !ok {
		return resolutionErrorf(ErrUnknownObject, oldName, "object %q not found", oldName)
	}
	if newName == "" {
		return r.deleteObject(ctx, obj, false)
	}
	newName = commandKey(newName)
	if r.commandTaken(newName) {
		return resolutionErrorf(ErrDuplicateName, newName, "can't rename to %q: command already exists", newName)
	}
	if err := r.host.RenameCommand(obj.Name, newName); err != nil {
		return &Error{Kind: ResolutionError, Op: "rename", Name: obj.Name, Message: fmt.Sprintf("can't rename %q: %v", obj.Name, err), Err: err}
	}
	delete(r.objects, obj.Name)
	obj.Name = newName
	obj.flags |= ObjectRenamed
	r.objects[newName] = obj
	return nil
}

// CommandDeleted tells the registry that the host removed a command it
// installed. Objects are destroyed with destructor errors ignored; classes
// are deleted together with their instances.
func (r *Registry) CommandDeleted(ctx context.Context, h Handle) error {
	if obj, ok := r.objectMeta[h]; ok {
		obj.flags |= ObjectHostDeleted
		return r.deleteObject(ctx, obj, true)
	}
	if cls, ok := r.classMeta[h]; ok {
		delete(r.classMeta, h)
		cls.handle = nil
		return r.deleteClass(ctx, cls, true)
	}
	return resolutionErrorf(ErrUnknownObject, "", "no class or object is attached to handle %v", h)
}
