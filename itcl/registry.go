package itcl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Registry is the catalog of every class and object defined against one host.
// It is not safe for concurrent use: all calls must come from the host's
// single thread of control.
type Registry struct {
	host   Host
	config Config
	log    logrus.FieldLogger

	arena      []*Class
	classes    map[string]*Class
	objects    map[string]*Object
	classMeta  map[Handle]*Class
	objectMeta map[Handle]*Object
	natives    map[string]NativeFunc

	classStack   Stack[*Class]
	contexts     Stack[*CallContext]
	constructing Stack[*Object]
	liveContexts int
	closed       bool
}

// NewRegistry constructs a registry bound to host, filling zero config fields
// with defaults.
func NewRegistry(host Host, cfg Config) (*Registry, error) {
	if host == nil {
		return nil, fmt.Errorf("itcl: registry requires a host")
	}
	cfg = cfg.withDefaults()
	return &Registry{
		host:       host,
		config:     cfg,
		log:        cfg.Logger,
		classes:    make(map[string]*Class),
		objects:    make(map[string]*Object),
		classMeta:  make(map[Handle]*Class),
		objectMeta: make(map[Handle]*Object),
		natives:    make(map[string]NativeFunc),
	}, nil
}

// MustNewRegistry panics if the registry cannot be constructed.
func MustNewRegistry(host Host, cfg Config) *Registry {
	reg, err := NewRegistry(host, cfg)
	if err != nil {
		panic(err)
	}
	return reg
}

// Host returns the interpreter the registry installs commands into.
func (r *Registry) Host() Host {
	return r.host
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.config
}

// RegisterNative makes fn available to bodies written as `@name`.
func (r *Registry) RegisterNative(name string, fn NativeFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("itcl: native implementation requires a name and a function")
	}
	if _, exists := r.natives[name]; exists {
		return fmt.Errorf("itcl: native implementation %q already registered", name)
	}
	r.natives[name] = fn
	return nil
}

func commandKey(name string) string {
	return strings.TrimPrefix(name, "::")
}

func (r *Registry) commandTaken(name string) bool {
	key := commandKey(name)
	if _, ok := r.classes[key]; ok {
		return true
	}
	_, ok := r.objects[key]
	return ok
}

func (r *Registry) resolveIDs(ids []classID) []*Class {
	out := make([]*Class, 0, len(ids))
	for _, id := range ids {
		if int(id) < len(r.arena) && r.arena[id] != nil {
			out = append(out, r.arena[id])
		}
	}
	return out
}

// BeginClass registers a new class and makes it the current definition.
// Classes begun while another is open are nested inside it.
func (r *Registry) BeginClass(name string) (*Class, error) {
	if r.closed {
		return nil, definitionErrorf(ErrClassDeleted, name, "registry is closed")
	}
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t\n") {
		return nil, definitionErrorf(ErrBadName, name, "bad class name %q", name)
	}
	fullName := "::" + commandKey(name)
	if outer, ok := r.classStack.Peek(); ok && !strings.HasPrefix(name, "::") {
		fullName = outer.FullName + "::" + name
	}
	if r.commandTaken(fullName) {
		return nil, definitionErrorf(ErrDuplicateName, fullName, "class %q: command already exists with that name", commandKey(fullName))
	}
	simple := fullName[strings.LastIndex(fullName, "::")+2:]
	cls := newClass(r, classID(len(r.arena)), simple, fullName)
	r.arena = append(r.arena, cls)
	r.classes[commandKey(fullName)] = cls
	r.classStack.Push(cls)
	r.log.WithField("class", fullName).Debug("class definition started")
	return cls, nil
}

// CurrentClass returns the innermost class being defined.
func (r *Registry) CurrentClass() (*Class, bool) {
	return r.classStack.Peek()
}

// EndClass seals cls, binds its native bodies and installs its access command.
// On failure the class is aborted.
func (r *Registry) EndClass(cls *Class) error {
	top, ok := r.classStack.Peek()
	if !ok {
		return &Error{Kind: DefinitionError, Op: "end class", Message: "no class definition in progress", Err: ErrStackEmpty}
	}
	if top != cls {
		return definitionErrorf(ErrSealed, cls.FullName, "class %q is not the innermost definition (%q is)", cls.FullName, top.FullName)
	}
	if err := r.sealClass(cls); err != nil {
		r.AbortClass(cls)
		return err
	}
	_, _ = r.classStack.Pop()
	r.log.WithField("class", cls.FullName).Debug("class defined")
	return nil
}

func (r *Registry) sealClass(cls *Class) error {
	codes := []*MemberCode{cls.initCode}
	if cls.constructorInit != nil {
		codes = append(codes, cls.constructorInit.Code)
	}
	for _, fn := range cls.functions.values() {
		codes = append(codes, fn.Code)
	}
	for _, v := range cls.variables.values() {
		codes = append(codes, v.Config)
	}
	for _, code := range codes {
		if err := code.bindNative(r.natives); err != nil {
			return definitionErrorf(ErrUnknownMember, cls.FullName, "class %q: %v", cls.FullName, err)
		}
	}
	key := commandKey(cls.FullName)
	handle, err := r.host.InstallCommand(key, classCommand{reg: r, cls: cls})
	if err != nil {
		return &Error{Kind: DefinitionError, Op: "install class command", Name: cls.FullName, Message: fmt.Sprintf("class %q: %v", cls.FullName, err), Err: err}
	}
	cls.handle = handle
	r.classMeta[handle] = cls
	for _, fn := range cls.functions.values() {
		if !fn.Proc() {
			continue
		}
		name := key + "::" + fn.Name
		h, err := r.host.InstallCommand(name, procCommand{reg: r, fn: fn})
		if err != nil {
			return &Error{Kind: DefinitionError, Op: "install proc command", Name: name, Message: fmt.Sprintf("proc %q: %v", name, err), Err: err}
		}
		cls.procHandles[fn.Name] = h
	}
	cls.flags |= ClassSealed
	return nil
}

// AbortClass removes a class whose definition failed, together with any class
// nested inside it. Nothing of it stays registered.
func (r *Registry) AbortClass(cls *Class) {
	for {
		top, ok := r.classStack.Peek()
		if !ok {
			break
		}
		_, _ = r.classStack.Pop()
		if top == cls {
			break
		}
		r.forgetClass(top)
	}
	prefix := commandKey(cls.FullName) + "::"
	for key, nested := range r.classes {
		if strings.HasPrefix(key, prefix) {
			r.forgetClass(nested)
		}
	}
	r.forgetClass(cls)
	r.log.WithField("class", cls.FullName).Debug("class definition aborted")
}

// forgetClass drops every trace of cls from the registry and the host.
// Classes still deriving from cls are deleted with it.
func (r *Registry) forgetClass(cls *Class) {
	if cls.flags&ClassDeleted != 0 {
		return
	}
	for _, d := range cls.Derived() {
		r.ignore(r.deleteClass(context.Background(), d, true), "class", d.FullName)
	}
	r.unlink(cls)
	key := commandKey(cls.FullName)
	if cls.handle != nil {
		delete(r.classMeta, cls.handle)
		r.ignore(r.host.DeleteCommand(key), "class", cls.FullName)
	}
	for name := range cls.procHandles {
		r.ignore(r.host.DeleteCommand(key+"::"+name), "class", cls.FullName)
	}
	if r.classes[key] == cls {
		delete(r.classes, key)
	}
	if int(cls.id) < len(r.arena) {
		r.arena[cls.id] = nil
	}
	cls.derived = nil
	cls.flags |= ClassDeleted
}

// DefineClass runs body against a fresh class and seals it. If body fails the
// class is aborted and the error returned.
func (r *Registry) DefineClass(name string, body func(*Class) error) (*Class, error) {
	cls, err := r.BeginClass(name)
	if err != nil {
		return nil, err
	}
	if body != nil {
		if err := body(cls); err != nil {
			r.AbortClass(cls)
			return nil, err
		}
	}
	if err := r.EndClass(cls); err != nil {
		return nil, err
	}
	return cls, nil
}

// Class returns a defined class by name, qualified or not.
func (r *Registry) Class(name string) (*Class, bool) {
	cls, ok := r.classes[commandKey(name)]
	if ok && cls.flags&ClassDeleted == 0 {
		return cls, true
	}
	return nil, false
}

// Classes returns every registered class sorted by full name.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.classes))
	for _, cls := range r.classes {
		out = append(out, cls)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

// Object returns a live object by name.
func (r *Registry) Object(name string) (*Object, bool) {
	obj, ok := r.objects[commandKey(name)]
	return obj, ok
}

// Objects returns every registered object sorted by name.
func (r *Registry) Objects() []*Object {
	out := make([]*Object, 0, len(r.objects))
	for _, obj := range r.objects {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsClassCommand reports whether name is a class access command.
func (r *Registry) IsClassCommand(name string) bool {
	cls, ok := r.classes[commandKey(name)]
	return ok && cls.Sealed()
}

// IsObjectCommand reports whether name is an object access command.
func (r *Registry) IsObjectCommand(name string) bool {
	_, ok := r.objects[commandKey(name)]
	return ok
}

// ClassFromHandle recovers the class attached to a host command handle.
func (r *Registry) ClassFromHandle(h Handle) (*Class, bool) {
	cls, ok := r.classMeta[h]
	return cls, ok
}

// ObjectFromHandle recovers the object attached to a host command handle.
func (r *Registry) ObjectFromHandle(h Handle) (*Object, bool) {
	obj, ok := r.objectMeta[h]
	return obj, ok
}

// Constructing returns the object whose constructors are running, if any.
func (r *Registry) Constructing() (*Object, bool) {
	return r.constructing.Peek()
}

// DeleteClass deletes a class, every class derived from it and every object
// whose class is one of them. If an object's destructor fails, deletion
// stops and the class stays defined.
func (r *Registry) DeleteClass(ctx context.Context, name string) error {
	cls, ok := r.Class(name)
	if !ok {
		return resolutionErrorf(ErrUnknownClass, name, "class %q not found", name)
	}
	return r.deleteClass(ctx, cls, false)
}

func (r *Registry) deleteClass(ctx context.Context, cls *Class, ignoreErrors bool) error {
	if cls.flags&ClassDeleted != 0 {
		return nil
	}
	if cls.flags&ClassDeleteCalled != 0 {
		return definitionErrorf(ErrClassDeleted, cls.FullName, "class %q is already being deleted", cls.FullName)
	}
	cls.flags |= ClassDeleteCalled
	for _, d := range cls.Derived() {
		if err := r.deleteClass(ctx, d, ignoreErrors); err != nil {
			cls.flags &^= ClassDeleteCalled
			return err
		}
	}
	for _, obj := range r.Objects() {
		if obj.class != cls {
			continue
		}
		if err := r.deleteObject(ctx, obj, ignoreErrors); err != nil {
			cls.flags &^= ClassDeleteCalled
			return err
		}
	}
	cls.flags |= ClassNSTeardown
	r.forgetClass(cls)
	r.log.WithField("class", cls.FullName).Debug("class deleted")
	return nil
}

// Close destroys every object, ignoring destructor failures, then deletes
// every class. The registry cannot be used afterwards.
func (r *Registry) Close(ctx context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	ctx = context.WithoutCancel(ctx)
	for _, obj := range r.Objects() {
		_ = r.deleteObject(ctx, obj, true)
	}
	for _, cls := range r.Classes() {
		_ = r.deleteClass(ctx, cls, true)
	}
	return nil
}

func (r *Registry) ignore(err error, field, value string) {
	if err == nil {
		return
	}
	r.log.WithField(field, value).WithError(err).Warn("ignoring error during teardown")
}
