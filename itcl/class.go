package itcl

import (
	"fmt"
	"strings"
)

// ClassFlags track a class through definition and teardown.
type ClassFlags uint32

const (
	ClassSealed ClassFlags = 1 << iota
	ClassNSTeardown
	ClassDeleteCalled
	ClassDeleted
)

type classID int

// Class is one type definition.
type Class struct {
	id       classID
	Name     string
	FullName string
	reg      *Registry
	handle   Handle

	bases    []classID
	derived  []classID
	heritage map[classID]struct{}

	variables          table[*Variable]
	options            table[*Option]
	components         table[*Component]
	functions          table[*Function]
	delegatedOptions   table[*DelegatedOption]
	delegatedFunctions table[*DelegatedFunction]
	methodVariables    table[*MethodVariable]

	commons         map[*Variable]string
	constructor     *Function
	destructor      *Function
	constructorInit *Function
	initCode        *MemberCode
	initFunc        *Function
	procHandles     map[string]Handle

	numInstanceVars int
	resolveVars     map[string]*varLookup
	resolveCmds     map[string]*cmdLookup
	contextCache    map[*Function]*CallContext

	unique int
	flags  ClassFlags
}

func newClass(reg *Registry, id classID, name, fullName string) *Class {
	return &Class{
		id:                 id,
		Name:               name,
		FullName:           fullName,
		reg:                reg,
		heritage:           map[classID]struct{}{id: {}},
		variables:          newTable[*Variable](),
		options:            newTable[*Option](),
		components:         newTable[*Component](),
		functions:          newTable[*Function](),
		delegatedOptions:   newTable[*DelegatedOption](),
		delegatedFunctions: newTable[*DelegatedFunction](),
		methodVariables:    newTable[*MethodVariable](),
		commons:            make(map[*Variable]string),
		procHandles:        make(map[string]Handle),
		contextCache:       make(map[*Function]*CallContext),
	}
}

func (c *Class) String() string {
	return c.FullName
}

// Flags returns the class status flags.
func (c *Class) Flags() ClassFlags {
	return c.flags
}

// Sealed reports whether the class definition is complete.
func (c *Class) Sealed() bool {
	return c.flags&ClassSealed != 0
}

// Handle returns the host handle of the class access command.
func (c *Class) Handle() Handle {
	return c.handle
}

// VariableSpec describes a data member.
type VariableSpec struct {
	Protection Protection
	Init       string
	HasInit    bool
	Config     *MemberCode
}

// OptionSpec describes an option member.
type OptionSpec struct {
	Protection      Protection
	ResourceName    string
	ClassName       string
	Default         string
	ReadOnly        bool
	CgetMethod      string
	ConfigureMethod string
	ValidateMethod  string
}

// MethodVariableSpec describes a method variable.
type MethodVariableSpec struct {
	Protection Protection
	Default    string
	Callback   string
}

// ComponentSpec describes a component. Inherit delegates every option and
// method not otherwise handled to the component.
type ComponentSpec struct {
	Protection Protection
	Inherit    bool
}

func (c *Class) checkDefinable(kind, name string) error {
	if c.flags&(ClassDeleteCalled|ClassDeleted) != 0 {
		return definitionErrorf(ErrClassDeleted, name, "class %q is being deleted", c.FullName)
	}
	if c.Sealed() {
		return definitionErrorf(ErrSealed, name, "cannot add %s %q: class %q is already defined", kind, name, c.FullName)
	}
	if name == "" || strings.Contains(name, "::") || strings.ContainsAny(name, " \t\n") {
		return definitionErrorf(ErrBadName, name, "bad %s name %q", kind, name)
	}
	return nil
}

func duplicate(kind string, c *Class, name string) error {
	return definitionErrorf(ErrDuplicateMember, name, "%s %q already defined in class %q", kind, name, c.FullName)
}

// AddVariable declares an instance variable.
func (c *Class) AddVariable(name string, spec VariableSpec) (*Variable, error) {
	return c.addVariable(name, spec, 0)
}

// AddCommon declares a class-level variable shared by every instance.
func (c *Class) AddCommon(name string, spec VariableSpec) (*Variable, error) {
	return c.addVariable(name, spec, FlagCommon)
}

func (c *Class) addVariable(name string, spec VariableSpec, flags MemberFlags) (*Variable, error) {
	if err := c.checkDefinable("variable", name); err != nil {
		return nil, err
	}
	if name == "this" {
		return nil, definitionErrorf(ErrBadName, name, "variable name %q is reserved", name)
	}
	v := &Variable{
		Member:  newMember(c, name, spec.Protection, Protected, flags),
		Init:    spec.Init,
		HasInit: spec.HasInit,
		Config:  spec.Config,
	}
	if v.Config != nil && v.Protection != Public {
		return nil, definitionErrorf(ErrBadName, name, "can't specify config code for %s variable %q", v.Protection, name)
	}
	if !c.variables.add(name, v) {
		return nil, duplicate("variable", c, name)
	}
	if v.Common() {
		c.commons[v] = v.Init
	}
	c.invalidate()
	return v, nil
}

// AddOption declares an option. A leading "-" is added when missing.
func (c *Class) AddOption(name string, spec OptionSpec) (*Option, error) {
	name = optionName(name)
	if err := c.checkDefinable("option", strings.TrimPrefix(name, "-")); err != nil {
		return nil, err
	}
	if _, delegated := c.delegatedOptions.get(name); delegated {
		return nil, definitionErrorf(ErrDuplicateMember, name, "option %q is delegated in class %q", name, c.FullName)
	}
	var flags MemberFlags
	if spec.ReadOnly {
		flags |= FlagReadOnly
	}
	opt := &Option{
		Member:          newMember(c, name, spec.Protection, Public, flags),
		ResourceName:    spec.ResourceName,
		ClassName:       spec.ClassName,
		Default:         spec.Default,
		CgetMethod:      spec.CgetMethod,
		ConfigureMethod: spec.ConfigureMethod,
		ValidateMethod:  spec.ValidateMethod,
	}
	if opt.ResourceName == "" {
		opt.ResourceName = strings.TrimPrefix(name, "-")
	}
	if opt.ClassName == "" {
		opt.ClassName = capitalize(opt.ResourceName)
	}
	if !c.options.add(name, opt) {
		return nil, duplicate("option", c, name)
	}
	c.invalidate()
	return opt, nil
}

// AddMethodVariable declares a method variable.
func (c *Class) AddMethodVariable(name string, spec MethodVariableSpec) (*MethodVariable, error) {
	if err := c.checkDefinable("methodvariable", name); err != nil {
		return nil, err
	}
	if _, exists := c.functions.get(name); exists {
		return nil, duplicate("function", c, name)
	}
	mv := &MethodVariable{
		Member:   newMember(c, name, spec.Protection, Public, 0),
		Default:  spec.Default,
		Callback: spec.Callback,
	}
	if !c.methodVariables.add(name, mv) {
		return nil, duplicate("methodvariable", c, name)
	}
	c.invalidate()
	return mv, nil
}

// AddComponent declares a component and the variable holding its object name.
func (c *Class) AddComponent(name string, spec ComponentSpec) (*Component, error) {
	if _, exists := c.components.get(name); exists {
		return nil, duplicate("component", c, name)
	}
	v, err := c.addVariable(name, VariableSpec{Protection: spec.Protection}, FlagComponent)
	if err != nil {
		return nil, err
	}
	comp := &Component{Name: name, Variable: v, Inherit: spec.Inherit}
	c.components.add(name, comp)
	if spec.Inherit {
		if _, ok := c.delegatedOptions.get("*"); !ok {
			if _, err := c.DelegateOption(DelegateOptionSpec{Name: "*", To: name}); err != nil {
				return nil, err
			}
		}
		if _, ok := c.delegatedFunctions.get("*"); !ok {
			if _, err := c.DelegateFunction(DelegateFunctionSpec{Name: "*", To: name}); err != nil {
				return nil, err
			}
		}
	}
	return comp, nil
}

// AddMethod declares an instance method.
func (c *Class) AddMethod(name string, prot Protection, code *MemberCode) (*Function, error) {
	return c.addFunction(name, prot, code, 0)
}

// AddProc declares a class-level procedure.
func (c *Class) AddProc(name string, prot Protection, code *MemberCode) (*Function, error) {
	return c.addFunction(name, prot, code, FlagCommon)
}

func (c *Class) addFunction(name string, prot Protection, code *MemberCode, flags MemberFlags) (*Function, error) {
	if err := c.checkDefinable("function", name); err != nil {
		return nil, err
	}
	switch name {
	case "constructor", "destructor":
		if flags&(FlagConstructor|FlagDestructor) == 0 {
			return nil, definitionErrorf(ErrBadName, name, "%q must be declared with its own command", name)
		}
	case "cget", "configure", "isa", "info":
		if flags&FlagCommon != 0 {
			return nil, definitionErrorf(ErrBadName, name, "proc name %q collides with a built-in method", name)
		}
	}
	if _, exists := c.methodVariables.get(name); exists {
		return nil, duplicate("methodvariable", c, name)
	}
	if _, delegated := c.delegatedFunctions.get(name); delegated {
		return nil, definitionErrorf(ErrDuplicateMember, name, "function %q is delegated in class %q", name, c.FullName)
	}
	if code == nil {
		code = &MemberCode{}
	}
	flags |= FlagBodySpec
	if code.hasArgSpec {
		flags |= FlagArgSpec
	}
	if !code.Implemented() && code.nativeName == "" {
		flags &^= FlagBodySpec
	}
	fn := &Function{
		Member:   newMember(c, name, prot, Public, flags),
		Code:     code,
		Declarer: c,
	}
	if !c.functions.add(name, fn) {
		return nil, duplicate("function", c, name)
	}
	c.invalidate()
	return fn, nil
}

// SetConstructor declares the constructor. init runs before base classes are
// constructed implicitly and may construct them explicitly with arguments.
func (c *Class) SetConstructor(code, init *MemberCode) (*Function, error) {
	if c.constructor != nil {
		return nil, duplicate("function", c, "constructor")
	}
	fn, err := c.addFunction("constructor", Public, code, FlagConstructor)
	if err != nil {
		return nil, err
	}
	c.constructor = fn
	if init != nil {
		init.Args = fn.Code.Args
		c.constructorInit = &Function{
			Member:   newMember(c, "constructor", Public, Public, FlagConInit),
			Code:     init,
			Declarer: c,
		}
	}
	return fn, nil
}

// SetDestructor declares the destructor. Destructors take no arguments.
func (c *Class) SetDestructor(code *MemberCode) (*Function, error) {
	if c.destructor != nil {
		return nil, duplicate("function", c, "destructor")
	}
	if code != nil && len(code.Args.Args) > 0 {
		return nil, definitionErrorf(ErrBadArgList, "destructor", "destructor for class %q should not have arguments", c.FullName)
	}
	fn, err := c.addFunction("destructor", Public, code, FlagDestructor)
	if err != nil {
		return nil, err
	}
	c.destructor = fn
	return fn, nil
}

// SetInitCode sets code run for every new object after the class's bases are
// constructed and before its constructor body.
func (c *Class) SetInitCode(code *MemberCode) error {
	if err := c.checkDefinable("init code", "init"); err != nil {
		return err
	}
	c.initCode = code
	c.initFunc = nil
	if code != nil {
		c.initFunc = &Function{
			Member:   newMember(c, "init", Public, Public, FlagBuiltin),
			Code:     code,
			Declarer: c,
		}
	}
	return nil
}

// SetBody replaces the body of a declared function. It is allowed after the
// class is sealed, provided the argument list stays the same.
func (c *Class) SetBody(name string, code *MemberCode) error {
	fn, ok := c.functions.get(name)
	if !ok {
		return definitionErrorf(ErrUnknownMember, name, "function %q is not defined in class %q", name, c.FullName)
	}
	if code == nil {
		return definitionErrorf(ErrBadArgList, name, "missing body for function %q", name)
	}
	if fn.Flags&FlagArgSpec != 0 && code.hasArgSpec && !fn.Code.Args.sameSignature(code.Args) {
		return definitionErrorf(ErrBadArgList, name, "argument list changed for function %q: should be %q", fn.FullName, fn.Code.Args.Spec())
	}
	if !code.hasArgSpec {
		code.Args = fn.Code.Args
		code.hasArgSpec = fn.Code.hasArgSpec
	}
	if err := code.bindNative(c.reg.natives); err != nil {
		return definitionErrorf(ErrUnknownMember, name, "%v", err)
	}
	fn.Code = code
	fn.Flags |= FlagBodySpec
	if code.hasArgSpec {
		fn.Flags |= FlagArgSpec
	}
	return nil
}

// SetConfigBody replaces the config code of a public variable.
func (c *Class) SetConfigBody(name string, code *MemberCode) error {
	v, ok := c.variables.get(name)
	if !ok {
		return definitionErrorf(ErrUnknownMember, name, "variable %q is not defined in class %q", name, c.FullName)
	}
	if v.Protection != Public {
		return definitionErrorf(ErrProtection, name, "option %q is not a public configuration option", name)
	}
	if err := code.bindNative(c.reg.natives); err != nil {
		return definitionErrorf(ErrUnknownMember, name, "%v", err)
	}
	v.Config = code
	return nil
}

// Variables returns the variables declared by this class, in declaration order.
func (c *Class) Variables() []*Variable { return c.variables.values() }

// Options returns the options declared by this class.
func (c *Class) Options() []*Option { return c.options.values() }

// Functions returns the methods and procs declared by this class.
func (c *Class) Functions() []*Function { return c.functions.values() }

// Components returns the components declared by this class.
func (c *Class) Components() []*Component { return c.components.values() }

// MethodVariables returns the method variables declared by this class.
func (c *Class) MethodVariables() []*MethodVariable { return c.methodVariables.values() }

// DelegatedOptions returns the option delegations declared by this class.
func (c *Class) DelegatedOptions() []*DelegatedOption { return c.delegatedOptions.values() }

// DelegatedFunctions returns the function delegations declared by this class.
func (c *Class) DelegatedFunctions() []*DelegatedFunction { return c.delegatedFunctions.values() }

// Constructor returns the constructor or nil.
func (c *Class) Constructor() *Function { return c.constructor }

// Destructor returns the destructor or nil.
func (c *Class) Destructor() *Function { return c.destructor }

// Common returns the current value of a common variable declared by this class.
func (c *Class) Common(name string) (string, bool) {
	v, ok := c.variables.get(name)
	if !ok || !v.Common() {
		return "", false
	}
	return c.commons[v], true
}

// InstanceVarCount is the number of per-object variables contributed by the
// class and all of its ancestors.
func (c *Class) InstanceVarCount() int {
	c.buildResolveTables()
	return c.numInstanceVars
}

// FindFunction returns the most-derived function with the given simple name.
func (c *Class) FindFunction(name string) (*Function, bool) {
	it := NewHierIter(c, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		if fn, ok := cls.functions.get(name); ok {
			return fn, true
		}
	}
	return nil, false
}

// FindVariable returns the most-derived variable with the given simple name.
func (c *Class) FindVariable(name string) (*Variable, bool) {
	it := NewHierIter(c, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		if v, ok := cls.variables.get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// FindOption returns the most-derived option with the given name.
func (c *Class) FindOption(name string) (*Option, bool) {
	name = optionName(name)
	it := NewHierIter(c, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		if opt, ok := cls.options.get(name); ok {
			return opt, true
		}
	}
	return nil, false
}

func (c *Class) findComponent(name string) (*Component, bool) {
	it := NewHierIter(c, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		if comp, ok := cls.components.get(name); ok {
			return comp, true
		}
	}
	return nil, false
}

// nextAutoName expands "#auto" for a new instance.
func (c *Class) nextAutoName(pattern string) string {
	base := c.Name
	if base != "" {
		base = strings.ToLower(base[:1]) + base[1:]
	}
	for {
		candidate := strings.ReplaceAll(pattern, "#auto", fmt.Sprintf("%s%d", base, c.unique))
		c.unique++
		if !c.reg.commandTaken(candidate) {
			return candidate
		}
	}
}

func optionName(name string) string {
	if strings.HasPrefix(name, "-") {
		return name
	}
	return "-" + name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
