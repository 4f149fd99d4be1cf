package itcl

import "strings"

// Protection is the access level of a member.
type Protection int

const (
	ProtectDefault Protection = iota
	Public
	Protected
	Private
)

func (p Protection) String() string {
	switch p {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "default"
	}
}

// ParseProtection maps a protection keyword to its level. The empty string is ProtectDefault.
func ParseProtection(s string) (Protection, bool) {
	switch strings.ToLower(s) {
	case "":
		return ProtectDefault, true
	case "public":
		return Public, true
	case "protected":
		return Protected, true
	case "private":
		return Private, true
	default:
		return ProtectDefault, false
	}
}

// MemberFlags describe a member declaration.
type MemberFlags uint32

const (
	FlagConstructor MemberFlags = 1 << iota
	FlagDestructor
	FlagCommon
	FlagArgSpec
	FlagBodySpec
	FlagThisVar
	FlagConInit
	FlagBuiltin
	FlagReadOnly
	FlagComponent
	FlagOptionsVar
)

// Member holds the fields every declaration shares.
type Member struct {
	Name       string
	FullName   string
	Class      *Class
	Protection Protection
	Flags      MemberFlags
}

// newMember fills in the shared fields. Variables default to protected and
// everything else to the registry's default protection.
func newMember(cls *Class, name string, prot, fallback Protection, flags MemberFlags) Member {
	if prot == ProtectDefault {
		prot = fallback
		if fallback == Public && cls.reg != nil {
			prot = cls.reg.config.DefaultProtection
		}
	}
	return Member{
		Name:       name,
		FullName:   cls.FullName + "::" + name,
		Class:      cls,
		Protection: prot,
		Flags:      flags,
	}
}

// Variable is a data member. Common variables live once per class.
type Variable struct {
	Member
	Init    string
	HasInit bool
	// Config runs after `configure` changes a public variable.
	Config *MemberCode
}

// Common reports whether the variable is class level.
func (v *Variable) Common() bool {
	return v.Flags&FlagCommon != 0
}

// Option is a configuration member reachable through cget/configure.
type Option struct {
	Member
	ResourceName    string
	ClassName       string
	Default         string
	CgetMethod      string
	ConfigureMethod string
	ValidateMethod  string
	Delegated       *DelegatedOption
}

// ReadOnly reports whether the option can only be set while the object is constructed.
func (o *Option) ReadOnly() bool {
	return o.Flags&FlagReadOnly != 0
}

// MethodVariable is a variable exposed as a method of the same name.
// Setting it through the method calls Callback with the new value first.
type MethodVariable struct {
	Member
	Default  string
	Callback string
}

// Function is a method or proc.
type Function struct {
	Member
	Code *MemberCode
	// Declarer is the class whose definition introduced the function.
	Declarer  *Class
	Delegated *DelegatedFunction
}

// Proc reports whether the function is class level.
func (f *Function) Proc() bool {
	return f.Flags&FlagCommon != 0
}

// Component is a variable naming the object that delegated members forward to.
type Component struct {
	Name     string
	Variable *Variable
	Inherit  bool
}

// DelegatedOption forwards an option, or every option for Name "*", to a component.
type DelegatedOption struct {
	Name         string
	ResourceName string
	ClassName    string
	Option       *Option
	Component    *Component
	As           string
	Exceptions   map[string]struct{}
	owner        *Class
}

// Excepts reports whether name is excluded from this delegation.
func (d *DelegatedOption) Excepts(name string) bool {
	_, ok := d.Exceptions[name]
	return ok
}

// DelegatedFunction forwards a method, or every method for Name "*", to a component.
// Using is a command prefix pattern with %c, %m, %n, %s, %t and %% substitutions.
type DelegatedFunction struct {
	Name       string
	Component  *Component
	As         []string
	Using      string
	Exceptions map[string]struct{}
	Proc       bool
	owner      *Class
}

// Excepts reports whether name is excluded from this delegation.
func (d *DelegatedFunction) Excepts(name string) bool {
	_, ok := d.Exceptions[name]
	return ok
}

func exceptionSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// table is a name-keyed member table that remembers declaration order.
type table[T any] struct {
	keys  []string
	items map[string]T
}

func newTable[T any]() table[T] {
	return table[T]{items: make(map[string]T)}
}

func (t *table[T]) add(name string, item T) bool {
	if _, exists := t.items[name]; exists {
		return false
	}
	t.keys = append(t.keys, name)
	t.items[name] = item
	return true
}

func (t *table[T]) get(name string) (T, bool) {
	item, ok := t.items[name]
	return item, ok
}

func (t *table[T]) remove(name string) bool {
	if _, ok := t.items[name]; !ok {
		return false
	}
	delete(t.items, name)
	for i, key := range t.keys {
		if key == name {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) len() int {
	return len(t.keys)
}

func (t *table[T]) values() []T {
	out := make([]T, 0, len(t.keys))
	for _, key := range t.keys {
		out = append(out, t.items[key])
	}
	return out
}

func (t *table[T]) names() []string {
	return append([]string(nil), t.keys...)
}
