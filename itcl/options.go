package itcl

import (
	"context"
	"sort"
	"strings"
)

// Configure sets options from -name value pairs. With no pairs it lists
// every option; with a single name it describes that option.
func (r *Registry) Configure(ctx context.Context, object string, args ...string) (string, error) {
	obj, ok := r.Object(object)
	if !ok {
		return "", resolutionErrorf(ErrUnknownObject, object, "object %q not found", object)
	}
	return r.configure(ctx, obj, args)
}

// Cget reads one option.
func (r *Registry) Cget(ctx context.Context, object, option string) (string, error) {
	obj, ok := r.Object(object)
	if !ok {
		return "", resolutionErrorf(ErrUnknownObject, object, "object %q not found", object)
	}
	return r.cget(ctx, obj, option)
}

func (r *Registry) configure(ctx context.Context, obj *Object, args []string) (string, error) {
	if err := obj.checkAlive(); err != nil {
		return "", err
	}
	switch {
	case len(args) == 0:
		var entries []string
		for _, name := range obj.optionNames() {
			entry, err := r.describeOption(ctx, obj, name)
			if err != nil {
				return "", err
			}
			entries = append(entries, entry)
		}
		return JoinList(entries), nil
	case len(args) == 1:
		return r.describeOption(ctx, obj, optionName(args[0]))
	case len(args)%2 != 0:
		return "", resolutionErrorf(ErrWrongArgs, "configure", "wrong # args: should be \"%s configure ?-option value ...?\"", obj.Name)
	}
	for i := 0; i < len(args); i += 2 {
		if err := r.setOption(ctx, obj, args[i], args[i+1]); err != nil {
			return "", err
		}
	}
	return "", nil
}

// optionNames lists own options, specifically delegated options and public
// variables by their -name.
func (o *Object) optionNames() []string {
	seen := map[string]struct{}{}
	for name := range o.options {
		seen[name] = struct{}{}
	}
	for _, d := range o.delegatedOptions.values() {
		if d.Name != "*" {
			seen[d.Name] = struct{}{}
		}
	}
	it := NewHierIter(o.class, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		for _, d := range cls.delegatedOptions.values() {
			if d.Name != "*" {
				seen[d.Name] = struct{}{}
			}
		}
		for _, v := range cls.variables.values() {
			if v.Protection == Public && v.Flags&FlagComponent == 0 {
				seen["-"+v.Name] = struct{}{}
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

func (r *Registry) describeOption(ctx context.Context, obj *Object, name string) (string, error) {
	value, err := r.cget(ctx, obj, name)
	if err != nil {
		return "", err
	}
	if opt, ok := obj.options[name]; ok {
		return JoinList([]string{name, opt.ResourceName, opt.ClassName, opt.Default, value}), nil
	}
	if d, ok := obj.delegatedOption(name); ok {
		return JoinList([]string{name, d.ResourceName, d.ClassName, "", value}), nil
	}
	if v, ok := obj.publicVariable(name); ok {
		return JoinList([]string{name, v.Init, value}), nil
	}
	return JoinList([]string{name, "", "", "", value}), nil
}

func (o *Object) publicVariable(option string) (*Variable, bool) {
	name, ok := strings.CutPrefix(option, "-")
	if !ok || name == "" {
		return nil, false
	}
	v, ok := o.class.FindVariable(name)
	if !ok || v.Protection != Public || v.Flags&FlagComponent != 0 {
		return nil, false
	}
	return v, true
}

func unknownOption(obj *Object, name string) error {
	return resolutionErrorf(ErrUnknownMember, name, "unknown option %q for object %q", name, obj.Name)
}

// setOption resolves name as a specifically delegated option, an own option,
// a wildcard delegation and finally a public variable.
func (r *Registry) setOption(ctx context.Context, obj *Object, name, value string) error {
	name = optionName(name)
	if d, ok := obj.delegatedOption(name); ok {
		return r.forwardConfigure(ctx, obj, d, name, value)
	}
	if opt, ok := obj.options[name]; ok {
		return r.setOwnOption(ctx, obj, opt, value)
	}
	if d, ok := obj.delegatedOption("*"); ok && !d.Excepts(name) {
		return r.forwardConfigure(ctx, obj, d, name, value)
	}
	if v, ok := obj.publicVariable(name); ok {
		return r.setPublicVariable(ctx, obj, v, value)
	}
	return unknownOption(obj, name)
}

func (r *Registry) setOwnOption(ctx context.Context, obj *Object, opt *Option, value string) error {
	if opt.ReadOnly() && obj.flags&ObjectConstructing == 0 {
		return resolutionErrorf(ErrReadOnlyOption, opt.Name, "option %q can only be set at instance creation", opt.Name)
	}
	if opt.ValidateMethod != "" {
		if _, err := r.callInternal(ctx, obj, opt.ValidateMethod, opt.Name, value); err != nil {
			return err
		}
	}
	old := obj.optionValues[opt.Name]
	obj.optionValues[opt.Name] = value
	if opt.ConfigureMethod != "" {
		if _, err := r.callInternal(ctx, obj, opt.ConfigureMethod, opt.Name, value); err != nil {
			obj.optionValues[opt.Name] = old
			return err
		}
	}
	return nil
}

// setPublicVariable stores value and runs the variable's config code. The
// old value is restored if the config code fails.
func (r *Registry) setPublicVariable(ctx context.Context, obj *Object, v *Variable, value string) error {
	ref := r.variableRef(obj, v)
	old, err := ref.Get()
	if err != nil {
		return err
	}
	if err := ref.Set(value); err != nil {
		return err
	}
	if v.Config == nil || !v.Config.Implemented() {
		return nil
	}
	member := &Function{Member: v.Member, Code: v.Config, Declarer: v.Class}
	if _, err := r.runCode(ctx, obj, v.Class, member, v.Config, map[string]string{}, nil); err != nil {
		_ = ref.Set(old)
		return err
	}
	return nil
}

func (r *Registry) variableRef(obj *Object, v *Variable) VarRef {
	if v.Common() {
		return commonRef{v: v}
	}
	return instanceRef{obj: obj, v: v}
}

func (r *Registry) cget(ctx context.Context, obj *Object, name string) (string, error) {
	if err := obj.checkAlive(); err != nil {
		return "", err
	}
	name = optionName(name)
	if d, ok := obj.delegatedOption(name); ok {
		return r.forwardCget(ctx, obj, d, name)
	}
	if opt, ok := obj.options[name]; ok {
		if opt.CgetMethod != "" {
			return r.callInternal(ctx, obj, opt.CgetMethod, opt.Name)
		}
		return obj.optionValues[opt.Name], nil
	}
	if d, ok := obj.delegatedOption("*"); ok && !d.Excepts(name) {
		return r.forwardCget(ctx, obj, d, name)
	}
	if v, ok := obj.publicVariable(name); ok {
		return r.variableRef(obj, v).Get()
	}
	return "", unknownOption(obj, name)
}

// OptionValue reads an own option's stored value without running hooks.
func (o *Object) OptionValue(name string) (string, bool) {
	value, ok := o.optionValues[optionName(name)]
	return value, ok
}

// SetOptionValue stores an own option's value without running hooks. It is
// meant for configure methods that normalize the value they were given.
func (o *Object) SetOptionValue(name, value string) bool {
	name = optionName(name)
	if _, ok := o.options[name]; !ok {
		return false
	}
	o.optionValues[name] = value
	return true
}
