package itcl

import (
	"context"
	"sort"
	"strings"
)

// DelegateOptionSpec forwards an option to a component. Name "*" forwards
// every option the object does not handle itself, except those in Except.
type DelegateOptionSpec struct {
	Name         string
	To           string
	As           string
	ResourceName string
	ClassName    string
	Except       []string
}

// DelegateFunctionSpec forwards a method to a component. As replaces the
// target method words; Using replaces the whole command prefix and may refer
// to %c (component), %m (method), %n (object name without namespace),
// %s (object command), %t (class) and %% (a percent sign).
type DelegateFunctionSpec struct {
	Name   string
	To     string
	As     string
	Using  string
	Except []string
	Proc   bool
}

func (c *Class) checkDelegable(name string) error {
	if c.flags&(ClassDeleteCalled|ClassDeleted) != 0 {
		return definitionErrorf(ErrClassDeleted, name, "class %q is being deleted", c.FullName)
	}
	if strings.TrimSpace(name) == "" {
		return definitionErrorf(ErrBadName, name, "delegation requires a member name")
	}
	return nil
}

func newDelegatedOption(spec DelegateOptionSpec, comp *Component) (*DelegatedOption, error) {
	name := spec.Name
	if name != "*" {
		name = optionName(name)
	}
	d := &DelegatedOption{
		Name:         name,
		ResourceName: spec.ResourceName,
		ClassName:    spec.ClassName,
		Component:    comp,
		As:           spec.As,
		Exceptions:   make(map[string]struct{}, len(spec.Except)),
	}
	for _, ex := range spec.Except {
		d.Exceptions[optionName(ex)] = struct{}{}
	}
	if name != "*" {
		if d.ResourceName == "" {
			d.ResourceName = strings.TrimPrefix(name, "-")
		}
		if d.ClassName == "" {
			d.ClassName = capitalize(d.ResourceName)
		}
		if d.As != "" {
			d.As = optionName(d.As)
		}
	} else if d.As != "" {
		return nil, definitionErrorf(ErrBadName, "*", "can't rename wildcard option delegation to %q", d.As)
	}
	return d, nil
}

func newDelegatedFunction(spec DelegateFunctionSpec, comp *Component) (*DelegatedFunction, error) {
	d := &DelegatedFunction{
		Name:       spec.Name,
		Component:  comp,
		Using:      spec.Using,
		Exceptions: exceptionSet(spec.Except),
		Proc:       spec.Proc,
	}
	if spec.As != "" {
		if spec.Name == "*" {
			return nil, definitionErrorf(ErrBadName, "*", "can't rename wildcard method delegation to %q", spec.As)
		}
		as, err := SplitList(spec.As)
		if err != nil {
			return nil, definitionErrorf(ErrBadName, spec.Name, "bad delegation target %q: %v", spec.As, err)
		}
		d.As = as
	}
	return d, nil
}

// DelegateOption forwards an option of every instance to a component.
// Delegations may be added after the class is sealed.
func (c *Class) DelegateOption(spec DelegateOptionSpec) (*DelegatedOption, error) {
	if err := c.checkDelegable(spec.Name); err != nil {
		return nil, err
	}
	comp, ok := c.findComponent(spec.To)
	if !ok {
		return nil, definitionErrorf(ErrDelegationTarget, spec.To, "can't delegate option %q to %q: no such component in class %q", spec.Name, spec.To, c.FullName)
	}
	d, err := newDelegatedOption(spec, comp)
	if err != nil {
		return nil, err
	}
	if opt, own := c.options.get(d.Name); own {
		return nil, definitionErrorf(ErrDuplicateMember, d.Name, "option %q is already defined in class %q", opt.Name, c.FullName)
	}
	d.owner = c
	if !c.delegatedOptions.add(d.Name, d) {
		return nil, duplicate("delegated option", c, d.Name)
	}
	return d, nil
}

// DelegateFunction forwards a method of every instance to a component.
func (c *Class) DelegateFunction(spec DelegateFunctionSpec) (*DelegatedFunction, error) {
	if err := c.checkDelegable(spec.Name); err != nil {
		return nil, err
	}
	comp, ok := c.findComponent(spec.To)
	if !ok {
		return nil, definitionErrorf(ErrDelegationTarget, spec.To, "can't delegate method %q to %q: no such component in class %q", spec.Name, spec.To, c.FullName)
	}
	if spec.Proc && !comp.Variable.Common() {
		return nil, definitionErrorf(ErrDelegationTarget, spec.To, "can't delegate proc %q to instance component %q", spec.Name, spec.To)
	}
	d, err := newDelegatedFunction(spec, comp)
	if err != nil {
		return nil, err
	}
	if fn, own := c.functions.get(d.Name); own {
		return nil, definitionErrorf(ErrDuplicateMember, d.Name, "function %q is already defined in class %q", fn.Name, c.FullName)
	}
	d.owner = c
	if !c.delegatedFunctions.add(d.Name, d) {
		return nil, duplicate("delegated function", c, d.Name)
	}
	return d, nil
}

// RemoveDelegatedOption drops an option delegation of this class.
func (c *Class) RemoveDelegatedOption(name string) error {
	if name != "*" {
		name = optionName(name)
	}
	if !c.delegatedOptions.remove(name) {
		return definitionErrorf(ErrUnknownMember, name, "option %q is not delegated in class %q", name, c.FullName)
	}
	return nil
}

// RemoveDelegatedFunction drops a method delegation of this class.
func (c *Class) RemoveDelegatedFunction(name string) error {
	if !c.delegatedFunctions.remove(name) {
		return definitionErrorf(ErrUnknownMember, name, "function %q is not delegated in class %q", name, c.FullName)
	}
	return nil
}

// DelegateOption forwards an option of this instance only. Instance
// delegations take precedence over those of the class.
func (o *Object) DelegateOption(spec DelegateOptionSpec) (*DelegatedOption, error) {
	if err := o.checkAlive(); err != nil {
		return nil, err
	}
	comp, ok := o.class.findComponent(spec.To)
	if !ok {
		return nil, resolutionErrorf(ErrDelegationTarget, spec.To, "can't delegate option %q to %q: no such component in object %q", spec.Name, spec.To, o.Name)
	}
	d, err := newDelegatedOption(spec, comp)
	if err != nil {
		return nil, err
	}
	if !o.delegatedOptions.add(d.Name, d) {
		return nil, resolutionErrorf(ErrDuplicateMember, d.Name, "option %q is already delegated in object %q", d.Name, o.Name)
	}
	return d, nil
}

// DelegateFunction forwards a method of this instance only.
func (o *Object) DelegateFunction(spec DelegateFunctionSpec) (*DelegatedFunction, error) {
	if err := o.checkAlive(); err != nil {
		return nil, err
	}
	comp, ok := o.class.findComponent(spec.To)
	if !ok {
		return nil, resolutionErrorf(ErrDelegationTarget, spec.To, "can't delegate method %q to %q: no such component in object %q", spec.Name, spec.To, o.Name)
	}
	d, err := newDelegatedFunction(spec, comp)
	if err != nil {
		return nil, err
	}
	if !o.delegatedFunctions.add(d.Name, d) {
		return nil, resolutionErrorf(ErrDuplicateMember, d.Name, "method %q is already delegated in object %q", d.Name, o.Name)
	}
	return d, nil
}

// RemoveDelegatedOption drops an instance option delegation.
func (o *Object) RemoveDelegatedOption(name string) bool {
	if name != "*" {
		name = optionName(name)
	}
	return o.delegatedOptions.remove(name)
}

// RemoveDelegatedFunction drops an instance method delegation.
func (o *Object) RemoveDelegatedFunction(name string) bool {
	return o.delegatedFunctions.remove(name)
}

// delegatedOption finds the delegation for name: the instance table first,
// then each class most-derived first.
func (o *Object) delegatedOption(name string) (*DelegatedOption, bool) {
	if d, ok := o.delegatedOptions.get(name); ok {
		return d, true
	}
	it := NewHierIter(o.class, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		if d, ok := cls.delegatedOptions.get(name); ok {
			return d, true
		}
	}
	return nil, false
}

func (o *Object) delegatedFunction(name string) (*DelegatedFunction, bool) {
	if d, ok := o.delegatedFunctions.get(name); ok {
		return d, true
	}
	it := NewHierIter(o.class, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		if d, ok := cls.delegatedFunctions.get(name); ok {
			return d, true
		}
	}
	return nil, false
}

func (o *Object) delegatedNames(options bool) []string {
	seen := map[string]struct{}{}
	collect := func(names []string) {
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}
	if options {
		collect(o.delegatedOptions.names())
	} else {
		collect(o.delegatedFunctions.names())
	}
	it := NewHierIter(o.class, DerivedFirst)
	for cls := it.Next(); cls != nil; cls = it.Next() {
		if options {
			collect(cls.delegatedOptions.names())
		} else {
			collect(cls.delegatedFunctions.names())
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// forwardFunction invokes the delegated method on the component through the host.
func (r *Registry) forwardFunction(ctx context.Context, obj *Object, d *DelegatedFunction, method string, args []string) (string, error) {
	target, err := r.componentValue(obj, d.Component)
	if err != nil {
		return "", err
	}
	var words []string
	switch {
	case d.Using != "":
		pattern, err := SplitList(d.Using)
		if err != nil {
			return "", resolutionErrorf(ErrDelegationTarget, method, "bad using pattern %q: %v", d.Using, err)
		}
		for _, word := range pattern {
			words = append(words, expandUsing(word, target, method, obj))
		}
	case len(d.As) > 0:
		words = append([]string{target}, d.As...)
	default:
		words = []string{target, method}
	}
	words = append(words, args...)
	result, err := r.host.InvokeCommand(ctx, words)
	if err != nil {
		return "", withFrame(err, StackFrame{Object: obj.Name, Member: method})
	}
	return result, nil
}

func expandUsing(word, component, method string, obj *Object) string {
	if !strings.Contains(word, "%") {
		return word
	}
	name := obj.Name
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	var b strings.Builder
	for i := 0; i < len(word); i++ {
		if word[i] != '%' || i == len(word)-1 {
			b.WriteByte(word[i])
			continue
		}
		i++
		switch word[i] {
		case 'c':
			b.WriteString(component)
		case 'm':
			b.WriteString(method)
		case 'n':
			b.WriteString(name)
		case 's':
			b.WriteString(obj.Name)
		case 't':
			b.WriteString(obj.class.FullName)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(word[i])
		}
	}
	return b.String()
}

func (d *DelegatedOption) target(name string) string {
	if d.As != "" {
		return d.As
	}
	return name
}

func (r *Registry) forwardConfigure(ctx context.Context, obj *Object, d *DelegatedOption, name, value string) error {
	target, err := r.componentValue(obj, d.Component)
	if err != nil {
		return err
	}
	if _, err := r.host.InvokeCommand(ctx, []string{target, "configure", d.target(name), value}); err != nil {
		return withFrame(err, StackFrame{Object: obj.Name, Member: "configure " + name})
	}
	return nil
}

func (r *Registry) forwardCget(ctx context.Context, obj *Object, d *DelegatedOption, name string) (string, error) {
	target, err := r.componentValue(obj, d.Component)
	if err != nil {
		return "", err
	}
	result, err := r.host.InvokeCommand(ctx, []string{target, "cget", d.target(name)})
	if err != nil {
		return "", withFrame(err, StackFrame{Object: obj.Name, Member: "cget " + name})
	}
	return result, nil
}
