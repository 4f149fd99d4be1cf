package classfile

import (
	"fmt"

	"github.com/MShaffar19/itcl/itcl"
)

func protection(s string) (itcl.Protection, error) {
	p, ok := itcl.ParseProtection(s)
	if !ok {
		return p, fmt.Errorf("%w: unknown protection level %q", itcl.ErrBadName, s)
	}
	return p, nil
}

func scriptCode(args, body string) (*itcl.MemberCode, error) {
	return itcl.NewScriptCode(args, body)
}

// build returns the definition body DefineClass runs against the new class.
func (def *Class) build(reg *itcl.Registry) func(*itcl.Class) error {
	return func(c *itcl.Class) error {
		for _, name := range def.Inherit {
			base, ok := reg.Class(name)
			if !ok {
				return fmt.Errorf("%w: base class %q not found", itcl.ErrUnknownClass, name)
			}
			if err := c.AddBase(base); err != nil {
				return err
			}
		}
		steps := []func(*itcl.Class) error{
			def.addVariables,
			def.addComponents,
			def.addOptions,
			def.addMethodVariables,
			def.addFunctions,
			def.addSpecialCode,
			def.addDelegation,
		}
		for _, step := range steps {
			if err := step(c); err != nil {
				return err
			}
		}
		for i := range def.Classes {
			nested := &def.Classes[i]
			if _, err := reg.DefineClass(nested.Name, nested.build(reg)); err != nil {
				return fmt.Errorf("nested class %s: %w", nested.Name, err)
			}
		}
		return nil
	}
}

func (def *Class) addVariables(c *itcl.Class) error {
	add := func(v Variable, common bool) error {
		prot, err := protection(v.Protection)
		if err != nil {
			return err
		}
		spec := itcl.VariableSpec{Protection: prot}
		if v.Init != nil {
			spec.Init, spec.HasInit = *v.Init, true
		}
		if v.Config != "" {
			if spec.Config, err = scriptCode("", v.Config); err != nil {
				return err
			}
		}
		if common {
			_, err = c.AddCommon(v.Name, spec)
		} else {
			_, err = c.AddVariable(v.Name, spec)
		}
		return err
	}
	for _, v := range def.Variables {
		if err := add(v, false); err != nil {
			return err
		}
	}
	for _, v := range def.Commons {
		if err := add(v, true); err != nil {
			return err
		}
	}
	return nil
}

func (def *Class) addComponents(c *itcl.Class) error {
	for _, comp := range def.Components {
		prot, err := protection(comp.Protection)
		if err != nil {
			return err
		}
		if _, err := c.AddComponent(comp.Name, itcl.ComponentSpec{Protection: prot, Inherit: comp.Inherit}); err != nil {
			return err
		}
	}
	return nil
}

func (def *Class) addOptions(c *itcl.Class) error {
	for _, opt := range def.Options {
		prot, err := protection(opt.Protection)
		if err != nil {
			return err
		}
		spec := itcl.OptionSpec{
			Protection:      prot,
			ResourceName:    opt.Resource,
			ClassName:       opt.Class,
			Default:         opt.Default,
			ReadOnly:        opt.ReadOnly,
			CgetMethod:      opt.CgetMethod,
			ConfigureMethod: opt.ConfigureMethod,
			ValidateMethod:  opt.ValidateMethod,
		}
		if _, err := c.AddOption(opt.Name, spec); err != nil {
			return err
		}
	}
	return nil
}

func (def *Class) addMethodVariables(c *itcl.Class) error {
	for _, mv := range def.MethodVariables {
		prot, err := protection(mv.Protection)
		if err != nil {
			return err
		}
		spec := itcl.MethodVariableSpec{Protection: prot, Default: mv.Default, Callback: mv.Callback}
		if _, err := c.AddMethodVariable(mv.Name, spec); err != nil {
			return err
		}
	}
	return nil
}

func (def *Class) addFunctions(c *itcl.Class) error {
	add := func(fn Function, proc bool) error {
		prot, err := protection(fn.Protection)
		if err != nil {
			return err
		}
		var code *itcl.MemberCode
		if fn.Body == nil {
			code, err = itcl.DeclareCode(fn.Args)
		} else {
			code, err = scriptCode(fn.Args, *fn.Body)
		}
		if err != nil {
			return err
		}
		if proc {
			_, err = c.AddProc(fn.Name, prot, code)
		} else {
			_, err = c.AddMethod(fn.Name, prot, code)
		}
		return err
	}
	for _, fn := range def.Methods {
		if err := add(fn, false); err != nil {
			return err
		}
	}
	for _, fn := range def.Procs {
		if err := add(fn, true); err != nil {
			return err
		}
	}
	return nil
}

func (def *Class) addSpecialCode(c *itcl.Class) error {
	if ctor := def.Constructor; ctor != nil {
		code, err := scriptCode(ctor.Args, ctor.Body)
		if err != nil {
			return err
		}
		var init *itcl.MemberCode
		if ctor.Init != "" {
			if init, err = scriptCode("", ctor.Init); err != nil {
				return err
			}
		}
		if _, err := c.SetConstructor(code, init); err != nil {
			return err
		}
	}
	if dtor := def.Destructor; dtor != nil {
		code, err := scriptCode("", dtor.Body)
		if err != nil {
			return err
		}
		if _, err := c.SetDestructor(code); err != nil {
			return err
		}
	}
	if def.Init != "" {
		code, err := scriptCode("", def.Init)
		if err != nil {
			return err
		}
		return c.SetInitCode(code)
	}
	return nil
}

func (def *Class) addDelegation(c *itcl.Class) error {
	if def.Delegate == nil {
		return nil
	}
	for _, d := range def.Delegate.Options {
		spec := itcl.DelegateOptionSpec{
			Name:         d.Name,
			To:           d.To,
			As:           d.As,
			ResourceName: d.Resource,
			ClassName:    d.Class,
			Except:       d.Except,
		}
		if _, err := c.DelegateOption(spec); err != nil {
			return err
		}
	}
	for _, d := range def.Delegate.Methods {
		spec := itcl.DelegateFunctionSpec{
			Name:   d.Name,
			To:     d.To,
			As:     d.As,
			Using:  d.Using,
			Except: d.Except,
			Proc:   d.Proc,
		}
		if _, err := c.DelegateFunction(spec); err != nil {
			return err
		}
	}
	return nil
}
