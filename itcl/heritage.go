package itcl

import "strings"

// AddBase appends base to the class's base list. It fails without changing
// either class when base already derives from c, when base is listed twice or
// when either class is unusable.
func (c *Class) AddBase(base *Class) error {
	if base == nil {
		return definitionErrorf(ErrUnknownClass, "", "class %q: missing base class", c.FullName)
	}
	if err := c.checkDefinable("base class", base.Name); err != nil {
		return err
	}
	if base.flags&(ClassDeleteCalled|ClassDeleted) != 0 {
		return definitionErrorf(ErrClassDeleted, base.FullName, "base class %q is being deleted", base.FullName)
	}
	if base.reg != c.reg {
		return definitionErrorf(ErrUnknownClass, base.FullName, "base class %q belongs to another registry", base.FullName)
	}
	if base == c {
		return definitionErrorf(ErrInheritanceCycle, base.FullName, "class %q cannot inherit from itself", c.FullName)
	}
	for _, id := range c.bases {
		if id == base.id {
			return definitionErrorf(ErrDuplicateMember, base.FullName, "class %q cannot inherit from %q more than once", c.FullName, base.FullName)
		}
	}
	if base.IsA(c) {
		return definitionErrorf(ErrInheritanceCycle, base.FullName, "class %q cannot inherit from %q: %s",
			c.FullName, base.FullName, formatInheritanceCycle(c.reg.inheritancePath(base, c), c))
	}
	c.bases = append(c.bases, base.id)
	base.derived = append(base.derived, c.id)
	c.reg.rebuildHeritage(c)
	return nil
}

// IsA reports whether other is c or one of c's ancestors.
func (c *Class) IsA(other *Class) bool {
	if other == nil {
		return false
	}
	_, ok := c.heritage[other.id]
	return ok
}

// Bases returns the direct base classes in declaration order.
func (c *Class) Bases() []*Class {
	return c.reg.resolveIDs(c.bases)
}

// Derived returns the direct subclasses.
func (c *Class) Derived() []*Class {
	return c.reg.resolveIDs(c.derived)
}

// Heritage returns the class and all of its ancestors, most-derived first.
func (c *Class) Heritage() []*Class {
	return collectHierarchy(c, DerivedFirst)
}

// rebuildHeritage recomputes the closure for cls and everything derived from it.
// Derived classes are revisited in base-first order so each sees its bases'
// updated sets.
func (r *Registry) rebuildHeritage(cls *Class) {
	var pending Stack[*Class]
	var order []*Class
	seen := map[classID]struct{}{}
	pending.Push(cls)
	for pending.Len() > 0 {
		cur, _ := pending.Pop()
		if _, ok := seen[cur.id]; ok {
			continue
		}
		seen[cur.id] = struct{}{}
		order = append(order, cur)
		for _, d := range cur.Derived() {
			pending.Push(d)
		}
	}
	for changed := true; changed; {
		changed = false
		for _, cur := range order {
			next := map[classID]struct{}{cur.id: {}}
			for _, base := range cur.Bases() {
				for id := range base.heritage {
					next[id] = struct{}{}
				}
			}
			if len(next) != len(cur.heritage) {
				changed = true
			}
			cur.heritage = next
		}
	}
	cls.invalidate()
}

// invalidate drops lazily built lookup tables for c and every derived class.
func (c *Class) invalidate() {
	var pending Stack[*Class]
	seen := map[classID]struct{}{}
	pending.Push(c)
	for pending.Len() > 0 {
		cur, _ := pending.Pop()
		if _, ok := seen[cur.id]; ok {
			continue
		}
		seen[cur.id] = struct{}{}
		cur.resolveVars = nil
		cur.resolveCmds = nil
		clear(cur.contextCache)
		for _, d := range cur.Derived() {
			pending.Push(d)
		}
	}
}

// unlink removes cls from the derived lists of its bases.
func (r *Registry) unlink(cls *Class) {
	for _, base := range cls.Bases() {
		kept := base.derived[:0]
		for _, id := range base.derived {
			if id != cls.id {
				kept = append(kept, id)
			}
		}
		base.derived = kept
		base.invalidate()
	}
}

// inheritancePath returns the chain from → … → to following base links.
func (r *Registry) inheritancePath(from, to *Class) []*Class {
	type entry struct {
		cls  *Class
		path []*Class
	}
	var pending Stack[entry]
	pending.Push(entry{cls: from, path: []*Class{from}})
	seen := map[classID]struct{}{}
	for pending.Len() > 0 {
		cur, _ := pending.Pop()
		if cur.cls == to {
			return cur.path
		}
		if _, ok := seen[cur.cls.id]; ok {
			continue
		}
		seen[cur.cls.id] = struct{}{}
		for _, base := range cur.cls.Bases() {
			path := append(append([]*Class(nil), cur.path...), base)
			pending.Push(entry{cls: base, path: path})
		}
	}
	return nil
}

func formatInheritanceCycle(path []*Class, closing *Class) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, closing.FullName)
	for _, cls := range path {
		parts = append(parts, cls.FullName)
	}
	return strings.Join(parts, " -> ")
}
