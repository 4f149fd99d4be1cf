package itcl

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDuplicateMemberInOneClassFails(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	_, err := reg.DefineClass("Dup", func(c *Class) error {
		if _, err := c.AddVariable("x", VariableSpec{}); err != nil {
			return err
		}
		_, err := c.AddVariable("x", VariableSpec{})
		return err
	})
	requireErrorIs(t, err, ErrDuplicateMember)
	requireKind(t, err, DefinitionError)
	if _, ok := reg.Class("Dup"); ok {
		t.Fatalf("failed definition left Dup registered")
	}
	if reg.IsClassCommand("Dup") {
		t.Fatalf("failed definition left a class command")
	}
}

func TestDerivedVariableShadowsBase(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	base := defineClass(t, reg, "Base", func(c *Class) error {
		if _, err := c.AddVariable("x", VariableSpec{Init: "base", HasInit: true}); err != nil {
			return err
		}
		_, err := c.AddMethod("baseX", Public, script(t, "", "return $x"))
		return err
	})
	derived := defineClass(t, reg, "Derived", func(c *Class) error {
		if err := c.AddBase(base); err != nil {
			return err
		}
		if _, err := c.AddVariable("x", VariableSpec{Init: "derived", HasInit: true}); err != nil {
			return err
		}
		if _, err := c.AddMethod("derivedX", Public, script(t, "", "return $x")); err != nil {
			return err
		}
		_, err := c.AddMethod("qualifiedX", Public, script(t, "", "return $Base::x"))
		return err
	})
	mustCreate(t, reg, derived, "d")

	if got := mustInvoke(t, reg, "d", "derivedX"); got != "derived" {
		t.Fatalf("derived lookup: got %q want %q", got, "derived")
	}
	if got := mustInvoke(t, reg, "d", "baseX"); got != "base" {
		t.Fatalf("base method sees its own declaration: got %q want %q", got, "base")
	}
	if got := mustInvoke(t, reg, "d", "qualifiedX"); got != "base" {
		t.Fatalf("qualified lookup: got %q want %q", got, "base")
	}
	v, ok := derived.FindVariable("x")
	if !ok || v.Class != derived {
		t.Fatalf("FindVariable should return the derived declaration, got %v", v)
	}
	if got := derived.InstanceVarCount(); got != 2 {
		t.Fatalf("instance var count: got %d want 2", got)
	}
}

func TestPrivateBaseVariableIsHidden(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	base := defineClass(t, reg, "Base", func(c *Class) error {
		_, err := c.AddVariable("secret", VariableSpec{Protection: Private, Init: "s", HasInit: true})
		return err
	})
	derived := defineClass(t, reg, "Derived", func(c *Class) error {
		if err := c.AddBase(base); err != nil {
			return err
		}
		_, err := c.AddMethod("peek", Public, script(t, "", "return $secret"))
		return err
	})
	mustCreate(t, reg, derived, "d")
	_, err := reg.Invoke(context.Background(), "d", "peek")
	requireErrorIs(t, err, ErrUnknownMember)
	requireErrorContains(t, err, "while invoking ::Derived::peek (object \"d\")")
}

func TestSealedClassRejectsMembers(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Sealed", func(c *Class) error {
		_, err := c.AddMethod("greet", Public, script(t, "name", "return $name"))
		return err
	})
	_, err := cls.AddVariable("late", VariableSpec{})
	requireErrorIs(t, err, ErrSealed)

	err = cls.SetBody("greet", script(t, "a b", "return $a"))
	requireErrorIs(t, err, ErrBadArgList)

	if err := cls.SetBody("greet", script(t, "", "return hello $name")); err != nil {
		t.Fatalf("set body: %v", err)
	}
	mustCreate(t, reg, cls, "s")
	if got := mustInvoke(t, reg, "s", "greet", "bob"); got != "hello bob" {
		t.Fatalf("redefined body: got %q", got)
	}
}

func TestNestedClassNames(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	outer, err := reg.BeginClass("Outer")
	if err != nil {
		t.Fatalf("begin outer: %v", err)
	}
	inner, err := reg.BeginClass("Inner")
	if err != nil {
		t.Fatalf("begin inner: %v", err)
	}
	if inner.FullName != "::Outer::Inner" {
		t.Fatalf("nested full name: got %q", inner.FullName)
	}
	if cur, _ := reg.CurrentClass(); cur != inner {
		t.Fatalf("current class should be inner")
	}
	if err := reg.EndClass(outer); err == nil {
		t.Fatalf("expected error ending outer before inner")
	}
	if err := reg.EndClass(inner); err != nil {
		t.Fatalf("end inner: %v", err)
	}
	if err := reg.EndClass(outer); err != nil {
		t.Fatalf("end outer: %v", err)
	}
	if _, ok := reg.Class("Outer::Inner"); !ok {
		t.Fatalf("expected Outer::Inner to be registered")
	}
	if diff := cmp.Diff([]string{"Outer", "Inner"}, classNames(reg.Classes())); diff != "" {
		t.Fatalf("classes mismatch (-want +got):\n%s", diff)
	}
}

func TestAbortClassRemovesNestedDefinitions(t *testing.T) {
	reg, host := newTestRegistry(t, Config{})
	outer, err := reg.BeginClass("Outer")
	if err != nil {
		t.Fatalf("begin outer: %v", err)
	}
	if _, err := reg.DefineClass("Inner", nil); err != nil {
		t.Fatalf("define inner: %v", err)
	}
	reg.AbortClass(outer)
	if len(reg.Classes()) != 0 {
		t.Fatalf("expected no classes after abort, got %v", classNames(reg.Classes()))
	}
	if _, ok := host.commands["Outer::Inner"]; ok {
		t.Fatalf("nested class command left installed")
	}
}

func TestAbortClassDeletesOutsideDerivedClasses(t *testing.T) {
	reg, host := newTestRegistry(t, Config{})
	outer, err := reg.BeginClass("Outer")
	if err != nil {
		t.Fatalf("begin outer: %v", err)
	}
	inner, err := reg.DefineClass("Inner", nil)
	if err != nil {
		t.Fatalf("define inner: %v", err)
	}
	other, err := reg.DefineClass("::Other", func(c *Class) error {
		if _, err := c.SetDestructor(script(t, "", "record dtor Other")); err != nil {
			return err
		}
		return c.AddBase(inner)
	})
	if err != nil {
		t.Fatalf("define other: %v", err)
	}
	keep := defineClass(t, reg, "::Keep", nil)
	mustCreate(t, reg, other, "o")

	reg.AbortClass(outer)

	if diff := cmp.Diff([]string{"Keep"}, classNames(reg.Classes())); diff != "" {
		t.Fatalf("classes after abort (-want +got):\n%s", diff)
	}
	if other.Flags()&ClassDeleted == 0 {
		t.Fatalf("class deriving from an aborted class should be deleted")
	}
	if _, ok := reg.Object("o"); ok {
		t.Fatalf("object of a deleted class left behind")
	}
	if diff := cmp.Diff([]string{"dtor Other"}, host.transcript()); diff != "" {
		t.Fatalf("abort transcript (-want +got):\n%s", diff)
	}
	if _, ok := host.commands["Other"]; ok {
		t.Fatalf("derived class command left installed")
	}
	if keep.IsA(inner) || len(keep.Heritage()) != 1 {
		t.Fatalf("unrelated class heritage changed")
	}
}

func TestClassNameCollision(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Thing", nil)
	_, err := reg.DefineClass("Thing", nil)
	requireErrorIs(t, err, ErrDuplicateName)

	mustCreate(t, reg, cls, "widget")
	_, err = reg.DefineClass("widget", nil)
	requireErrorIs(t, err, ErrDuplicateName)
}

func TestReservedAndConflictingNames(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	_, err := reg.DefineClass("Bad", func(c *Class) error {
		_, err := c.AddVariable("this", VariableSpec{})
		return err
	})
	requireErrorIs(t, err, ErrBadName)

	_, err = reg.DefineClass("Bad", func(c *Class) error {
		_, err := c.AddMethod("constructor", Public, nil)
		return err
	})
	requireErrorIs(t, err, ErrBadName)

	_, err = reg.DefineClass("Bad", func(c *Class) error {
		if _, err := c.AddMethodVariable("size", MethodVariableSpec{}); err != nil {
			return err
		}
		_, err := c.AddMethod("size", Public, nil)
		return err
	})
	requireErrorIs(t, err, ErrDuplicateMember)

	_, err = reg.DefineClass("Bad", func(c *Class) error {
		_, err := c.AddVariable("x", VariableSpec{Protection: Protected, Config: script(t, "", "return")})
		return err
	})
	requireErrorIs(t, err, ErrBadName)
}

func TestDestructorRejectsArguments(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	_, err := reg.DefineClass("D", func(c *Class) error {
		_, err := c.SetDestructor(script(t, "a", "return"))
		return err
	})
	requireErrorIs(t, err, ErrBadArgList)
}

func TestNativeBodiesBindAtEnd(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	err := reg.RegisterNative("double", func(ctx context.Context, frame *Frame) (string, error) {
		return frame.Arg("n") + frame.Arg("n"), nil
	})
	if err != nil {
		t.Fatalf("register native: %v", err)
	}
	cls := defineClass(t, reg, "Math", func(c *Class) error {
		_, err := c.AddMethod("twice", Public, script(t, "n", "@double"))
		return err
	})
	mustCreate(t, reg, cls, "m")
	if got := mustInvoke(t, reg, "m", "twice", "ab"); got != "abab" {
		t.Fatalf("native body: got %q", got)
	}

	_, err = reg.DefineClass("Missing", func(c *Class) error {
		_, err := c.AddMethod("nope", Public, script(t, "", "@missing"))
		return err
	})
	requireErrorIs(t, err, ErrUnknownMember)
	if _, ok := reg.Class("Missing"); ok {
		t.Fatalf("class with unbound native left registered")
	}
}

func TestStrictInheritanceReportsAmbiguity(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{StrictInheritance: true})
	left := defineClass(t, reg, "Left", func(c *Class) error {
		_, err := c.AddMethod("name", Public, script(t, "", "return left"))
		return err
	})
	right := defineClass(t, reg, "Right", func(c *Class) error {
		_, err := c.AddMethod("name", Public, script(t, "", "return right"))
		return err
	})
	both := defineClass(t, reg, "Both", inherit(left, right))
	mustCreate(t, reg, both, "b")

	_, err := reg.Invoke(context.Background(), "b", "name")
	requireErrorIs(t, err, ErrAmbiguousMember)
	requireKind(t, err, ResolutionError)
	if got := mustInvoke(t, reg, "b", "Right::name"); got != "right" {
		t.Fatalf("qualified call: got %q", got)
	}
}
