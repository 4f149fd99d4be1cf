package itcl

import (
	"context"
	"errors"
	"testing"
)

func TestContextStackPushPop(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Frame", func(c *Class) error {
		for _, name := range []string{"a", "b", "c"} {
			if _, err := c.AddMethod(name, Public, script(t, "", "return")); err != nil {
				return err
			}
		}
		return nil
	})
	obj := mustCreate(t, reg, cls, "f")

	var pushed []*CallContext
	for _, fn := range cls.Functions() {
		cc, err := reg.PushContext(obj, cls, fn)
		if err != nil {
			t.Fatalf("push %s: %v", fn.Name, err)
		}
		pushed = append(pushed, cc)
		if reg.CurrentContext() != cc {
			t.Fatalf("current context should be the last push")
		}
	}
	if reg.ContextDepth() != 3 || reg.LiveContexts() != 3 {
		t.Fatalf("depth %d live %d, want 3 and 3", reg.ContextDepth(), reg.LiveContexts())
	}
	for i := len(pushed) - 1; i >= 0; i-- {
		if err := reg.PopContext(pushed[i]); err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
	}
	if reg.ContextDepth() != 0 || reg.LiveContexts() != 0 {
		t.Fatalf("depth %d live %d after popping everything", reg.ContextDepth(), reg.LiveContexts())
	}
	for _, cc := range pushed {
		if cc.RefCount() != 0 {
			t.Fatalf("context for %s still referenced", cc.Member.Name)
		}
	}

	err := reg.PopContext(pushed[0])
	requireErrorIs(t, err, ErrStackEmpty)
}

func TestReentrantContextsShareRecord(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Loop", func(c *Class) error {
		_, err := c.AddMethod("spin", Public, script(t, "", "return"))
		return err
	})
	obj := mustCreate(t, reg, cls, "l")
	spin, _ := cls.FindFunction("spin")

	outer, err := reg.PushContext(obj, cls, spin)
	if err != nil {
		t.Fatalf("push outer: %v", err)
	}
	inner, err := reg.PushContext(obj, cls, spin)
	if err != nil {
		t.Fatalf("push inner: %v", err)
	}
	if outer != inner || inner.RefCount() != 2 {
		t.Fatalf("re-entrant push should share one record with two references, got %d", inner.RefCount())
	}
	if reg.LiveContexts() != 1 || reg.ContextDepth() != 2 {
		t.Fatalf("live %d depth %d, want 1 and 2", reg.LiveContexts(), reg.ContextDepth())
	}
	if err := reg.PopContext(inner); err != nil {
		t.Fatalf("pop inner: %v", err)
	}
	if outer.RefCount() != 1 || reg.LiveContexts() != 1 {
		t.Fatalf("record freed while still referenced")
	}
	if err := reg.PopContext(outer); err != nil {
		t.Fatalf("pop outer: %v", err)
	}
	if reg.LiveContexts() != 0 {
		t.Fatalf("record not freed")
	}
}

func TestMismatchedPopPanics(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "P", func(c *Class) error {
		if _, err := c.AddProc("one", Public, script(t, "", "return")); err != nil {
			return err
		}
		_, err := c.AddProc("two", Public, script(t, "", "return"))
		return err
	})
	one, _ := cls.FindFunction("one")
	two, _ := cls.FindFunction("two")
	bottom, err := reg.PushContext(nil, cls, one)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	top, err := reg.PushContext(nil, cls, two)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	defer func() {
		recovered := recover()
		var assertion *AssertionError
		if err, ok := recovered.(error); !ok || !errors.As(err, &assertion) {
			t.Fatalf("expected *AssertionError panic, got %v", recovered)
		}
		_ = reg.PopContext(top)
		_ = reg.PopContext(bottom)
	}()
	_ = reg.PopContext(bottom)
}

func TestRecursionLimit(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{RecursionLimit: 8})
	cls := defineClass(t, reg, "Deep", func(c *Class) error {
		_, err := c.AddMethod("down", Public, script(t, "", "down"))
		return err
	})
	mustCreate(t, reg, cls, "deep")
	_, err := reg.Invoke(context.Background(), "deep", "down")
	requireErrorIs(t, err, ErrRecursionLimit)
	requireErrorContains(t, err, "recursion depth exceeded (limit 8)")
	if reg.ContextDepth() != 0 {
		t.Fatalf("context stack not unwound: depth %d", reg.ContextDepth())
	}
}

func TestErrorFramesAreTruncated(t *testing.T) {
	err := &Error{Message: "boom"}
	for i := 0; i < 20; i++ {
		err.Frames = append(err.Frames, StackFrame{Member: "m"})
	}
	requireErrorContains(t, err, "... 4 frames omitted ...")
}
