package itcl

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadOnlyOptionOnlyDuringConstruction(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Fixed", func(c *Class) error {
		_, err := c.AddOption("-id", OptionSpec{Default: "none", ReadOnly: true})
		return err
	})
	mustCreate(t, reg, cls, "f", "-id", "42")
	if got := mustInvoke(t, reg, "f", "cget", "-id"); got != "42" {
		t.Fatalf("read-only option set at creation: got %q", got)
	}
	_, err := reg.Invoke(context.Background(), "f", "configure", "-id", "7")
	requireErrorIs(t, err, ErrReadOnlyOption)
	if got := mustInvoke(t, reg, "f", "cget", "-id"); got != "42" {
		t.Fatalf("read-only option changed: got %q", got)
	}
}

func TestOptionHooks(t *testing.T) {
	reg, host := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Hooked", func(c *Class) error {
		spec := OptionSpec{
			Default:         "0",
			ValidateMethod:  "check",
			ConfigureMethod: "changed",
			CgetMethod:      "read",
		}
		if _, err := c.AddOption("-level", spec); err != nil {
			return err
		}
		if _, err := c.AddMethod("check", Private, script(t, "option value", "record validate $option $value")); err != nil {
			return err
		}
		if _, err := c.AddMethod("changed", Private, script(t, "option value", "record configure $option $value")); err != nil {
			return err
		}
		_, err := c.AddMethod("read", Private, script(t, "option", "return level-read"))
		return err
	})
	obj := mustCreate(t, reg, cls, "h")
	mustInvoke(t, reg, "h", "configure", "-level", "3")
	if diff := cmp.Diff([]string{"validate -level 3", "configure -level 3"}, host.transcript()); diff != "" {
		t.Fatalf("hook order (-want +got):\n%s", diff)
	}
	if got := mustInvoke(t, reg, "h", "cget", "-level"); got != "level-read" {
		t.Fatalf("cget method: got %q", got)
	}
	if value, _ := obj.OptionValue("level"); value != "3" {
		t.Fatalf("stored value: got %q", value)
	}
	_, err := reg.Invoke(context.Background(), "h", "check", "-level", "1")
	requireErrorIs(t, err, ErrProtection)
}

func TestValidateFailureKeepsValue(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Strict", func(c *Class) error {
		if _, err := c.AddOption("-mode", OptionSpec{Default: "safe", ValidateMethod: "check"}); err != nil {
			return err
		}
		_, err := c.AddMethod("check", Protected, script(t, "option value", "fail bad $value"))
		return err
	})
	mustCreate(t, reg, cls, "s")
	_, err := reg.Invoke(context.Background(), "s", "configure", "-mode", "wild")
	requireErrorContains(t, err, "bad wild")
	if got := mustInvoke(t, reg, "s", "cget", "-mode"); got != "safe" {
		t.Fatalf("value changed despite failed validation: got %q", got)
	}
}

func TestPublicVariableConfigCodeRestoresOnFailure(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Guarded", func(c *Class) error {
		_, err := c.AddVariable("limit", VariableSpec{
			Protection: Public,
			Init:       "10",
			HasInit:    true,
			Config:     script(t, "", "check $limit"),
		})
		if err != nil {
			return err
		}
		_, err = c.AddMethod("check", Protected, script(t, "value", "record limit $value"))
		return err
	})
	mustCreate(t, reg, cls, "g")
	mustInvoke(t, reg, "g", "configure", "-limit", "20")
	if got := mustInvoke(t, reg, "g", "cget", "-limit"); got != "20" {
		t.Fatalf("config code success: got %q", got)
	}

	if err := cls.SetConfigBody("limit", script(t, "", "fail too big")); err != nil {
		t.Fatalf("set config body: %v", err)
	}
	_, err := reg.Invoke(context.Background(), "g", "configure", "-limit", "99")
	requireErrorContains(t, err, "too big")
	if got := mustInvoke(t, reg, "g", "cget", "-limit"); got != "20" {
		t.Fatalf("failed config code should restore the old value: got %q", got)
	}
}

func TestConfigureListsOptions(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Listed", func(c *Class) error {
		if _, err := c.AddOption("-font", OptionSpec{Default: "mono"}); err != nil {
			return err
		}
		_, err := c.AddVariable("title", VariableSpec{Protection: Public, Init: "untitled", HasInit: true})
		return err
	})
	mustCreate(t, reg, cls, "l")
	got := mustInvoke(t, reg, "l", "configure")
	want := "{-font font Font mono mono} {-title untitled untitled}"
	if got != want {
		t.Fatalf("configure listing:\n got %q\nwant %q", got, want)
	}
	if got := mustInvoke(t, reg, "l", "configure", "-font"); got != "-font font Font mono mono" {
		t.Fatalf("configure single option: got %q", got)
	}
	_, err := reg.Invoke(context.Background(), "l", "configure", "-font")
	if err != nil {
		t.Fatalf("describe option: %v", err)
	}
	_, err = reg.Invoke(context.Background(), "l", "configure", "-font", "a", "-title")
	requireErrorIs(t, err, ErrWrongArgs)
}

func TestMethodVariables(t *testing.T) {
	reg, host := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Counter", func(c *Class) error {
		if _, err := c.AddMethodVariable("count", MethodVariableSpec{Default: "0", Callback: "onCount"}); err != nil {
			return err
		}
		if _, err := c.AddMethod("onCount", Protected, script(t, "value", "record count $value\nreport")); err != nil {
			return err
		}
		_, err := c.AddMethod("report", Public, script(t, "", "record now $count"))
		return err
	})
	mustCreate(t, reg, cls, "c")
	if got := mustInvoke(t, reg, "c", "count"); got != "0" {
		t.Fatalf("default: got %q", got)
	}
	if got := mustInvoke(t, reg, "c", "count", "5"); got != "5" {
		t.Fatalf("set: got %q", got)
	}
	mustInvoke(t, reg, "c", "report")
	want := []string{"count 5", "now 0", "now 5"}
	if diff := cmp.Diff(want, host.transcript()); diff != "" {
		t.Fatalf("method variable transcript (-want +got):\n%s", diff)
	}
}

func TestInfoAndUnknownMethod(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	base := defineClass(t, reg, "Shape", func(c *Class) error {
		_, err := c.AddMethod("area", Public, script(t, "", "return 0"))
		return err
	})
	square := defineClass(t, reg, "Square", func(c *Class) error {
		if err := c.AddBase(base); err != nil {
			return err
		}
		if _, err := c.AddVariable("side", VariableSpec{}); err != nil {
			return err
		}
		_, err := c.AddMethod("hidden", Private, script(t, "", "return"))
		return err
	})
	mustCreate(t, reg, square, "sq")
	if got := mustInvoke(t, reg, "sq", "info", "heritage"); got != "::Square ::Shape" {
		t.Fatalf("info heritage: got %q", got)
	}
	if got := mustInvoke(t, reg, "sq", "info", "class"); got != "::Square" {
		t.Fatalf("info class: got %q", got)
	}
	if got := mustInvoke(t, reg, "sq", "isa", "Shape"); got != "1" {
		t.Fatalf("isa base: got %q", got)
	}
	_, err := reg.Invoke(context.Background(), "sq", "perimeter")
	requireErrorIs(t, err, ErrUnknownMember)
	if !strings.Contains(err.Error(), "sq area") || strings.Contains(err.Error(), "sq hidden") {
		t.Fatalf("usage should list accessible methods only: %v", err)
	}
	_, err = reg.Invoke(context.Background(), "sq", "hidden")
	requireErrorIs(t, err, ErrProtection)
}

func TestVirtualDispatchFromBaseMethod(t *testing.T) {
	reg, _ := newTestRegistry(t, Config{})
	base := defineClass(t, reg, "Animal", func(c *Class) error {
		if _, err := c.AddMethod("speak", Public, script(t, "", "sound")); err != nil {
			return err
		}
		_, err := c.AddMethod("sound", Protected, script(t, "", "return ..."))
		return err
	})
	dog := defineClass(t, reg, "Dog", func(c *Class) error {
		if err := c.AddBase(base); err != nil {
			return err
		}
		_, err := c.AddMethod("sound", Protected, script(t, "", "return woof"))
		return err
	})
	mustCreate(t, reg, base, "a")
	mustCreate(t, reg, dog, "d")
	if got := mustInvoke(t, reg, "a", "speak"); got != "..." {
		t.Fatalf("base speak: got %q", got)
	}
	if got := mustInvoke(t, reg, "d", "speak"); got != "woof" {
		t.Fatalf("virtual speak: got %q", got)
	}
}

func TestProcsAndCommons(t *testing.T) {
	reg, host := newTestRegistry(t, Config{})
	cls := defineClass(t, reg, "Tally", func(c *Class) error {
		if _, err := c.AddCommon("total", VariableSpec{Init: "0", HasInit: true}); err != nil {
			return err
		}
		if _, err := c.AddProc("bump", Public, script(t, "n", "set total $n")); err != nil {
			return err
		}
		_, err := c.AddMethod("peek", Public, script(t, "", "return $total"))
		return err
	})
	if _, err := host.InvokeCommand(context.Background(), []string{"Tally::bump", "4"}); err != nil {
		t.Fatalf("proc command: %v", err)
	}
	if total, _ := cls.Common("total"); total != "4" {
		t.Fatalf("common: got %q", total)
	}
	mustCreate(t, reg, cls, "t1")
	if got := mustInvoke(t, reg, "t1", "peek"); got != "4" {
		t.Fatalf("instances see commons: got %q", got)
	}
	if _, err := reg.CallProc(context.Background(), "Tally::bump", "6"); err != nil {
		t.Fatalf("call proc: %v", err)
	}
	if got := mustInvoke(t, reg, "t1", "peek"); got != "6" {
		t.Fatalf("common after proc: got %q", got)
	}
	_, err := reg.CallProc(context.Background(), "Tally::bump")
	requireErrorIs(t, err, ErrWrongArgs)
	requireErrorContains(t, err, "Tally::bump n")
}
