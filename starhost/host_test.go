package starhost

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/MShaffar19/itcl/itcl"
)

func TestBodiesReadAndWriteInstanceVariables(t *testing.T) {
	f := newFixture(t)
	f.defineCounter()

	globals := f.MustExec(`
c = new("Counter", "c")
c.inc()
result = c.inc(5)
`)
	assert.Equal(t, starlark.String("6"), globals["result"])
	count, ok := f.reg().Objects()[0].Variable("count")
	require.True(t, ok)
	assert.Equal(t, "6", count)
}

func TestCompiledBodiesAreCached(t *testing.T) {
	f := newFixture(t)
	f.defineCounter()

	f.MustExec(`
a = new("Counter")
b = new("Counter")
a.inc()
b.inc()
a.inc(2)
`)
	assert.Len(t, f.host.programs, 1)
	assert.Equal(t, []string{"counter0", "counter1"}, []string{f.reg().Objects()[0].Name, f.reg().Objects()[1].Name})
}

func TestConstructorInitConstructsBaseExplicitly(t *testing.T) {
	f := newFixture(t)
	base := f.define("Base", func(c *itcl.Class) error {
		if _, err := c.AddVariable("size", itcl.VariableSpec{}); err != nil {
			return err
		}
		_, err := c.SetConstructor(itcl.MustScriptCode("size", `self.size = size`), nil)
		return err
	})
	f.define("Derived", func(c *itcl.Class) error {
		if err := c.AddBase(base); err != nil {
			return err
		}
		_, err := c.SetConstructor(
			itcl.MustScriptCode("n", `print("derived", self.size)`),
			itcl.MustScriptCode("", `self.call("Base::constructor", str(int(n) * 2))`),
		)
		return err
	})

	f.MustExec(`new("Derived", "d", 4)`)
	assert.Equal(t, "derived 8\n", f.out.String())
}

func TestSelfDispatchesVirtually(t *testing.T) {
	f := newFixture(t)
	animal := f.define("Animal", func(c *itcl.Class) error {
		if _, err := c.AddMethod("speak", itcl.Public, itcl.MustScriptCode("", `return "I say " + self.sound()`)); err != nil {
			return err
		}
		_, err := c.AddMethod("sound", itcl.Protected, itcl.MustScriptCode("", `return "..."`))
		return err
	})
	f.define("Dog", func(c *itcl.Class) error {
		if err := c.AddBase(animal); err != nil {
			return err
		}
		_, err := c.AddMethod("sound", itcl.Protected, itcl.MustScriptCode("", `return "woof"`))
		return err
	})

	globals := f.MustExec(`
generic = new("Animal").speak()
dog = new("Dog").speak()
`)
	assert.Equal(t, starlark.String("I say ..."), globals["generic"])
	assert.Equal(t, starlark.String("I say woof"), globals["dog"])

	_, err := f.Exec(`new("Dog", "rex").sound()`)
	assert.True(t, errors.Is(err, itcl.ErrProtection), "got %v", err)
}

func TestCoreErrorsSurviveStarlark(t *testing.T) {
	f := newFixture(t)
	f.define("Broken", func(c *itcl.Class) error {
		_, err := c.AddMethod("poke", itcl.Public, itcl.MustScriptCode("", `self.setvar("missing", 1)`))
		return err
	})

	_, err := f.Exec(`new("Broken", "b").poke()`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, itcl.ErrUnknownMember), "got %v", err)
	assert.True(t, itcl.IsKind(err, itcl.ResolutionError))
	assert.Contains(t, err.Error(), "test.star")

	_, err = f.Exec(`new("Nowhere")`)
	assert.True(t, errors.Is(err, itcl.ErrUnknownClass), "got %v", err)
}

func TestScriptErrorsCarryBacktrace(t *testing.T) {
	f := newFixture(t)
	f.define("Bad", func(c *itcl.Class) error {
		_, err := c.AddMethod("boom", itcl.Public, itcl.MustScriptCode("", `return {}["missing"]`))
		return err
	})

	_, err := f.Exec(`new("Bad", "b").boom()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Traceback")
	assert.Contains(t, err.Error(), "Bad::boom")
}

func TestKeywordArgumentsBecomeOptions(t *testing.T) {
	f := newFixture(t)
	f.define("Widget", func(c *itcl.Class) error {
		_, err := c.AddOption("-color", itcl.OptionSpec{Default: "red"})
		return err
	})

	globals := f.MustExec(`
w = new("Widget", "w", color = "blue")
before = w.cget("-color")
w.configure(color = "green")
after = invoke("w", "cget", "-color")
`)
	assert.Equal(t, starlark.String("blue"), globals["before"])
	assert.Equal(t, starlark.String("green"), globals["after"])
}

func TestProcsAndCommonsThroughCommands(t *testing.T) {
	f := newFixture(t)
	tally := f.define("Tally", func(c *itcl.Class) error {
		if _, err := c.AddCommon("total", itcl.VariableSpec{Init: "0", HasInit: true}); err != nil {
			return err
		}
		_, err := c.AddProc("bump", itcl.Public, itcl.MustScriptCode("n", `self.total = str(int(self.total) + int(n))`))
		return err
	})

	f.MustExec(`
cmd("Tally::bump", 3)
cmd("Tally::bump", 4)
`)
	total, ok := tally.Common("total")
	require.True(t, ok)
	assert.Equal(t, "7", total)
}

func TestRenameDeleteAndListing(t *testing.T) {
	f := newFixture(t)
	f.defineCounter()

	globals := f.MustExec(`
new("Counter", "c")
rename("c", "d")
renamed = objects()
delete("d")
remaining = objects()
known = classes()
`)
	assert.Equal(t, `["d"]`, globals["renamed"].String())
	assert.Equal(t, `[]`, globals["remaining"].String())
	assert.Equal(t, `["Counter"]`, globals["known"].String())

	f.MustExec(`delete("Counter")`)
	assert.Empty(t, f.reg().Classes())
}

func TestHeritageBuiltin(t *testing.T) {
	f := newFixture(t)
	base := f.define("Shape", nil)
	f.define("Square", func(c *itcl.Class) error {
		return c.AddBase(base)
	})

	globals := f.MustExec(`chain = heritage("Square")`)
	assert.Equal(t, `["Square", "Shape"]`, globals["chain"].String())
}

func TestRemoveCommandDestroysObject(t *testing.T) {
	f := newFixture(t)
	f.define("Temp", func(c *itcl.Class) error {
		_, err := c.SetDestructor(itcl.MustScriptCode("", `print("bye", self.this)`))
		return err
	})
	f.MustExec(`new("Temp", "tmp")`)

	require.NoError(t, f.host.RemoveCommand(context.Background(), "tmp"))
	_, ok := f.reg().Object("tmp")
	assert.False(t, ok)
	assert.Equal(t, "bye tmp\n", f.out.String())
	assert.NotContains(t, f.host.Commands(), "tmp")
}

func TestSequencesBecomeLists(t *testing.T) {
	f := newFixture(t)
	f.define("Lister", func(c *itcl.Class) error {
		_, err := c.AddMethod("items", itcl.Public, itcl.MustScriptCode("args", `return ["a", "b c"] + list(args)`))
		return err
	})

	got, err := f.reg().Invoke(context.Background(), mustCreate(t, f, "Lister"), "items", "d")
	require.NoError(t, err)
	assert.Equal(t, "a {b c} d", got)
}

func TestCancelledContextStopsBodies(t *testing.T) {
	f := newFixture(t)
	f.defineCounter()
	name := mustCreate(t, f, "Counter")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.reg().Invoke(ctx, name, "inc")
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestExtensionsObserveExecution(t *testing.T) {
	ext := &recordingExtension{}
	f := newFixture(t, ext)
	f.defineCounter()
	f.File("drive.star", `
c = new("Counter", "c")
print(objects())
`)

	_, err := f.ExecFile("drive.star")
	require.NoError(t, err)
	assert.True(t, ext.started)
	assert.Equal(t, []string{"drive.star"}, ext.execs)
	assert.Equal(t, []string{"new", "objects"}, ext.calls)
	assert.Equal(t, "[\"c\"]\n", f.out.String())
}

func TestSessionKeepsGlobals(t *testing.T) {
	f := newFixture(t)
	f.defineCounter()
	s := f.host.NewSession()
	ctx := context.Background()

	out, err := s.Eval(ctx, `c = new("Counter", "c")`)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	out, err = s.Eval(ctx, `c.inc(3)`)
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	out, err = s.Eval(ctx, `c`)
	require.NoError(t, err)
	assert.Equal(t, "c", out)
	assert.Equal(t, []string{"c"}, s.Globals())

	_, err = s.Eval(ctx, `c.nothing()`)
	assert.True(t, errors.Is(err, itcl.ErrUnknownMember), "got %v", err)
}

func mustCreate(t *testing.T, f *fixture, class string) string {
	t.Helper()
	cls, ok := f.reg().Class(class)
	require.True(t, ok)
	obj, err := f.reg().CreateObject(context.Background(), cls, "#auto", nil)
	require.NoError(t, err)
	return obj.Name
}
