package starhost

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/MShaffar19/itcl/itcl"
)

// A fixture for test setup/teardown
type fixture struct {
	t    *testing.T
	host *Host
	out  *bytes.Buffer
	path string
}

func newFixture(t *testing.T, extensions ...Extension) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.Out = io.Discard
	out := new(bytes.Buffer)
	h, err := New(Config{
		Registry:   itcl.Config{Logger: logger},
		Stdout:     out,
		Extensions: extensions,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.Close(context.Background())
	})
	return &fixture{t: t, host: h, out: out, path: t.TempDir()}
}

func (f *fixture) reg() *itcl.Registry {
	return f.host.Registry()
}

func (f *fixture) File(name, contents string) {
	fullPath := filepath.Join(f.path, name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(fullPath), os.FileMode(0777)))
	require.NoError(f.t, os.WriteFile(fullPath, []byte(contents), os.FileMode(0666)))
}

func (f *fixture) ExecFile(name string) (starlark.StringDict, error) {
	return f.host.ExecFile(context.Background(), filepath.Join(f.path, name))
}

func (f *fixture) Exec(src string) (starlark.StringDict, error) {
	return f.host.ExecSource(context.Background(), "test.star", src)
}

func (f *fixture) MustExec(src string) starlark.StringDict {
	f.t.Helper()
	globals, err := f.Exec(src)
	require.NoError(f.t, err)
	return globals
}

func (f *fixture) define(name string, body func(*itcl.Class) error) *itcl.Class {
	f.t.Helper()
	cls, err := f.reg().DefineClass(name, body)
	require.NoError(f.t, err)
	return cls
}

func (f *fixture) defineCounter() *itcl.Class {
	return f.define("Counter", func(c *itcl.Class) error {
		if _, err := c.AddVariable("count", itcl.VariableSpec{Init: "0", HasInit: true}); err != nil {
			return err
		}
		_, err := c.AddMethod("inc", itcl.Public, itcl.MustScriptCode("{by 1}", `
self.count = str(int(self.count) + int(by))
return self.count
`))
		return err
	})
}

type recordingExtension struct {
	DefaultExtension
	started bool
	execs   []string
	calls   []string
}

func (e *recordingExtension) OnStart(h *Host)    { e.started = true }
func (e *recordingExtension) OnExec(path string) { e.execs = append(e.execs, filepath.Base(path)) }

func (e *recordingExtension) OnBuiltinCall(name string, fn *starlark.Builtin) {
	e.calls = append(e.calls, name)
}
