package starhost

import "go.starlark.net/starlark"

// Extension observes a Host. Hooks run synchronously on the host's thread.
type Extension interface {
	// OnStart runs once New has built the registry and the driver builtins.
	OnStart(h *Host)

	// OnExec receives the filename of every driver script, and of session
	// snippets run as statements, before it runs. Member bodies do not
	// trigger it.
	OnExec(path string)

	// OnBuiltinCall runs ahead of each driver builtin such as new or delete.
	OnBuiltinCall(name string, fn *starlark.Builtin)
}

// DefaultExtension implements every hook as a no-op, so extensions embed it
// and override only what they need.
type DefaultExtension struct{}

func (DefaultExtension) OnStart(h *Host)                                 {}
func (DefaultExtension) OnExec(path string)                              {}
func (DefaultExtension) OnBuiltinCall(name string, fn *starlark.Builtin) {}
