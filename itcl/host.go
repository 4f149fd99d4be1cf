package itcl

import "context"

// Handle identifies a command installed in the host. Registries use handles as
// the metadata keys that recover class and object records from host commands.
type Handle any

// CommandHandler receives invocations of a command the core installed in the host.
// args excludes the command word itself.
type CommandHandler interface {
	Dispatch(ctx context.Context, args []string) (string, error)
}

// CommandFunc adapts a function to CommandHandler.
type CommandFunc func(ctx context.Context, args []string) (string, error)

// Dispatch calls f.
func (f CommandFunc) Dispatch(ctx context.Context, args []string) (string, error) {
	return f(ctx, args)
}

// Host is the embedding interpreter. The core never evaluates script text itself;
// interpreted member bodies are handed to Eval together with the frame that
// resolves object and class scoped names.
type Host interface {
	InstallCommand(name string, handler CommandHandler) (Handle, error)
	DeleteCommand(name string) error
	RenameCommand(oldName, newName string) error
	InvokeCommand(ctx context.Context, words []string) (string, error)
	Eval(ctx context.Context, frame *Frame, body string) (string, error)
}

// Resolver is the capability hosts use while a member body runs, so that
// unqualified names inside the body find instance and class scoped state.
type Resolver interface {
	ResolveVariable(name string) (VarRef, bool)
	ResolveCommand(name string) (CommandRef, bool)
}

// VarRef is a resolved variable slot.
type VarRef interface {
	Name() string
	Get() (string, error)
	Set(value string) error
}

// CommandRef is a resolved command bound to the calling frame.
type CommandRef interface {
	Name() string
	Invoke(ctx context.Context, args ...string) (string, error)
}
