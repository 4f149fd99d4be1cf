// Package starhost embeds the itcl object system in a Starlark interpreter.
//
// A Host implements itcl.Host: class and object commands live in its command
// table, and interpreted member bodies are compiled as Starlark functions. Inside
// a body, the predeclared value self reaches the running object:
//
//	self.count = str(int(self.count) + 1)   # instance variable through the resolver
//	self.redraw()                           # method call, virtual dispatch applies
//	self.call("Base::constructor", size)    # qualified command
//	self.configure("-color", "red")
//
// Driver scripts run with ExecFile and get new, obj, delete, rename, invoke,
// classes, objects, heritage, and cmd. Objects returned by new and obj are
// Starlark values whose attributes dispatch to methods.
//
// Importing the package enables the Starlark dialect options float, set,
// lambda, nested def and global reassignment by setting the go.starlark.net/resolve
// flags. Those flags are global, so they apply to every Starlark program in
// the process, not only to programs run by a Host.
package starhost
