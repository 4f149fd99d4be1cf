// Package itcl layers class-based objects on top of an embeddable host
// interpreter. The core keeps the class and object metadata model:
//   - Classes with multiple inheritance, a cached heritage set per class and
//     most-derived-first member lookup.
//   - Instance and common variables, options with validate, configure and cget
//     hooks, method variables, methods and procs with argument lists.
//   - Components with option and method delegation, honouring exception lists
//     for wildcard delegation.
//   - Objects constructed base-before-derived and destructed in reverse, with
//     partial construction failures unwinding only the classes that finished.
//   - Reference-counted call contexts kept in strict stack order.
//
// The host installs the commands the core asks for and evaluates interpreted
// member bodies. While a body runs the host resolves names through the Frame
// it was given, which implements Resolver.
package itcl
