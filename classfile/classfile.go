// Package classfile reads class definitions from YAML documents and defines
// them in an itcl registry.
//
//	classes:
//	  - name: Counter
//	    variables:
//	      - {name: count, init: "0"}
//	    methods:
//	      - name: inc
//	        args: "{by 1}"
//	        body: |
//	          self.count = str(int(self.count) + int(by))
//	          return self.count
//	bodies:
//	  - member: Counter::reset
//	    body: self.count = "0"
//
// Member bodies are handed to the registry's host untouched.
package classfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MShaffar19/itcl/itcl"
)

// File is one parsed class-definition document.
type File struct {
	Path         string    `yaml:"-"`
	Classes      []Class   `yaml:"classes"`
	Bodies       []BodyDef `yaml:"bodies,omitempty"`
	ConfigBodies []BodyDef `yaml:"configbodies,omitempty"`

	classPos []position
	bodyPos  []position
	confPos  []position
}

// Class declares one class.
type Class struct {
	Name            string           `yaml:"name"`
	Inherit         []string         `yaml:"inherit,omitempty"`
	Variables       []Variable       `yaml:"variables,omitempty"`
	Commons         []Variable       `yaml:"commons,omitempty"`
	Components      []Component      `yaml:"components,omitempty"`
	Options         []Option         `yaml:"options,omitempty"`
	MethodVariables []MethodVariable `yaml:"methodvariables,omitempty"`
	Methods         []Function       `yaml:"methods,omitempty"`
	Procs           []Function       `yaml:"procs,omitempty"`
	Constructor     *Constructor     `yaml:"constructor,omitempty"`
	Destructor      *Destructor      `yaml:"destructor,omitempty"`
	Init            string           `yaml:"init,omitempty"`
	Delegate        *Delegate        `yaml:"delegate,omitempty"`
	Classes         []Class          `yaml:"classes,omitempty"`
}

// Variable declares an instance variable or a common. Config is code run
// when configure sets a public variable.
type Variable struct {
	Name       string  `yaml:"name"`
	Protection string  `yaml:"protection,omitempty"`
	Init       *string `yaml:"init,omitempty"`
	Config     string  `yaml:"config,omitempty"`
}

// Component declares a component variable. Inherit delegates every unknown
// method and option to it.
type Component struct {
	Name       string `yaml:"name"`
	Protection string `yaml:"protection,omitempty"`
	Inherit    bool   `yaml:"inherit,omitempty"`
}

// Option declares a configuration option such as -color.
type Option struct {
	Name            string `yaml:"name"`
	Protection      string `yaml:"protection,omitempty"`
	Resource        string `yaml:"resource,omitempty"`
	Class           string `yaml:"class,omitempty"`
	Default         string `yaml:"default,omitempty"`
	ReadOnly        bool   `yaml:"readonly,omitempty"`
	CgetMethod      string `yaml:"cgetmethod,omitempty"`
	ConfigureMethod string `yaml:"configuremethod,omitempty"`
	ValidateMethod  string `yaml:"validatemethod,omitempty"`
}

// MethodVariable declares a variable reachable as a method of the object.
type MethodVariable struct {
	Name       string `yaml:"name"`
	Protection string `yaml:"protection,omitempty"`
	Default    string `yaml:"default,omitempty"`
	Callback   string `yaml:"callback,omitempty"`
}

// Function is a method or proc. A nil Body declares the member; the body can
// follow in a bodies entry.
type Function struct {
	Name       string  `yaml:"name"`
	Protection string  `yaml:"protection,omitempty"`
	Args       string  `yaml:"args,omitempty"`
	Body       *string `yaml:"body,omitempty"`
}

// Constructor declares the constructor. Init runs before bases are built.
type Constructor struct {
	Args string `yaml:"args,omitempty"`
	Init string `yaml:"init,omitempty"`
	Body string `yaml:"body,omitempty"`
}

// Destructor declares the destructor body.
type Destructor struct {
	Body string `yaml:"body,omitempty"`
}

// Delegate groups the option and method delegations of a class.
type Delegate struct {
	Options []DelegateOption `yaml:"options,omitempty"`
	Methods []DelegateMethod `yaml:"methods,omitempty"`
}

// DelegateOption forwards an option, or "*" for all, to a component.
type DelegateOption struct {
	Name     string   `yaml:"name"`
	To       string   `yaml:"to"`
	As       string   `yaml:"as,omitempty"`
	Resource string   `yaml:"resource,omitempty"`
	Class    string   `yaml:"class,omitempty"`
	Except   []string `yaml:"except,omitempty"`
}

// DelegateMethod forwards a method, or "*" for all, to a component.
type DelegateMethod struct {
	Name   string   `yaml:"name"`
	To     string   `yaml:"to"`
	As     string   `yaml:"as,omitempty"`
	Using  string   `yaml:"using,omitempty"`
	Except []string `yaml:"except,omitempty"`
	Proc   bool     `yaml:"proc,omitempty"`
}

// BodyDef supplies the body of a member declared earlier, named Class::member.
type BodyDef struct {
	Member string `yaml:"member"`
	Args   string `yaml:"args,omitempty"`
	Body   string `yaml:"body"`
}

type position struct {
	line, column int
}

// Error reports a definition failure at its place in the file.
type Error struct {
	Path   string
	Line   int
	Column int
	Name   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %v", e.Path, e.Line, e.Column, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads and parses a file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class file: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes a document. Unknown fields are rejected.
func Parse(path string, data []byte) (*File, error) {
	f := &File{Path: path}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.classPos = sequencePositions(&root, "classes")
	f.bodyPos = sequencePositions(&root, "bodies")
	f.confPos = sequencePositions(&root, "configbodies")
	return f, nil
}

func sequencePositions(root *yaml.Node, key string) []position {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != key || doc.Content[i+1].Kind != yaml.SequenceNode {
			continue
		}
		var out []position
		for _, item := range doc.Content[i+1].Content {
			out = append(out, position{line: item.Line, column: item.Column})
		}
		return out
	}
	return nil
}

func (f *File) errorAt(positions []position, i int, name string, err error) *Error {
	e := &Error{Path: f.Path, Name: name, Err: err}
	if i < len(positions) {
		e.Line, e.Column = positions[i].line, positions[i].column
	}
	return e
}

// Define defines the file's classes in order, then applies its bodies. It stops
// at the first failure; classes defined before it stay defined.
func (f *File) Define(reg *itcl.Registry) ([]*itcl.Class, error) {
	var defined []*itcl.Class
	for i := range f.Classes {
		def := &f.Classes[i]
		cls, err := reg.DefineClass(def.Name, def.build(reg))
		if err != nil {
			return defined, f.errorAt(f.classPos, i, "class "+def.Name, err)
		}
		defined = append(defined, cls)
	}
	for i, b := range f.Bodies {
		if err := b.apply(reg, false); err != nil {
			return defined, f.errorAt(f.bodyPos, i, "body "+b.Member, err)
		}
	}
	for i, b := range f.ConfigBodies {
		if err := b.apply(reg, true); err != nil {
			return defined, f.errorAt(f.confPos, i, "configbody "+b.Member, err)
		}
	}
	return defined, nil
}

// LoadAll loads and defines each file in turn.
func LoadAll(reg *itcl.Registry, paths ...string) ([]*itcl.Class, error) {
	var all []*itcl.Class
	for _, path := range paths {
		f, err := Load(path)
		if err != nil {
			return all, err
		}
		defined, err := f.Define(reg)
		all = append(all, defined...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func (b BodyDef) apply(reg *itcl.Registry, config bool) error {
	idx := strings.LastIndex(b.Member, "::")
	if idx <= 0 {
		return fmt.Errorf("%w: member %q must be qualified by its class", itcl.ErrBadName, b.Member)
	}
	cls, ok := reg.Class(b.Member[:idx])
	if !ok {
		return fmt.Errorf("%w: class %q not found", itcl.ErrUnknownClass, b.Member[:idx])
	}
	code, err := itcl.NewScriptCode(b.Args, b.Body)
	if err != nil {
		return err
	}
	if config {
		return cls.SetConfigBody(b.Member[idx+2:], code)
	}
	return cls.SetBody(b.Member[idx+2:], code)
}
