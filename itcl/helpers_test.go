package itcl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// scriptHost is a line-oriented host for tests. Each body line is a command;
// words written as $name are read through the frame's resolver.
//
//	record word...   append the words to the transcript
//	fail message     return an error
//	set name value   assign through the resolver
//	return value     stop and return value
//	name args...     resolve name from the frame, else invoke a host command
type scriptHost struct {
	commands map[string]CommandHandler
	handles  map[string]int
	next     int
	log      []string
}

func newScriptHost() *scriptHost {
	return &scriptHost{commands: make(map[string]CommandHandler), handles: make(map[string]int)}
}

func (h *scriptHost) InstallCommand(name string, handler CommandHandler) (Handle, error) {
	if _, exists := h.commands[name]; exists {
		return nil, fmt.Errorf("command %q already exists", name)
	}
	h.next++
	h.commands[name] = handler
	h.handles[name] = h.next
	return h.next, nil
}

func (h *scriptHost) DeleteCommand(name string) error {
	if _, exists := h.commands[name]; !exists {
		return fmt.Errorf("command %q not found", name)
	}
	delete(h.commands, name)
	delete(h.handles, name)
	return nil
}

func (h *scriptHost) RenameCommand(oldName, newName string) error {
	handler, ok := h.commands[oldName]
	if !ok {
		return fmt.Errorf("command %q not found", oldName)
	}
	h.commands[newName] = handler
	h.handles[newName] = h.handles[oldName]
	delete(h.commands, oldName)
	delete(h.handles, oldName)
	return nil
}

func (h *scriptHost) InvokeCommand(ctx context.Context, words []string) (string, error) {
	if len(words) == 0 {
		return "", errors.New("empty command")
	}
	handler, ok := h.commands[words[0]]
	if !ok {
		return "", fmt.Errorf("invalid command name %q", words[0])
	}
	return handler.Dispatch(ctx, words[1:])
}

func (h *scriptHost) Eval(ctx context.Context, frame *Frame, body string) (string, error) {
	var result string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		words, err := SplitList(line)
		if err != nil {
			return "", err
		}
		for i, word := range words {
			if name, ok := strings.CutPrefix(word, "$"); ok && name != "" {
				if value, ok := frame.Args[name]; ok {
					words[i] = value
					continue
				}
				value, err := frame.Var(name)
				if err != nil {
					return "", err
				}
				words[i] = value
			}
		}
		switch words[0] {
		case "record":
			h.log = append(h.log, strings.Join(words[1:], " "))
		case "fail":
			return "", errors.New(strings.Join(words[1:], " "))
		case "set":
			if len(words) != 3 {
				return "", fmt.Errorf("set expects a name and a value")
			}
			if err := frame.SetVar(words[1], words[2]); err != nil {
				return "", err
			}
			result = words[2]
		case "return":
			return strings.Join(words[1:], " "), nil
		default:
			if ref, ok := frame.ResolveCommand(words[0]); ok {
				result, err = ref.Invoke(ctx, words[1:]...)
			} else {
				result, err = h.InvokeCommand(ctx, words)
			}
			if err != nil {
				return "", err
			}
		}
	}
	return result, nil
}

func (h *scriptHost) transcript() []string {
	out := h.log
	h.log = nil
	return out
}

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *scriptHost) {
	t.Helper()
	host := newScriptHost()
	if cfg.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		cfg.Logger = logger
	}
	reg, err := NewRegistry(host, cfg)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(func() {
		_ = reg.Close(context.Background())
	})
	return reg, host
}

func script(t *testing.T, argSpec, body string) *MemberCode {
	t.Helper()
	code, err := NewScriptCode(argSpec, body)
	if err != nil {
		t.Fatalf("script code %q: %v", argSpec, err)
	}
	return code
}

func defineClass(t *testing.T, reg *Registry, name string, body func(*Class) error) *Class {
	t.Helper()
	cls, err := reg.DefineClass(name, body)
	if err != nil {
		t.Fatalf("define class %s: %v", name, err)
	}
	return cls
}

func mustCreate(t *testing.T, reg *Registry, cls *Class, name string, args ...string) *Object {
	t.Helper()
	obj, err := reg.CreateObject(context.Background(), cls, name, args)
	if err != nil {
		t.Fatalf("create %s %s: %v", cls.Name, name, err)
	}
	return obj
}

func mustInvoke(t *testing.T, reg *Registry, object string, args ...string) string {
	t.Helper()
	result, err := reg.Invoke(context.Background(), object, args...)
	if err != nil {
		t.Fatalf("%s %s: %v", object, strings.Join(args, " "), err)
	}
	return result
}

func requireErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %v, got nil", target)
	}
	if !errors.Is(err, target) {
		t.Fatalf("expected error %v, got %v", target, err)
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if !IsKind(err, kind) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func requireErrorContains(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error containing %q, got %v", want, err)
	}
}

func classNames(classes []*Class) []string {
	names := make([]string, len(classes))
	for i, cls := range classes {
		names[i] = cls.Name
	}
	return names
}
