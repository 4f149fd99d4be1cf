package itcl

import "github.com/sirupsen/logrus"

// Config controls registry limits and resolution modes.
type Config struct {
	// RecursionLimit bounds the depth of the call-context stack.
	RecursionLimit int
	// StrictInheritance reports unqualified names claimed by two unrelated
	// bases as ambiguous instead of picking the first in declaration order.
	StrictInheritance bool
	// DefaultProtection applies to methods, procs and options declared
	// without one. Variables are always protected by default.
	DefaultProtection Protection
	Logger            logrus.FieldLogger
}

const (
	defaultRecursionLimit = 256
	// contextDepthNotice is the depth after which pushes are logged.
	contextDepthNotice = 64
)

func (cfg Config) withDefaults() Config {
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = defaultRecursionLimit
	}
	if cfg.DefaultProtection == ProtectDefault {
		cfg.DefaultProtection = Public
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return cfg
}
