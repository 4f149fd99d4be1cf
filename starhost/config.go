package starhost

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/MShaffar19/itcl/itcl"
)

// Config controls a Host. Zero values are replaced with defaults by New.
type Config struct {
	// Registry configures the class registry the host owns. Its Logger is
	// shared with the host.
	Registry itcl.Config
	// Stdout receives print() output and the puts command.
	Stdout io.Writer
	// Extensions observe execution in installation order.
	Extensions []Extension
}

func (c Config) withDefaults() Config {
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Registry.Logger == nil {
		c.Registry.Logger = logrus.StandardLogger()
	}
	return c
}
