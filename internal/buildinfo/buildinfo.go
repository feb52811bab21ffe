// Package buildinfo contains build-time metadata kept apart from user
// configuration.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/sawring/sawring/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string
	// BuildDate is the time when the binary was built
	BuildDate string
	// Revision is the VCS revision recorded by the Go toolchain
	Revision string
}

// NewContext returns a Context with the given values.
func NewContext(version, buildDate, revision string) *Context {
	return &Context{Version: version, BuildDate: buildDate, Revision: revision}
}

// Current returns the metadata of the running binary.
func Current() *Context {
	ctx := NewContext(version, buildDate, "")
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				ctx.Revision = s.Value
			}
		}
		if ctx.Version == "" && info.Main.Version != "(devel)" {
			ctx.Version = info.Main.Version
		}
	}
	return ctx
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release is the identifier reported to error telemetry.
func (c *Context) Release() string {
	return "sawring@" + c.GetVersion()
}

// String is the one-line form printed by --version.
func (c *Context) String() string {
	s := fmt.Sprintf("sawring %s (built %s, %s %s/%s)",
		c.GetVersion(), c.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if c != nil && c.Revision != "" {
		rev := c.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		s += " rev " + rev
	}
	return s
}
