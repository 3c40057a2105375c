// Package lifecycle owns the process-wide spill manager as an explicit object.
// A Global is created once by the program (or once per test) and passed to
// the code that needs a manager; there is no package-level instance.
package lifecycle

import (
	"fmt"

	"spilld/internal/config"
	"spilld/internal/spill"
)

// Global lazily builds a spill.Manager from configuration on first use. The
// configuration is read once and cached until Clear.
type Global struct {
	lookup   config.LookupFunc
	base     config.Config
	template spill.ManagerConfig

	loaded  bool
	opts    config.SpillOptions
	optsErr error

	mgr *spill.Manager
}

// Option customises a Global.
type Option func(*Global)

// WithLookupEnv replaces os.LookupEnv as the configuration source.
func WithLookupEnv(fn config.LookupFunc) Option {
	return func(g *Global) { g.lookup = fn }
}

// WithBaseConfig sets the configuration environment variables are layered on.
func WithBaseConfig(c config.Config) Option {
	return func(g *Global) { g.base = c }
}

// WithManagerConfig supplies allocators, logger and publisher for the manager
// Get builds. SpillOnDemand and DeviceMemoryLimit always come from configuration.
func WithManagerConfig(c spill.ManagerConfig) Option {
	return func(g *Global) { g.template = c }
}

// New returns a Global that has not read its configuration yet.
func New(opts ...Option) *Global {
	g := &Global{lookup: config.OSLookup}
	for _, o := range opts {
		o(g)
	}
	return g
}

// NewIsolated returns a Global with a fresh manager already installed and no
// environment source. It is meant for tests.
func NewIsolated(cfg spill.ManagerConfig) *Global {
	g := New(WithLookupEnv(func(string) (string, bool) { return "", false }), WithManagerConfig(cfg))
	g.Reset(spill.NewWithConfig(cfg))
	return g
}

func (g *Global) load() {
	if g.loaded {
		return
	}
	cfg, err := config.FromEnv(g.lookup, g.base)
	g.opts = cfg.SpillOptions()
	g.optsErr = err
	g.loaded = true
}

// Options returns the cached spill options and any error from reading them.
func (g *Global) Options() (config.SpillOptions, error) {
	g.load()
	return g.opts, g.optsErr
}

// Enabled reports whether a manager is installed or configuration enables one.
// It never fails.
func (g *Global) Enabled() bool {
	if g.mgr != nil {
		return true
	}
	g.load()
	return g.opts.Enabled
}

// Get returns the manager, building it on first use.
func (g *Global) Get() (*spill.Manager, error) {
	if g.mgr != nil {
		return g.mgr, nil
	}
	g.load()
	if !g.opts.Enabled {
		return nil, spill.ErrConfiguration("No global SpillManager")
	}
	if g.optsErr != nil {
		return nil, spill.ErrConfiguration(fmt.Sprintf("invalid spill configuration: %v", g.optsErr))
	}
	cfg := g.template
	cfg.SpillOnDemand = g.opts.SpillOnDemand
	cfg.DeviceMemoryLimit = g.opts.DeviceMemoryLimit
	g.mgr = spill.NewWithConfig(cfg)
	return g.mgr, nil
}

// Reset installs m as the manager and returns it.
func (g *Global) Reset(m *spill.Manager) *spill.Manager {
	g.mgr = m
	return m
}

// Clear drops the manager and the cached configuration, so the next call
// re-reads configuration.
func (g *Global) Clear() {
	g.mgr = nil
	g.loaded = false
	g.opts = config.SpillOptions{}
	g.optsErr = nil
}
