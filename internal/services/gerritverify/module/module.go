// Package module wires the gerrit verification service and exposes its ports
package module

import (
	"net/http"

	"tagvalidate/internal/modkit"
	"tagvalidate/internal/services/gerritverify/domain"
	"tagvalidate/internal/services/gerritverify/service"
)

// Name is the registry key for this module
const Name = "gerritverify"

// Ports is the port set exposed by the module
type Ports struct {
	Verifier domain.VerifierPort
}

// Module defines the gerrit verification module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the module; non-zero overrides win over config
func New(deps modkit.Deps, overrides Options, transport http.RoundTripper) *Module {
	opts := FromConfig(deps.Cfg)

	if overrides.Timeout != 0 {
		opts.Timeout = overrides.Timeout
	}
	if overrides.Concurrency != 0 {
		opts.Concurrency = overrides.Concurrency
	}
	if overrides.RetryDelay != 0 {
		opts.RetryDelay = overrides.RetryDelay
	}
	if overrides.UserAgent != "" {
		opts.UserAgent = overrides.UserAgent
	}

	svc := service.New(deps, service.Config{
		Timeout:     opts.Timeout,
		Concurrency: opts.Concurrency,
		RetryDelay:  opts.RetryDelay,
		UserAgent:   opts.UserAgent,
		Transport:   transport,
	})

	return &Module{
		deps:  deps,
		opts:  opts,
		ports: Ports{Verifier: svc},
	}
}

// Options returns the effective options after config and overrides
func (m *Module) Options() Options { return m.opts }

// Ports returns the module ports (Verifier)
func (m *Module) Ports() any { return m.ports }

// Name returns the module name
func (m *Module) Name() string { return Name }
