// Package modkit provides the core deps bundle handed to service modules
package modkit

import (
	"time"

	"tagvalidate/internal/platform/config"
	"tagvalidate/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	// Now is the clock used for key expiry checks; nil means time.Now
	Now func() time.Time
}

// Clock returns the configured clock, defaulting to time.Now
func (d Deps) Clock() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}
