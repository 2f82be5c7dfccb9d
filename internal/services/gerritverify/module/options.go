package module

import (
	"time"

	"tagvalidate/internal/platform/config"
)

// Options controls the gerrit verifier
type Options struct {
	Timeout     time.Duration
	Concurrency int
	RetryDelay  time.Duration
	UserAgent   string
}

// FromConfig reads with GERRIT_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("GERRIT_")
	return Options{
		Timeout:     c.MayDuration("TIMEOUT", 10*time.Second),
		Concurrency: c.MayInt("CONCURRENCY", 4),
		RetryDelay:  c.MayDuration("RETRY_DELAY", 250*time.Millisecond),
		UserAgent:   c.MayString("USER_AGENT", ""),
	}
}
