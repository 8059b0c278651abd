package identity

import (
	"time"

	"github.com/okian/nebula/pkg/logger"
)

// Option configures a Local provider.
type Option func(*Local)

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Local) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCodeSender replaces the default log-based code delivery.
func WithCodeSender(s CodeSender) Option {
	return func(p *Local) {
		if s != nil {
			p.codes = s
		}
	}
}

// WithTokenTTL sets the access and id token lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(p *Local) {
		if d > 0 {
			p.tokenTTL = d
		}
	}
}

// WithCacheSize bounds the introspection cache.
func WithCacheSize(n int) Option {
	return func(p *Local) {
		if n > 0 {
			p.cacheSize = n
		}
	}
}

// WithMinPasswordStrength sets the minimum zxcvbn score (0-4) accepted on
// registration.
func WithMinPasswordStrength(score int) Option {
	return func(p *Local) {
		if score >= 0 && score <= 4 {
			p.minStrength = score
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(p *Local) {
		if cost > 0 {
			p.bcryptCost = cost
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Local) {
		if now != nil {
			p.now = now
		}
	}
}
