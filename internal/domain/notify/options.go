package notify

import (
	"time"

	"github.com/okian/nebula/pkg/logger"
)

// Option configures a Fanout.
type Option func(*Fanout)

// WithLogger sets the logger used for delivery failures.
func WithLogger(l logger.Logger) Option {
	return func(f *Fanout) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithTargeted restricts delivery to connections owned by the recipient.
// Off by default: every registered connection receives every notification.
func WithTargeted(targeted bool) Option {
	return func(f *Fanout) {
		f.targeted = targeted
	}
}

// WithSendTimeout bounds each individual push attempt.
func WithSendTimeout(d time.Duration) Option {
	return func(f *Fanout) {
		if d > 0 {
			f.sendTimeout = d
		}
	}
}
