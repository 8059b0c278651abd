package push

import (
	"time"

	"github.com/okian/nebula/pkg/logger"
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAuthenticator resolves the optional token query parameter to a user.
func WithAuthenticator(a Authenticator) Option {
	return func(h *Hub) {
		h.auth = a
	}
}

// WithAllowedOrigins restricts browser handshakes to the given origins.
// An empty list or "*" allows every origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		h.origins = make(map[string]struct{}, len(origins))
		for _, o := range origins {
			h.origins[o] = struct{}{}
		}
	}
}

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithIDGenerator overrides connection id generation.
func WithIDGenerator(gen func() string) Option {
	return func(h *Hub) {
		if gen != nil {
			h.newID = gen
		}
	}
}

// WithClock overrides the time source used for connection timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}
