package api

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/okian/nebula/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStats exposes GET /stats backed by p.
func WithStats(p StatsProvider) Option {
	return func(s *Server) {
		s.stats = p
	}
}

// WithPushHandler mounts the socket upgrade handler at GET /ws.
func WithPushHandler(h http.Handler) Option {
	return func(s *Server) {
		s.push = h
	}
}

// WithAllowedOrigins sets the CORS allow-list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithAuthRateLimit throttles the public auth endpoints per client address.
func WithAuthRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 && burst > 0 {
			s.authRate = rate.Limit(perSecond)
			s.authBurst = burst
		}
	}
}
