// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/okian/nebula/internal/domain/identity"
	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/logger"
)

const maxBodyBytes = 1 << 20

// ScoreService is what the score and leaderboard handlers need.
type ScoreService interface {
	SubmitScore(ctx context.Context, userID, userName string, score any) ([]model.ScoreEntry, error)
	Leaderboard(ctx context.Context) ([]model.ScoreEntry, error)
	ClearLeaderboard(ctx context.Context) (int, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	scores    ScoreService
	identity  identity.Provider
	stats     StatsProvider
	push      http.Handler
	origins   []string
	authRate  rate.Limit
	authBurst int
	logger    logger.Logger
}

// NewServer creates a new API server.
func NewServer(scores ScoreService, idp identity.Provider, opts ...Option) *Server {
	s := &Server{
		scores:    scores,
		identity:  idp,
		authRate:  rate.Limit(5),
		authBurst: 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Register attaches all business routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	auth := &authHandler{idp: s.identity, logger: s.logger}
	board := &leaderboardHandler{scores: s.scores, logger: s.logger}
	limit := newRateLimiter(s.authRate, s.authBurst)
	bearer := BearerAuth(s.identity)

	mux.HandleFunc("POST /register", MetricsMiddleware(limit.Wrap(auth.handleRegister), "register"))
	mux.HandleFunc("POST /verify-otp", MetricsMiddleware(limit.Wrap(auth.handleVerifyOTP), "verify_otp"))
	mux.HandleFunc("POST /resend-otp", MetricsMiddleware(limit.Wrap(auth.handleResendOTP), "resend_otp"))
	mux.HandleFunc("POST /login", MetricsMiddleware(limit.Wrap(auth.handleLogin), "login"))

	mux.HandleFunc("POST /score", MetricsMiddleware(bearer(board.handleSubmitScore), "score"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(board.handleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("DELETE /leaderboard", MetricsMiddleware(bearer(board.handleDeleteLeaderboard), "leaderboard"))

	mux.HandleFunc("GET /health", MetricsMiddleware(handleHealth, "health"))
	mux.Handle("GET /metrics", metricsHandler())
	if s.stats != nil {
		mux.HandleFunc("GET /stats", MetricsMiddleware(NewStatsHandler(s.stats).HandleStats, "stats"))
	}
	if s.push != nil {
		mux.Handle("GET /ws", s.push)
	}
}

// Handler wraps mux with the process-wide middleware chain.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return RecoverMiddleware(s.logger)(CORSMiddleware(s.origins)(mux))
}

// envelope is the body of every JSON API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// decodeBody reads a JSON object into dst. Numbers stay json.Number so score
// parsing sees what the client sent.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
