// Package identity registers, confirms and authenticates players and
// introspects the access tokens they present.
package identity

import (
	"context"

	"github.com/okian/nebula/pkg/logger"
)

// Registration is the sign-up request.
type Registration struct {
	Email             string
	PreferredUsername string
	Name              string
	Password          string
}

// RegisteredUser describes a newly created, unconfirmed account.
type RegisteredUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// Attributes are the claims a valid access token resolves to.
type Attributes struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
}

// Tokens is the result of a successful login.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IDToken      string `json:"idToken"`
	ExpiresIn    int    `json:"expiresIn"`
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
}

// Provider is the identity backend the HTTP layer talks to.
type Provider interface {
	Register(ctx context.Context, r Registration) (RegisteredUser, error)
	Confirm(ctx context.Context, username, code string) error
	ResendCode(ctx context.Context, username string) error
	Login(ctx context.Context, username, password string) (Tokens, error)
	Introspect(ctx context.Context, accessToken string) (Attributes, error)
}

// CodeSender delivers confirmation codes out of band.
type CodeSender interface {
	SendCode(ctx context.Context, username, email, code string) error
}

// LogCodeSender writes codes to the log. Useful for local development.
type LogCodeSender struct {
	Logger logger.Logger
}

// SendCode logs the code at info level.
func (s LogCodeSender) SendCode(ctx context.Context, username, email, code string) error {
	s.Logger.Info(ctx, "confirmation code issued",
		logger.String("username", username),
		logger.String("email", email),
		logger.String("code", code),
	)
	return nil
}
