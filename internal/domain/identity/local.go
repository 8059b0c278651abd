package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	zxcvbn "github.com/ccojocar/zxcvbn-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/maypok86/otter"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/nebula/pkg/logger"
	"github.com/okian/nebula/pkg/metrics"
)

const (
	defaultTokenTTL    = time.Hour
	refreshTokenTTL    = 30 * 24 * time.Hour
	codeTTL            = 24 * time.Hour
	codeDigits         = 6
	defaultCacheSize   = 10000
	defaultMinStrength = 2
	issuer             = "nebula"

	tokenUseAccess  = "access"
	tokenUseID      = "id"
	tokenUseRefresh = "refresh"
)

type claims struct {
	TokenUse          string `json:"token_use"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type account struct {
	mu          sync.Mutex
	sub         string
	username    string
	email       string
	name        string
	hash        []byte
	confirmed   bool
	code        string
	codeExpires time.Time
}

type introspection struct {
	attrs     Attributes
	expiresAt time.Time
}

// Local is an in-process Provider. Accounts live in memory; tokens are HS256
// JWTs signed with a shared secret.
type Local struct {
	secret      []byte
	users       *xsync.Map[string, *account]
	emails      *xsync.Map[string, string]
	cache       otter.Cache[string, introspection]
	codes       CodeSender
	tokenTTL    time.Duration
	cacheSize   int
	minStrength int
	bcryptCost  int
	now         func() time.Time
	logger      logger.Logger
}

var _ Provider = (*Local)(nil)

// NewLocal builds a Local provider signing tokens with secret.
func NewLocal(secret string, opts ...Option) (*Local, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("signing secret: %w", ErrInvalidInput)
	}
	p := &Local{
		secret:      []byte(secret),
		users:       xsync.NewMap[string, *account](),
		emails:      xsync.NewMap[string, string](),
		tokenTTL:    defaultTokenTTL,
		cacheSize:   defaultCacheSize,
		minStrength: defaultMinStrength,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("identity")
	}
	if p.codes == nil {
		p.codes = LogCodeSender{Logger: p.logger}
	}

	cache, err := otter.MustBuilder[string, introspection](p.cacheSize).
		Cost(func(_ string, _ introspection) uint32 { return 1 }).
		WithTTL(p.tokenTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token cache: %w", err)
	}
	p.cache = cache
	return p, nil
}

// Register creates an unconfirmed account and sends it a confirmation code.
func (p *Local) Register(ctx context.Context, r Registration) (RegisteredUser, error) {
	username := strings.TrimSpace(r.PreferredUsername)
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if username == "" || email == "" || strings.TrimSpace(r.Name) == "" || r.Password == "" {
		p.record("register", ErrInvalidInput)
		return RegisteredUser{}, ErrInvalidInput
	}

	strength := zxcvbn.PasswordStrength(r.Password, []string{username, email, r.Name})
	if strength.Score < p.minStrength {
		p.record("register", ErrWeakPassword)
		return RegisteredUser{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), p.bcryptCost)
	if err != nil {
		return RegisteredUser{}, fmt.Errorf("hash password: %w", err)
	}
	code, err := newCode()
	if err != nil {
		return RegisteredUser{}, err
	}

	acct := &account{
		sub:         uuid.NewString(),
		username:    username,
		email:       email,
		name:        strings.TrimSpace(r.Name),
		hash:        hash,
		code:        code,
		codeExpires: p.now().Add(codeTTL),
	}
	if _, loaded := p.users.LoadOrStore(username, acct); loaded {
		p.record("register", ErrUserExists)
		return RegisteredUser{}, ErrUserExists
	}
	if _, loaded := p.emails.LoadOrStore(email, username); loaded {
		p.users.Delete(username)
		p.record("register", ErrUserExists)
		return RegisteredUser{}, ErrUserExists
	}

	if err := p.codes.SendCode(ctx, username, email, code); err != nil {
		// The account stands; the user can ask for another code.
		p.logger.Warn(ctx, "deliver confirmation code", logger.String("username", username), logger.Error(err))
	}
	p.record("register", nil)
	return RegisteredUser{UserID: acct.sub, Username: username, Email: email, Name: acct.name}, nil
}

// Confirm marks the account confirmed when code matches the outstanding one.
func (p *Local) Confirm(_ context.Context, username, code string) error {
	acct, ok := p.users.Load(strings.TrimSpace(username))
	if !ok {
		p.record("confirm", ErrUserNotFound)
		return ErrUserNotFound
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()

	var err error
	switch {
	case acct.confirmed:
		err = ErrAlreadyConfirmed
	case acct.code == "" || p.now().After(acct.codeExpires):
		err = ErrCodeExpired
	case subtle.ConstantTimeCompare([]byte(acct.code), []byte(strings.TrimSpace(code))) != 1:
		err = ErrCodeMismatch
	default:
		acct.confirmed = true
		acct.code = ""
	}
	p.record("confirm", err)
	return err
}

// ResendCode issues a fresh code for an unconfirmed account.
func (p *Local) ResendCode(ctx context.Context, username string) error {
	acct, ok := p.users.Load(strings.TrimSpace(username))
	if !ok {
		p.record("resend", ErrUserNotFound)
		return ErrUserNotFound
	}
	code, err := newCode()
	if err != nil {
		return err
	}

	acct.mu.Lock()
	if acct.confirmed {
		acct.mu.Unlock()
		p.record("resend", ErrAlreadyConfirmed)
		return ErrAlreadyConfirmed
	}
	acct.code = code
	acct.codeExpires = p.now().Add(codeTTL)
	email := acct.email
	acct.mu.Unlock()

	if err := p.codes.SendCode(ctx, acct.username, email, code); err != nil {
		p.record("resend", err)
		return fmt.Errorf("deliver confirmation code: %w", err)
	}
	p.record("resend", nil)
	return nil
}

// Login checks credentials and issues tokens.
func (p *Local) Login(_ context.Context, username, password string) (Tokens, error) {
	acct, ok := p.users.Load(strings.TrimSpace(username))
	if !ok {
		p.record("login", ErrInvalidCredentials)
		return Tokens{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		p.record("login", ErrInvalidCredentials)
		return Tokens{}, ErrInvalidCredentials
	}

	acct.mu.Lock()
	confirmed := acct.confirmed
	acct.mu.Unlock()
	if !confirmed {
		p.record("login", ErrUserNotConfirmed)
		return Tokens{}, ErrUserNotConfirmed
	}

	now := p.now()
	access, err := p.sign(acct, tokenUseAccess, now, p.tokenTTL)
	if err != nil {
		return Tokens{}, err
	}
	id, err := p.sign(acct, tokenUseID, now, p.tokenTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := p.sign(acct, tokenUseRefresh, now, refreshTokenTTL)
	if err != nil {
		return Tokens{}, err
	}

	p.record("login", nil)
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		IDToken:      id,
		ExpiresIn:    int(p.tokenTTL / time.Second),
		UserID:       acct.sub,
		Name:         acct.name,
		Username:     acct.username,
		Email:        acct.email,
	}, nil
}

// Introspect resolves an access token to the attributes of its owner.
func (p *Local) Introspect(_ context.Context, accessToken string) (Attributes, error) {
	if accessToken == "" {
		return Attributes{}, ErrInvalidToken
	}
	now := p.now()
	if hit, ok := p.cache.Get(accessToken); ok {
		if now.Before(hit.expiresAt) {
			return hit.attrs, nil
		}
		p.cache.Delete(accessToken)
	}

	var c claims
	_, err := jwt.ParseWithClaims(accessToken, &c,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return Attributes{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.TokenUse != tokenUseAccess {
		return Attributes{}, fmt.Errorf("%w: token_use %q", ErrInvalidToken, c.TokenUse)
	}
	acct, ok := p.users.Load(c.PreferredUsername)
	if !ok || acct.sub != c.Subject {
		return Attributes{}, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
	}

	attrs := Attributes{
		Sub:               acct.sub,
		PreferredUsername: acct.username,
		Name:              acct.name,
		Email:             acct.email,
	}
	p.cache.Set(accessToken, introspection{attrs: attrs, expiresAt: c.ExpiresAt.Time})
	return attrs, nil
}

func (p *Local) sign(acct *account, use string, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		TokenUse:          use,
		PreferredUsername: acct.username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   acct.sub,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if use == tokenUseID {
		c.Name = acct.name
		c.Email = acct.email
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return signed, nil
}

func (p *Local) record(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		if errors.Is(err, ErrInvalidInput) {
			result = "invalid"
		}
	}
	metrics.RecordAuthAttempt(op, result)
}

func newCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
