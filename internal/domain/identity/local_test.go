package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/nebula/pkg/logger"
)

const strongPassword = "Quasar-lantern-97-orbit!"

type capturedCodes struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (c *capturedCodes) SendCode(_ context.Context, username, _, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.codes[username] = code
	return nil
}

func (c *capturedCodes) last(username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[username]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestProvider(codes *capturedCodes, clock *fakeClock) *Local {
	p, err := NewLocal("test-secret",
		WithLogger(logger.Nop()),
		WithCodeSender(codes),
		WithBcryptCost(bcrypt.MinCost),
		WithClock(clock.Now),
		WithTokenTTL(time.Hour),
		WithCacheSize(16),
	)
	So(err, ShouldBeNil)
	return p
}

func ada() Registration {
	return Registration{Email: "Ada@Example.com", PreferredUsername: "ada", Name: "Ada Lovelace", Password: strongPassword}
}

func TestNewLocal(t *testing.T) {
	Convey("Given an empty signing secret", t, func() {
		_, err := NewLocal("  ", WithLogger(logger.Nop()))

		Convey("Then construction fails", func() {
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestLocal_RegisterAndConfirm(t *testing.T) {
	Convey("Given a local provider", t, func() {
		ctx := context.Background()
		codes := &capturedCodes{codes: map[string]string{}}
		clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
		p := newTestProvider(codes, clock)

		Convey("When a user registers", func() {
			user, err := p.Register(ctx, ada())

			Convey("Then the account is created and a six digit code is sent", func() {
				So(err, ShouldBeNil)
				So(user.UserID, ShouldNotBeEmpty)
				So(user.Username, ShouldEqual, "ada")
				So(user.Email, ShouldEqual, "ada@example.com")
				So(codes.last("ada"), ShouldHaveLength, 6)
			})

			Convey("And the same username registers again", func() {
				_, err := p.Register(ctx, Registration{Email: "other@example.com", PreferredUsername: "ada", Name: "Other", Password: strongPassword})
				So(err, ShouldEqual, ErrUserExists)
			})

			Convey("And another username reuses the email", func() {
				_, err := p.Register(ctx, Registration{Email: "ada@example.com", PreferredUsername: "ada2", Name: "Ada", Password: strongPassword})
				So(err, ShouldEqual, ErrUserExists)

				Convey("Then the second username is not left behind", func() {
					So(p.Confirm(ctx, "ada2", "000000"), ShouldEqual, ErrUserNotFound)
				})
			})

			Convey("And login is attempted before confirming", func() {
				_, err := p.Login(ctx, "ada", strongPassword)
				So(err, ShouldEqual, ErrUserNotConfirmed)
			})

			Convey("And the wrong code is submitted", func() {
				wrong := "000000"
				if codes.last("ada") == wrong {
					wrong = "111111"
				}
				So(p.Confirm(ctx, "ada", wrong), ShouldEqual, ErrCodeMismatch)
			})

			Convey("And the code has expired", func() {
				clock.Advance(25 * time.Hour)
				So(p.Confirm(ctx, "ada", codes.last("ada")), ShouldEqual, ErrCodeExpired)

				Convey("Then a resent code works", func() {
					So(p.ResendCode(ctx, "ada"), ShouldBeNil)
					So(p.Confirm(ctx, "ada", codes.last("ada")), ShouldBeNil)
				})
			})

			Convey("And the right code is submitted", func() {
				So(p.Confirm(ctx, "ada", codes.last("ada")), ShouldBeNil)

				Convey("Then confirming again is rejected", func() {
					So(p.Confirm(ctx, "ada", "123456"), ShouldEqual, ErrAlreadyConfirmed)
					So(p.ResendCode(ctx, "ada"), ShouldEqual, ErrAlreadyConfirmed)
				})
			})
		})

		Convey("When the password is weak", func() {
			r := ada()
			r.Password = "password"
			_, err := p.Register(ctx, r)

			Convey("Then registration is refused", func() {
				So(err, ShouldEqual, ErrWeakPassword)
			})
		})

		Convey("When a field is missing", func() {
			r := ada()
			r.Name = " "
			_, err := p.Register(ctx, r)
			So(err, ShouldEqual, ErrInvalidInput)
		})

		Convey("When the code cannot be delivered", func() {
			codes.err = errors.New("smtp down")
			_, err := p.Register(ctx, ada())

			Convey("Then the account is still created", func() {
				So(err, ShouldBeNil)
				So(p.ResendCode(ctx, "ada"), ShouldNotBeNil)
			})
		})

		Convey("When resending for an unknown user", func() {
			So(p.ResendCode(ctx, "ghost"), ShouldEqual, ErrUserNotFound)
		})
	})
}

func TestLocal_LoginAndIntrospect(t *testing.T) {
	Convey("Given a confirmed user", t, func() {
		ctx := context.Background()
		codes := &capturedCodes{codes: map[string]string{}}
		clock := &fakeClock{now: time.Now()}
		p := newTestProvider(codes, clock)
		user, err := p.Register(ctx, ada())
		So(err, ShouldBeNil)
		So(p.Confirm(ctx, "ada", codes.last("ada")), ShouldBeNil)

		Convey("When logging in with a wrong password", func() {
			_, err := p.Login(ctx, "ada", "nope")
			So(err, ShouldEqual, ErrInvalidCredentials)
		})

		Convey("When logging in as an unknown user", func() {
			_, err := p.Login(ctx, "ghost", strongPassword)
			So(err, ShouldEqual, ErrInvalidCredentials)
		})

		Convey("When logging in correctly", func() {
			tokens, err := p.Login(ctx, "ada", strongPassword)

			Convey("Then tokens and attributes are issued", func() {
				So(err, ShouldBeNil)
				So(tokens.AccessToken, ShouldNotBeEmpty)
				So(tokens.RefreshToken, ShouldNotBeEmpty)
				So(tokens.IDToken, ShouldNotBeEmpty)
				So(tokens.ExpiresIn, ShouldEqual, 3600)
				So(tokens.UserID, ShouldEqual, user.UserID)
				So(tokens.Username, ShouldEqual, "ada")
				So(tokens.Name, ShouldEqual, "Ada Lovelace")
			})

			Convey("Then the access token introspects to the user", func() {
				attrs, err := p.Introspect(ctx, tokens.AccessToken)
				So(err, ShouldBeNil)
				So(attrs.Sub, ShouldEqual, user.UserID)
				So(attrs.PreferredUsername, ShouldEqual, "ada")
				So(attrs.Email, ShouldEqual, "ada@example.com")

				Convey("And a cached lookup returns the same attributes", func() {
					again, err := p.Introspect(ctx, tokens.AccessToken)
					So(err, ShouldBeNil)
					So(again, ShouldResemble, attrs)
				})
			})

			Convey("Then refresh and id tokens are not accepted as access tokens", func() {
				_, err := p.Introspect(ctx, tokens.RefreshToken)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
				_, err = p.Introspect(ctx, tokens.IDToken)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})

			Convey("Then the access token stops working after it expires", func() {
				_, err := p.Introspect(ctx, tokens.AccessToken)
				So(err, ShouldBeNil)
				clock.Advance(2 * time.Hour)
				_, err = p.Introspect(ctx, tokens.AccessToken)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When introspecting garbage", func() {
			_, err := p.Introspect(ctx, "not-a-jwt")
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			_, err = p.Introspect(ctx, "")
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("When a token is signed with another secret", func() {
			forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
				TokenUse:          tokenUseAccess,
				PreferredUsername: "ada",
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    issuer,
					Subject:   user.UserID,
					ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
				},
			}).SignedString([]byte("someone-else"))
			So(err, ShouldBeNil)

			_, err = p.Introspect(ctx, forged)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})
	})
}

func TestNewCode(t *testing.T) {
	Convey("Generated codes are six digits", t, func() {
		for i := 0; i < 50; i++ {
			code, err := newCode()
			So(err, ShouldBeNil)
			So(code, ShouldHaveLength, 6)
			for _, r := range code {
				So(r >= '0' && r <= '9', ShouldBeTrue)
			}
		}
	})
}
