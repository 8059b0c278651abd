package loadtest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/nebula/internal/adapters/http/api"
	"github.com/okian/nebula/internal/adapters/push"
	"github.com/okian/nebula/internal/adapters/repository"
	service "github.com/okian/nebula/internal/app"
	"github.com/okian/nebula/internal/domain/identity"
	"github.com/okian/nebula/internal/domain/notify"
	"github.com/okian/nebula/pkg/logger"
)

const testToken = "load-token"

type staticIdentity struct{}

func (staticIdentity) Register(context.Context, identity.Registration) (identity.RegisteredUser, error) {
	return identity.RegisteredUser{}, nil
}
func (staticIdentity) Confirm(context.Context, string, string) error { return nil }
func (staticIdentity) ResendCode(context.Context, string) error      { return nil }
func (staticIdentity) Login(context.Context, string, string) (identity.Tokens, error) {
	return identity.Tokens{}, nil
}
func (staticIdentity) Introspect(_ context.Context, token string) (identity.Attributes, error) {
	if token != testToken {
		return identity.Attributes{}, identity.ErrInvalidToken
	}
	return identity.Attributes{Sub: "load-user", PreferredUsername: "loader"}, nil
}

func startServer(threshold float64) (*httptest.Server, func()) {
	nop := logger.Nop()
	conns := repository.NewMemoryConnectionStore()
	hub := push.NewHub(conns, push.WithLogger(nop), push.WithAuthenticator(staticIdentity{}))
	svc := service.New(
		service.WithLogger(nop),
		service.WithNotifier(notify.New(conns, hub, notify.WithLogger(nop))),
		service.WithHighScoreThreshold(threshold),
		service.WithWorkerCount(2),
	)
	_ = svc.Start(context.Background())

	srv := api.NewServer(svc, staticIdentity{}, api.WithLogger(nop), api.WithPushHandler(hub))
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(srv.Handler(mux))

	return ts, func() {
		hub.Close()
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	}
}

func TestGenerateScores(t *testing.T) {
	convey.Convey("Given generated scores", t, func() {
		scores := generateScores(500, 2000)

		convey.Convey("Then every score is positive and within range", func() {
			convey.So(scores, convey.ShouldHaveLength, 500)
			for _, s := range scores {
				convey.So(s, convey.ShouldBeGreaterThan, 0.0)
				convey.So(s, convey.ShouldBeLessThanOrEqualTo, 2000.0)
			}
		})

		convey.Convey("Then the helpers agree with the data", func() {
			convey.So(countAbove([]float64{1, 1000, 1000.01, 1500}, 1000), convey.ShouldEqual, 2)
			convey.So(maxOf([]float64{3, 9.5, 2}), convey.ShouldEqual, 9.5)
		})
	})
}

func TestVerify(t *testing.T) {
	convey.Convey("Given a finished run", t, func() {
		scores := []float64{10, 50, 30}
		stats := &Stats{Successful: 3}

		convey.Convey("Then a top at or above the best submission passes", func() {
			convey.So(verify(scores, []scoreEntry{{Score: 50}}, stats), convey.ShouldBeNil)
			convey.So(verify(scores, []scoreEntry{{Score: 70}}, stats), convey.ShouldBeNil)
		})

		convey.Convey("Then a lower top fails", func() {
			convey.So(errors.Is(verify(scores, []scoreEntry{{Score: 30}}, stats), ErrTopTooLow), convey.ShouldBeTrue)
		})

		convey.Convey("Then an empty board fails", func() {
			convey.So(verify(scores, nil, stats), convey.ShouldEqual, ErrEmptyLeaderboard)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a running leaderboard server", t, func() {
		_ = logger.InitWithWriter(io.Discard, "text")
		ts, stop := startServer(50)
		defer stop()

		cfg := &Config{
			BaseURL:    ts.URL,
			Token:      testToken,
			NumScores:  40,
			MaxScore:   100,
			Threshold:  50,
			Workers:    4,
			Timeout:    5 * time.Second,
			Listen:     true,
			SettleTime: 300 * time.Millisecond,
		}

		convey.Convey("When a load run completes", func() {
			stats, err := Run(context.Background(), cfg)

			convey.Convey("Then every score lands and the top matches the best", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.Successful, convey.ShouldEqual, 40)
				convey.So(stats.Failed, convey.ShouldEqual, 0)
				convey.So(stats.TopScore, convey.ShouldBeGreaterThan, 0.0)
				convey.So(stats.PushesReceived, convey.ShouldBeLessThanOrEqualTo, stats.HighScores)
				convey.So(stats.PushesReceived, convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the token is wrong", func() {
			cfg.Token = "bogus"
			cfg.Listen = false
			stats, err := Run(context.Background(), cfg)

			convey.Convey("Then every submission is rejected", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.Rejected, convey.ShouldEqual, 40)
				convey.So(stats.TopScore, convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When the config is unusable", func() {
			cfg.Workers = 0
			_, err := Run(context.Background(), cfg)
			convey.So(errors.Is(err, ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
