package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/nebula/internal/config"
	"github.com/okian/nebula/pkg/logger"
)

func testConfig(driver string, dir string) *config.Config {
	cfg := config.New(context.Background())
	cfg.StoreDriver = driver
	cfg.SQLitePath = filepath.Join(dir, "nebula.db")
	cfg.NotifyWorkers = 2
	cfg.JWTSecret = "test-secret"
	return cfg
}

func TestBuild(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		convey.Convey("Given an application built with the "+driver+" store", t, func() {
			ctx := context.Background()
			app, err := build(ctx, testConfig(driver, t.TempDir()), logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer func() {
				closeCtx, cancel := context.WithTimeout(ctx, time.Second)
				defer cancel()
				app.close(closeCtx)
			}()

			serve := func(method, path, body string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(method, path, strings.NewReader(body))
				rec := httptest.NewRecorder()
				app.handler.ServeHTTP(rec, req)
				return rec
			}

			convey.Convey("Then health, docs and metrics respond", func() {
				convey.So(serve(http.MethodGet, "/health", "").Code, convey.ShouldEqual, http.StatusOK)
				convey.So(serve(http.MethodGet, "/api-docs", "").Code, convey.ShouldEqual, http.StatusOK)
				convey.So(serve(http.MethodGet, "/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
				convey.So(serve(http.MethodGet, "/metrics", "").Code, convey.ShouldEqual, http.StatusOK)
			})

			convey.Convey("Then the empty leaderboard is served from the store", func() {
				rec := serve(http.MethodGet, "/leaderboard", "")
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Body.String(), convey.ShouldContainSubstring, "No scores found")
			})

			convey.Convey("Then score submission requires a token", func() {
				rec := serve(http.MethodPost, "/score", `{"score":1500}`)
				convey.So(rec.Code, convey.ShouldEqual, http.StatusUnauthorized)
			})

			convey.Convey("Then the service is running", func() {
				convey.So(app.service.GetStats()["started"], convey.ShouldEqual, true)
			})
		})
	}
}

func TestBuildRejectsBadStore(t *testing.T) {
	convey.Convey("Given a sqlite path in a missing directory", t, func() {
		cfg := testConfig(config.DriverSQLite, filepath.Join(t.TempDir(), "missing", "deeper"))

		convey.Convey("Then build fails", func() {
			_, err := build(context.Background(), cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the current process", t, func() {
		ctx := context.Background()
		proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then updating metrics does not panic, with or without it", func() {
			convey.So(func() { updateSystemMetrics(ctx, proc) }, convey.ShouldNotPanic)
			convey.So(func() { updateSystemMetrics(ctx, nil) }, convey.ShouldNotPanic)
		})
	})
}
