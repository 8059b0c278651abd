package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/nebula/internal/loadtest"
	"github.com/okian/nebula/pkg/logger"
)

const (
	defaultNumScores  = 1000
	defaultMaxScore   = 2000
	defaultThreshold  = 1000
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 10 * time.Second
	defaultSettleTime = 2 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:3001", "Base URL of the service")
		token     = flag.String("token", os.Getenv("NEBULA_ACCESS_TOKEN"), "Bearer access token (default $NEBULA_ACCESS_TOKEN)")
		numScores = flag.Int("scores", defaultNumScores, "Number of scores to submit")
		maxScore  = flag.Float64("max", defaultMaxScore, "Upper bound of generated scores")
		threshold = flag.Float64("threshold", defaultThreshold, "High-score threshold the server uses")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		listen    = flag.Bool("listen", true, "Open a socket and count high-score pushes")
		settle    = flag.Duration("settle", defaultSettleTime, "Time to wait for pushes after submitting")
		format    = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every rejected submission")
	)
	flag.Parse()

	if err := logger.InitWithWriter(os.Stdout, *format); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	_, err := loadtest.Run(ctx, &loadtest.Config{
		BaseURL:    *baseURL,
		Token:      *token,
		NumScores:  *numScores,
		MaxScore:   *maxScore,
		Threshold:  *threshold,
		Workers:    *workers,
		Timeout:    *timeout,
		Listen:     *listen,
		SettleTime: *settle,
		Verbose:    *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
