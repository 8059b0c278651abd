package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/logger"
)

// Submission outcomes.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

type client struct {
	http    *http.Client
	baseURL string
	token   string
}

func newClient(cfg *Config) *client {
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
	}
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

// submitScores posts every score through a pool of workers.
func submitScores(ctx context.Context, cfg *Config, c *client, scores []float64, stats *Stats) {
	log := logger.Get().Named("submit")
	log.Info(ctx, "submitting scores", logger.Int("count", len(scores)), logger.Int("workers", cfg.Workers))

	var successful, rejected, failed, submitted atomic.Int64
	jobs := make(chan float64, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for score := range jobs {
				submitted.Add(1)
				switch submitOne(ctx, c, score) {
				case outcomeSuccess:
					successful.Add(1)
				case outcomeRejected:
					rejected.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "score rejected", logger.Float64("score", score))
					}
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range scores {
			select {
			case <-ctx.Done():
				return
			case jobs <- s:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Successful = int(successful.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = int(failed.Load())
	log.Info(ctx, "submission completed",
		logger.Int("successful", stats.Successful),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
	)
}

func submitOne(ctx context.Context, c *client, score float64) string {
	status, err := c.do(ctx, http.MethodPost, "/score", map[string]float64{"score": score}, nil)
	switch {
	case err != nil:
		return outcomeFailed
	case status == http.StatusCreated:
		return outcomeSuccess
	case status >= 400 && status < 500:
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

func fetchTop(ctx context.Context, c *client) ([]scoreEntry, error) {
	var out envelope[[]scoreEntry]
	status, err := c.do(ctx, http.MethodGet, "/leaderboard", nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("leaderboard returned %d: %s", status, out.Message)
	}
	return out.Data, nil
}

func checkHealth(ctx context.Context, c *client) error {
	status, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("health check returned %d", status)
	}
	return nil
}

// listener counts high-score pushes on one socket.
type listener struct {
	conn     *websocket.Conn
	received atomic.Int64
	done     chan struct{}
}

func listen(ctx context.Context, cfg *Config) (*listener, error) {
	url := "ws" + strings.TrimPrefix(strings.TrimRight(cfg.BaseURL, "/"), "http") + "/ws"
	if cfg.Token != "" {
		url += "?token=" + cfg.Token
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	l := &listener{conn: conn, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for {
			var msg pushMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == model.MessageTypeHighScore {
				l.received.Add(1)
			}
		}
	}()
	return l, nil
}

func (l *listener) close() int {
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = l.conn.Close()
	<-l.done
	return int(l.received.Load())
}
