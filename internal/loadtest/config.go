// Package loadtest drives a running leaderboard server with concurrent score
// submissions and checks the leaderboard and push channel afterwards.
package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Token      string        // Bearer access token used for submissions
	NumScores  int           // Number of scores to submit
	MaxScore   float64       // Upper bound of generated scores
	Threshold  float64       // High-score threshold the server is running with
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Listen     bool          // Open a socket and count high-score pushes
	SettleTime time.Duration // How long to wait for pushes after submitting
	Verbose    bool          // Log every failed request
}

// Stats holds run statistics.
type Stats struct {
	Generated      int
	Submitted      int
	Successful     int
	Rejected       int
	Failed         int
	HighScores     int
	PushesReceived int
	TopScore       float64
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// envelope mirrors the API response body.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type scoreEntry struct {
	ID       string  `json:"id"`
	UserID   string  `json:"user_id"`
	UserName string  `json:"user_name"`
	Score    float64 `json:"score"`
}

type pushMessage struct {
	Type string `json:"type"`
	Data struct {
		Score float64 `json:"score"`
	} `json:"data"`
}
