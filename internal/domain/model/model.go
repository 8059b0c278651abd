// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// MessageTypeHighScore tags pushes sent when a score crosses the threshold.
const MessageTypeHighScore = "highScore"

// ScoreEntry is one submitted score. Entries are immutable once written and
// a user may own any number of them.
type ScoreEntry struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	UserName  string  `json:"user_name"`
	Score     float64 `json:"score"`
	Timestamp int64   `json:"timestamp"` // wall clock, unix milliseconds
}

// ConnectionRecord maps a live socket to its opaque identifier. UserID is
// empty for anonymous sockets.
type ConnectionRecord struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id,omitempty"`
	ConnectedAt  int64  `json:"connected_at"`
}

// HighScoreData is the body of a high-score push.
type HighScoreData struct {
	UserID    string  `json:"userId"`
	UserName  string  `json:"userName"`
	Score     float64 `json:"score"`
	Message   string  `json:"message"`
	Timestamp int64   `json:"timestamp"`
}

// HighScoreMessage is the wire shape pushed to sockets.
type HighScoreMessage struct {
	Type string        `json:"type"`
	Data HighScoreData `json:"data"`
}

// Notification is a detached fan-out task: deliver Payload on behalf of Recipient.
type Notification struct {
	Recipient string
	Payload   HighScoreMessage
}

// NewHighScoreNotification builds the notification for a persisted entry.
func NewHighScoreNotification(e ScoreEntry, now time.Time) Notification {
	return Notification{
		Recipient: e.UserID,
		Payload: HighScoreMessage{
			Type: MessageTypeHighScore,
			Data: HighScoreData{
				UserID:    e.UserID,
				UserName:  e.UserName,
				Score:     e.Score,
				Message:   fmt.Sprintf("🎉 Congratulations! You've achieved a high score of %s!", FormatScore(e.Score)),
				Timestamp: now.UnixMilli(),
			},
		},
	}
}

// FormatScore renders a score without a trailing ".0" for whole numbers.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
