package model

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewHighScoreNotification(t *testing.T) {
	Convey("Given a persisted entry", t, func() {
		entry := ScoreEntry{ID: "e1", UserID: "u1", UserName: "ada", Score: 1500, Timestamp: 10}
		now := time.UnixMilli(1_700_000_000_000)

		Convey("When building its notification", func() {
			n := NewHighScoreNotification(entry, now)

			Convey("Then it is addressed to the scorer", func() {
				So(n.Recipient, ShouldEqual, "u1")
				So(n.Payload.Type, ShouldEqual, MessageTypeHighScore)
				So(n.Payload.Data.Score, ShouldEqual, 1500.0)
				So(n.Payload.Data.Timestamp, ShouldEqual, int64(1_700_000_000_000))
				So(n.Payload.Data.Message, ShouldEqual, "🎉 Congratulations! You've achieved a high score of 1500!")
			})

			Convey("And the payload uses camelCase keys", func() {
				raw, err := json.Marshal(n.Payload)
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, `"type":"highScore"`)
				So(string(raw), ShouldContainSubstring, `"userId":"u1"`)
				So(string(raw), ShouldContainSubstring, `"userName":"ada"`)
			})
		})
	})
}

func TestFormatScore(t *testing.T) {
	Convey("Given whole and fractional scores", t, func() {
		So(FormatScore(1001), ShouldEqual, "1001")
		So(FormatScore(1200.5), ShouldEqual, "1200.5")
		So(FormatScore(2e6), ShouldEqual, "2000000")
	})
}
