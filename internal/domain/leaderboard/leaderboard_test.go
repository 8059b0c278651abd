package leaderboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/nebula/internal/adapters/repository"
	"github.com/okian/nebula/internal/domain/leaderboard"
	"github.com/okian/nebula/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// sliceSource returns entries in a fixed order so tie-breaking is observable.
type sliceSource struct {
	entries []model.ScoreEntry
	err     error
}

func (s *sliceSource) Scan(context.Context) ([]model.ScoreEntry, error) {
	return s.entries, s.err
}

type failingDeleteStore struct {
	*repository.MemoryScoreStore
	failID string
}

func (f *failingDeleteStore) Delete(ctx context.Context, id string) error {
	if id == f.failID {
		return errors.New("throttled")
	}
	return f.MemoryScoreStore.Delete(ctx, id)
}

func TestAggregator_Top(t *testing.T) {
	Convey("Given an aggregator", t, func() {
		ctx := context.Background()

		Convey("When the store is empty", func() {
			top, err := leaderboard.New(&sliceSource{}).Top(ctx)

			Convey("Then an empty, non-nil result is returned", func() {
				So(err, ShouldBeNil)
				So(top, ShouldNotBeNil)
				So(top, ShouldBeEmpty)
			})
		})

		Convey("When scores 10, 500 and 7 are stored", func() {
			src := &sliceSource{entries: []model.ScoreEntry{
				{ID: "a", UserID: "u1", Score: 10},
				{ID: "b", UserID: "u2", Score: 500},
				{ID: "c", UserID: "u3", Score: 7},
			}}
			top, err := leaderboard.New(src).Top(ctx)

			Convey("Then only the 500 entry is returned", func() {
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 1)
				So(top[0].ID, ShouldEqual, "b")
				So(top[0].Score, ShouldEqual, 500.0)
			})
		})

		Convey("When the top score is tied", func() {
			src := &sliceSource{entries: []model.ScoreEntry{
				{ID: "first", Score: 90},
				{ID: "second", Score: 90},
			}}
			top, _ := leaderboard.New(src).Top(ctx)

			Convey("Then the first in scan order wins", func() {
				So(top[0].ID, ShouldEqual, "first")
			})
		})

		Convey("When one user holds several entries", func() {
			src := &sliceSource{entries: []model.ScoreEntry{
				{ID: "a", UserID: "u1", Score: 40},
				{ID: "b", UserID: "u1", Score: 60},
			}}
			top, _ := leaderboard.New(src).Top(ctx)

			Convey("Then the single global best row is returned", func() {
				So(top, ShouldHaveLength, 1)
				So(top[0].ID, ShouldEqual, "b")
			})
		})

		Convey("When the scan fails", func() {
			_, err := leaderboard.New(&sliceSource{err: errors.New("table missing")}).Top(ctx)

			Convey("Then the error carries the underlying message", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "table missing")
			})
		})
	})
}

func TestClear(t *testing.T) {
	Convey("Given a populated store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryScoreStore()
		for _, id := range []string{"a", "b", "c"} {
			So(store.Put(ctx, model.ScoreEntry{ID: id, UserID: "u", Score: 1}), ShouldBeNil)
		}

		Convey("When clearing", func() {
			n, err := leaderboard.Clear(ctx, store)

			Convey("Then every row is deleted", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)
				left, _ := store.Scan(ctx)
				So(left, ShouldBeEmpty)
			})
		})

		Convey("When clearing an already empty store", func() {
			_, _ = leaderboard.Clear(ctx, store)
			n, err := leaderboard.Clear(ctx, store)

			Convey("Then nothing is deleted and no error is returned", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When one delete fails", func() {
			n, err := leaderboard.Clear(ctx, &failingDeleteStore{MemoryScoreStore: store, failID: "b"})

			Convey("Then the others are still deleted and the failure is reported", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "throttled")
				So(n, ShouldEqual, 2)
				left, _ := store.Scan(ctx)
				So(left, ShouldHaveLength, 1)
			})
		})
	})
}

func TestBest(t *testing.T) {
	Convey("Given no entries", t, func() {
		_, ok := leaderboard.Best(nil)
		So(ok, ShouldBeFalse)
	})
}
