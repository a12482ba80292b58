package commit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/openrpg/internal/domain/commit"
	"github.com/okian/openrpg/internal/domain/field"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// gatedWriter blocks every write until release is closed.
type gatedWriter struct {
	mu      sync.Mutex
	writes  []any
	release chan struct{}
	reply   func(value any) (any, error)
}

func newGatedWriter(reply func(any) (any, error)) *gatedWriter {
	return &gatedWriter{release: make(chan struct{}), reply: reply}
}

func (w *gatedWriter) Write(ctx context.Context, _, _ string, value any) (any, error) {
	w.mu.Lock()
	w.writes = append(w.writes, value)
	w.mu.Unlock()
	select {
	case <-w.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return w.reply(value)
}

func (w *gatedWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

var key = field.Key{ResourceID: "player-1", Field: model.CurrencyKey("1")}

func TestDispatcher_Dispatch(t *testing.T) {
	Convey("Given a dispatcher over a slow writer", t, func() {
		ctx := context.Background()
		w := newGatedWriter(func(v any) (any, error) { return v, nil })
		d := commit.NewDispatcher(w)

		results := make(chan any, 2)
		err := d.Dispatch(ctx, key, 150.0, func(_ context.Context, stored any, err error) {
			if err != nil {
				results <- err
				return
			}
			results <- stored
		})
		So(err, ShouldBeNil)

		Convey("Then the call returns before the write completes", func() {
			So(d.InFlight(key), ShouldBeTrue)
			close(w.release)
			So(<-results, ShouldEqual, 150.0)
			So(waitFor(func() bool { return !d.InFlight(key) }), ShouldBeTrue)
		})

		Convey("Then a second write for the same key is refused", func() {
			err := d.Dispatch(ctx, key, 160.0, func(context.Context, any, error) {})
			So(errors.Is(err, commit.ErrInFlight), ShouldBeTrue)
			close(w.release)
			<-results
		})

		Convey("Then writes for other keys proceed", func() {
			other := field.Key{ResourceID: "player-1", Field: model.CurrencyKey("2")}
			err := d.Dispatch(ctx, other, 1.0, func(_ context.Context, stored any, _ error) { results <- stored })
			So(err, ShouldBeNil)
			close(w.release)
			<-results
			<-results
			So(w.count(), ShouldEqual, 2)
		})

		Convey("When the caller context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			other := field.Key{ResourceID: "player-1", Field: model.CurrencyKey("3")}
			So(d.Dispatch(cctx, other, 5.0, func(_ context.Context, stored any, err error) {
				if err != nil {
					results <- err
					return
				}
				results <- stored
			}), ShouldBeNil)
			cancel()
			close(w.release)

			Convey("Then the write still completes", func() {
				got := []any{<-results, <-results}
				So(got, ShouldContain, 5.0)
			})
		})
	})
}

func TestDispatcher_Timeout(t *testing.T) {
	Convey("Given a dispatcher with a short timeout", t, func() {
		w := newGatedWriter(func(v any) (any, error) { return v, nil })
		d := commit.NewDispatcher(w, commit.WithTimeout(20*time.Millisecond))

		Convey("When the writer never answers", func() {
			errs := make(chan error, 1)
			So(d.Dispatch(context.Background(), key, 1.0, func(_ context.Context, _ any, err error) { errs <- err }), ShouldBeNil)

			Convey("Then the write fails with a deadline error", func() {
				So(errors.Is(<-errs, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}

func TestDispatcher_Close(t *testing.T) {
	Convey("Given a dispatcher with an outstanding write", t, func() {
		w := newGatedWriter(func(v any) (any, error) { return v, nil })
		d := commit.NewDispatcher(w)
		So(d.Dispatch(context.Background(), key, 1.0, func(context.Context, any, error) {}), ShouldBeNil)

		Convey("When closing with an expired context", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			err := d.Close(ctx)

			Convey("Then close reports the timeout and new writes are refused", func() {
				So(err, ShouldNotBeNil)
				err := d.Dispatch(context.Background(), key, 2.0, func(context.Context, any, error) {})
				So(errors.Is(err, commit.ErrClosed), ShouldBeTrue)
				close(w.release)
			})
		})

		Convey("When the write finishes", func() {
			close(w.release)

			Convey("Then close returns cleanly", func() {
				So(d.Close(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestFor_FieldRoundTrip(t *testing.T) {
	Convey("Given a currency field committing through a dispatcher", t, func() {
		ctx := context.Background()

		Convey("When the server normalizes the value", func() {
			d := commit.NewDispatcher(commit.WriterFunc(func(context.Context, string, string, any) (any, error) {
				return 149, nil
			}))
			f := field.New(key, 100.0, commit.For[float64](d))
			f.Edit(149.4)
			So(f.Commit(ctx), ShouldBeTrue)

			Convey("Then the field adopts the stored value", func() {
				So(waitFor(func() bool { return !f.IsPending() }), ShouldBeTrue)
				So(f.Confirmed(), ShouldEqual, 149.0)
				So(f.Value(), ShouldEqual, 149.0)
			})
		})

		Convey("When the server fails", func() {
			reported := make(chan error, 1)
			d := commit.NewDispatcher(commit.WriterFunc(func(context.Context, string, string, any) (any, error) {
				return nil, errors.New("status 500")
			}))
			f := field.New(key, 100.0, commit.For[float64](d),
				field.WithReporter(field.ReporterFunc(func(_ context.Context, _ string, err error) { reported <- err })))
			f.Edit(150)
			f.Commit(ctx)

			Convey("Then the field reverts and reports a rejected commit", func() {
				err := <-reported
				So(errors.Is(err, field.ErrCommitRejected), ShouldBeTrue)
				So(f.Value(), ShouldEqual, 100.0)
				So(f.IsPending(), ShouldBeFalse)
			})
		})

		Convey("When the server answers with an unconvertible value", func() {
			d := commit.NewDispatcher(commit.WriterFunc(func(context.Context, string, string, any) (any, error) {
				return map[string]any{"ok": true}, nil
			}))
			f := field.New(key, 100.0, commit.For[float64](d))
			f.Edit(120)
			f.Commit(ctx)

			Convey("Then the committed value is kept", func() {
				So(waitFor(func() bool { return !f.IsPending() }), ShouldBeTrue)
				So(f.Confirmed(), ShouldEqual, 120.0)
			})
		})

		Convey("When the dispatcher is closed", func() {
			d := commit.NewDispatcher(commit.WriterFunc(func(_ context.Context, _, _ string, v any) (any, error) { return v, nil }))
			So(d.Close(ctx), ShouldBeNil)
			f := field.New(key, 100.0, commit.For[float64](d))
			f.Edit(120)
			f.Commit(ctx)

			Convey("Then the commit is rejected synchronously", func() {
				So(f.IsPending(), ShouldBeFalse)
				So(f.Value(), ShouldEqual, 100.0)
			})
		})
	})
}
