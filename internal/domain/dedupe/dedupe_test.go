package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/okian/openrpg/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new deduper", t, func() {
		ctx := context.Background()

		Convey("When created with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it is empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a change ID is recorded", func() {
			d := dedupe.NewInMemoryDeduper()
			id := uuid.NewString()
			first := d.SeenAndRecord(ctx, id)

			Convey("Then the first sighting is new", func() {
				So(first, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then the second sighting is a duplicate", func() {
				So(d.SeenAndRecord(ctx, id), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And it is unrecorded", func() {
				d.Unrecord(ctx, id)

				Convey("Then it can be applied again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
				})
			})

			Convey("And an unknown ID is unrecorded", func() {
				d.Unrecord(ctx, "missing")

				Convey("Then nothing changes", func() {
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When the window is full", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"c1", "c2", "c3"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}
			So(d.SeenAndRecord(ctx, "c4"), ShouldBeFalse)

			Convey("Then the oldest ID is forgotten and the rest are kept", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "c4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c2"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 10000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("change-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 10000)
				So(d.SeenAndRecord(ctx, "change-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given the same change delivered on many goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper()
		id := uuid.NewString()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), id) {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one goroutine applies it", func() {
			So(applied, ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
