package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func receive(ch <-chan model.Change) (model.Change, bool) {
	select {
	case c, ok := <-ch:
		return c, ok
	case <-time.After(time.Second):
		return model.Change{}, false
	}
}

func closedWithin(ch <-chan model.Change, d time.Duration) bool {
	deadline := time.After(d)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func TestHub_Fanout(t *testing.T) {
	Convey("Given a hub with two viewers of one player and one of another", t, func() {
		ctx := context.Background()
		h := NewHub()
		defer h.Close()

		sheet, err := h.Subscribe(ctx, "player-1")
		So(err, ShouldBeNil)
		admin, err := h.Subscribe(ctx, "player-1")
		So(err, ShouldBeNil)
		other, err := h.Subscribe(ctx, "player-2")
		So(err, ShouldBeNil)

		So(h.Subscribers("player-1"), ShouldEqual, 2)
		So(h.Total(), ShouldEqual, 3)

		Convey("When a currency change is published for player-1", func() {
			ch := model.NewChange("player-1", model.CurrencyKey("1"), 150.0)
			delivered := h.Publish(ctx, ch)

			Convey("Then both player-1 viewers receive it", func() {
				So(delivered, ShouldEqual, 2)
				got, ok := receive(sheet.Events())
				So(ok, ShouldBeTrue)
				So(got, ShouldResemble, ch)
				got, ok = receive(admin.Events())
				So(ok, ShouldBeTrue)
				So(got.ID, ShouldEqual, ch.ID)
			})

			Convey("Then the other player's viewer receives nothing", func() {
				select {
				case c := <-other.Events():
					So(c, ShouldBeZeroValue)
				case <-time.After(30 * time.Millisecond):
				}
			})
		})

		Convey("When a viewer unsubscribes", func() {
			sheet.Unsubscribe()
			sheet.Unsubscribe()

			Convey("Then its stream closes and it stops counting", func() {
				So(closedWithin(sheet.Events(), time.Second), ShouldBeTrue)
				So(h.Subscribers("player-1"), ShouldEqual, 1)
				So(h.Publish(ctx, model.NewChange("player-1", "spec.1", "elf")), ShouldEqual, 1)
			})
		})
	})
}

func TestHub_SlowSubscriber(t *testing.T) {
	Convey("Given a subscriber that never reads", t, func() {
		ctx := context.Background()
		h := NewHub(WithBuffer(2))
		defer h.Close()

		slow, err := h.Subscribe(ctx, "player-1")
		So(err, ShouldBeNil)
		fast, err := h.Subscribe(ctx, "player-1")
		So(err, ShouldBeNil)
		fastEvents := fast.Events()

		Convey("When more changes are published than the buffer holds", func() {
			received := make(chan int, 1)
			go func() {
				n := 0
				for n < 5 {
					if _, ok := receive(fastEvents); !ok {
						break
					}
					n++
				}
				received <- n
			}()

			done := make(chan struct{})
			go func() {
				for i := 0; i < 5; i++ {
					h.Publish(ctx, model.NewChange("player-1", model.CurrencyKey("1"), float64(i)))
					time.Sleep(5 * time.Millisecond)
				}
				close(done)
			}()

			Convey("Then the publisher never blocks and only the slow subscriber loses changes", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("publish blocked on a slow subscriber")
				}
				So(slow.Dropped(), ShouldBeGreaterThan, 0)
				So(<-received, ShouldEqual, 5)
				So(fast.Dropped(), ShouldEqual, 0)
			})
		})
	})
}

func TestHub_Lifecycle(t *testing.T) {
	Convey("Given a hub", t, func() {
		h := NewHub()

		Convey("When subscribing without a resource", func() {
			_, err := h.Subscribe(context.Background(), "")
			So(errors.Is(err, ErrEmptyResource), ShouldBeTrue)
		})

		Convey("When the subscriber's context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			s, err := h.Subscribe(ctx, "player-1")
			So(err, ShouldBeNil)
			cancel()

			Convey("Then the subscription is released", func() {
				So(closedWithin(s.Events(), time.Second), ShouldBeTrue)
				deadline := time.Now().Add(time.Second)
				for h.Subscribers("player-1") != 0 && time.Now().Before(deadline) {
					time.Sleep(time.Millisecond)
				}
				So(h.Subscribers("player-1"), ShouldEqual, 0)
			})
		})

		Convey("When the hub closes", func() {
			s, err := h.Subscribe(context.Background(), "player-1")
			So(err, ShouldBeNil)
			h.Close()
			h.Close()

			Convey("Then streams end and new subscriptions are refused", func() {
				So(closedWithin(s.Events(), time.Second), ShouldBeTrue)
				_, err := h.Subscribe(context.Background(), "player-1")
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
				So(h.Publish(context.Background(), model.NewChange("player-1", "spec.1", "x")), ShouldEqual, 0)
				So(h.Total(), ShouldEqual, 0)
			})
		})
	})
}
