package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/openrpg/internal/adapters/http/api"
	"github.com/okian/openrpg/internal/adapters/http/client"
	"github.com/okian/openrpg/internal/adapters/repository"
	service "github.com/okian/openrpg/internal/app"
	"github.com/okian/openrpg/internal/domain/commit"
	"github.com/okian/openrpg/internal/domain/model"
	"github.com/okian/openrpg/internal/domain/sheet"
	"github.com/okian/openrpg/internal/domain/types"
	"github.com/okian/openrpg/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startServer(t *testing.T) (*service.Service, *httptest.Server) {
	t.Helper()
	ctx := context.Background()
	st, err := repository.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := service.New(service.WithStore(st), service.WithDiceSeed(3))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		svc.Stop()
		srv.Close()
		_ = st.Close()
	})
	return svc, srv
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

func TestClient_New(t *testing.T) {
	Convey("New rejects unusable base URLs", t, func() {
		_, err := client.New("ftp://example.com")
		So(err, ShouldNotBeNil)
		_, err = client.New("http://localhost:9080/")
		So(err, ShouldBeNil)
	})
}

func TestClient_Requests(t *testing.T) {
	Convey("Given a client for a running server", t, func() {
		ctx := context.Background()
		_, srv := startServer(t)
		c, err := client.New(srv.URL, client.WithTimeout(2*time.Second))
		So(err, ShouldBeNil)

		Convey("Write returns the stored value", func() {
			v, err := c.Write(ctx, "p1", model.CharacteristicKey("str", model.AttrModifier), "+2")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 2.0)

			snap, err := c.Snapshot(ctx, "p1")
			So(err, ShouldBeNil)
			So(snap["characteristic.str.modifier"], ShouldEqual, 2.0)
		})

		Convey("A rejected write is a StatusError", func() {
			_, err := c.Write(ctx, "p1", "bogus", 1)
			So(errors.Is(err, client.ErrUnexpectedStatus), ShouldBeTrue)

			var se *client.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Status, ShouldEqual, http.StatusBadRequest)
			So(se.Code, ShouldEqual, "invalid_request")
		})

		Convey("Rolls go through the server", func() {
			roll, err := c.Roll(ctx, types.DiceRequest{Faces: 100, Count: 3, Reference: 50})
			So(err, ShouldBeNil)
			So(roll.Outcomes, ShouldHaveLength, 3)

			roll, err = c.RollCharacteristic(ctx, types.CharacteristicRollRequest{Value: 10, Standalone: true})
			So(err, ShouldBeNil)
			So(roll.Outcomes, ShouldHaveLength, 1)

			out, err := c.RollSkills(ctx, types.SkillRollRequest{Skills: []sheet.Skill{{ID: "s", Name: "Swim", Value: 30}}})
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 1)

			_, err = c.Roll(ctx, types.DiceRequest{Faces: 0})
			So(errors.Is(err, client.ErrUnexpectedStatus), ShouldBeTrue)
		})
	})
}

func TestClient_Subscribe(t *testing.T) {
	Convey("Given a subscription through the client", t, func() {
		ctx := context.Background()
		svc, srv := startServer(t)
		c, err := client.New(srv.URL)
		So(err, ShouldBeNil)

		stream, err := c.Subscribe(ctx, "p1")
		So(err, ShouldBeNil)

		Convey("Committed changes arrive in order", func() {
			_, err := svc.WriteField(ctx, "p1", "currency.1", 10)
			So(err, ShouldBeNil)
			_, err = svc.WriteField(ctx, "p1", "currency.1", 20)
			So(err, ShouldBeNil)

			var got []any
			for len(got) < 2 {
				select {
				case ch := <-stream.Events():
					got = append(got, ch.Value)
				case <-time.After(2 * time.Second):
					t.Fatal("timed out waiting for changes")
				}
			}
			So(got, ShouldResemble, []any{10.0, 20.0})
			stream.Unsubscribe()
		})

		Convey("Unsubscribe closes the channel", func() {
			stream.Unsubscribe()
			stream.Unsubscribe()
			So(eventually(func() bool {
				select {
				case _, ok := <-stream.Events():
					return !ok
				default:
					return false
				}
			}), ShouldBeTrue)
		})

		Convey("A server shutdown closes the channel", func() {
			svc.Stop()
			So(eventually(func() bool {
				select {
				case _, ok := <-stream.Events():
					return !ok
				default:
					return false
				}
			}), ShouldBeTrue)
		})
	})
}

func TestClient_RemoteSheets(t *testing.T) {
	Convey("Given two remote sheets following the same player", t, func() {
		ctx := context.Background()
		_, srv := startServer(t)
		c, err := client.New(srv.URL)
		So(err, ShouldBeNil)

		d := commit.NewDispatcher(c)
		defer d.Close(ctx)

		a, b := sheet.New("p1"), sheet.New("p1")
		defer a.Close()
		defer b.Close()

		goldA, err := sheet.BindField(a, model.CurrencyKey("3"), 100.0, commit.For[float64](d))
		So(err, ShouldBeNil)
		goldB, err := sheet.BindField(b, model.CurrencyKey("3"), 100.0, commit.For[float64](d))
		So(err, ShouldBeNil)
		So(a.Follow(ctx, c), ShouldBeNil)
		So(b.Follow(ctx, c), ShouldBeNil)

		Convey("A commit on A is seen by B", func() {
			So(goldA.Set(ctx, 150), ShouldBeTrue)
			So(eventually(func() bool { return goldB.Confirmed() == 150.0 }), ShouldBeTrue)
			So(eventually(func() bool { return !goldA.IsPending() }), ShouldBeTrue)
			So(goldA.Value(), ShouldEqual, 150.0)
		})
	})
}

func TestClient_WriteRetry(t *testing.T) {
	Convey("Given a server whose first reply to a field write is lost", t, func() {
		ctx := context.Background()
		st, err := repository.Open(ctx, ":memory:")
		So(err, ShouldBeNil)
		svc := service.New(service.WithStore(st))
		So(svc.Start(ctx), ShouldBeNil)
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)

		var mu sync.Mutex
		var ids []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/sheet/field" {
				mux.ServeHTTP(w, r)
				return
			}
			raw, _ := io.ReadAll(r.Body)
			var fw types.FieldWrite
			_ = json.Unmarshal(raw, &fw)
			mu.Lock()
			ids = append(ids, fw.ChangeID)
			first := len(ids) == 1
			mu.Unlock()

			r.Body = io.NopCloser(bytes.NewReader(raw))
			if !first {
				mux.ServeHTTP(w, r)
				return
			}
			// apply the write, then drop the connection before replying
			mux.ServeHTTP(httptest.NewRecorder(), r)
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				_ = conn.Close()
			}
		}))
		defer func() {
			svc.Stop()
			srv.Close()
			_ = st.Close()
		}()

		sub, err := svc.Subscribe(ctx, "player-1")
		So(err, ShouldBeNil)
		defer sub.Unsubscribe()

		c, err := client.New(srv.URL, client.WithRetries(2, time.Millisecond))
		So(err, ShouldBeNil)
		stored, err := c.Write(ctx, "player-1", model.CurrencyKey("1"), 40)

		Convey("Then the write is resent under the same change ID and applied once", func() {
			So(err, ShouldBeNil)
			So(stored, ShouldEqual, 40.0)

			mu.Lock()
			sent := append([]string(nil), ids...)
			mu.Unlock()
			So(sent, ShouldHaveLength, 2)
			So(sent[0], ShouldNotBeEmpty)
			So(sent[1], ShouldEqual, sent[0])

			select {
			case ch := <-sub.Events():
				So(ch.ID, ShouldEqual, sent[0])
			case <-time.After(time.Second):
				t.Fatal("change not published")
			}
			select {
			case ch := <-sub.Events():
				t.Fatalf("write published twice: %v", ch)
			case <-time.After(50 * time.Millisecond):
			}
		})
	})

	Convey("Given a server that refuses a write as invalid", t, func() {
		var calls int
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			calls++
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(types.Error{Code: "bad_request", Message: "no"})
		}))
		defer srv.Close()

		c, err := client.New(srv.URL, client.WithRetries(3, time.Millisecond))
		So(err, ShouldBeNil)
		_, err = c.Write(context.Background(), "player-1", model.CurrencyKey("1"), 1)

		Convey("Then it is not resent", func() {
			So(errors.Is(err, client.ErrUnexpectedStatus), ShouldBeTrue)
			mu.Lock()
			defer mu.Unlock()
			So(calls, ShouldEqual, 1)
		})
	})
}
