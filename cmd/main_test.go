package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/openrpg/internal/adapters/repository"
	app "github.com/okian/openrpg/internal/app"
	"github.com/okian/openrpg/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestServe(t *testing.T) {
	convey.Convey("Given a started service and a listener", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		st, err := repository.Open(ctx, ":memory:")
		convey.So(err, convey.ShouldBeNil)
		defer st.Close()

		svc := app.New(app.WithStore(st))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)
		base := "http://" + ln.Addr().String()

		done := make(chan error, 1)
		go func() { done <- serve(ctx, ln, svc, 10*time.Millisecond) }()

		convey.Convey("Then the API, docs and metrics are served", func() {
			resp, err := http.Post(base+"/sheet/field", "application/json",
				strings.NewReader(`{"resource_id":"p1","field":"currency.1","value":5}`))
			convey.So(err, convey.ShouldBeNil)
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			_ = resp.Body.Close()

			resp, err = http.Get(base + "/stats")
			convey.So(err, convey.ShouldBeNil)
			var stats map[string]any
			convey.So(json.NewDecoder(resp.Body).Decode(&stats), convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(stats["stored_fields"], convey.ShouldEqual, 1.0)

			for _, path := range []string{"/openapi.yaml", "/api-docs", "/healthz"} {
				resp, err = http.Get(base + path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				_ = resp.Body.Close()
			}

			convey.Convey("And cancelling the context stops the server", func() {
				cancel()
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					t.Fatal("server did not stop")
				}
				convey.So(svc.GetStats()["started"], convey.ShouldEqual, false)
			})
		})
	})
}
