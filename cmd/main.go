package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/openrpg/internal/adapters/http/api"
	"github.com/okian/openrpg/internal/adapters/http/swagger"
	app "github.com/okian/openrpg/internal/app"
	"github.com/okian/openrpg/internal/config"
	"github.com/okian/openrpg/pkg/logger"
	"github.com/okian/openrpg/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout is left unset so /ws
// streams are not cut off.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithDBPath(cfg.DBPath),
		app.WithSubscriberBuffer(cfg.SubscriberBuffer),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDiceSeed(cfg.DiceSeed),
		app.WithCharacteristicDice(cfg.CharacteristicDice),
		app.WithSkillDice(cfg.SkillDice),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, svc, cfg.MetricsInterval())
}

// newMux registers docs and API routes for svc.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// serve runs the HTTP server on ln and refreshes gauges every
// metricsInterval until ctx is done, then shuts the server down.
func serve(ctx context.Context, ln net.Listener, svc *app.Service, metricsInterval time.Duration) error {
	log := logger.Get()
	srv := &http.Server{
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// hijacked /ws connections end when the service closes its hub
		svc.Stop()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		// GetStats refreshes the subscriber and record gauges as it reads them.
		metrics.Refresh(gctx, metricsInterval, func() { svc.GetStats() })
		return nil
	})

	err := g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}
