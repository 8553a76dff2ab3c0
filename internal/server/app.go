// Package server initializes and runs the relay application: storage,
// the coordinator session, the three scheduler loops and the HTTP API,
// with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/avoronov/demorelay/internal/cachex"
	"github.com/avoronov/demorelay/internal/coordinator"
	"github.com/avoronov/demorelay/internal/discovery"
	"github.com/avoronov/demorelay/internal/filex"
	"github.com/avoronov/demorelay/internal/logging"
	"github.com/avoronov/demorelay/internal/pipeline"
	"github.com/avoronov/demorelay/internal/resolver"
	"github.com/avoronov/demorelay/internal/scheduler"
	"github.com/avoronov/demorelay/internal/server/api"
	"github.com/avoronov/demorelay/internal/server/config"
	"github.com/avoronov/demorelay/internal/server/repositories/repomanager"
	"github.com/avoronov/demorelay/internal/steamweb"
	"github.com/avoronov/demorelay/internal/tracing"
	"github.com/avoronov/demorelay/internal/upload"
)

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config) *App {
	l := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return &App{config: c, logger: logging.NewSlogLogger(l)}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) newUploader(ctx context.Context) (upload.Uploader, error) {
	switch app.config.Uploader {
	case config.UploaderTelegram:
		var opts []upload.TelegramOption
		if app.config.TelegramAPIBase != "" {
			opts = append(opts, upload.WithTelegramBaseURL(app.config.TelegramAPIBase))
		}
		return upload.NewTelegramUploader(app.config.TelegramBotToken, app.config.TelegramChatID, opts...), nil
	case config.UploaderS3:
		return upload.NewS3Uploader(ctx, upload.S3Config{
			Region:       app.config.S3Region,
			BaseEndpoint: app.config.S3BaseEndpoint,
			AccessKey:    app.config.S3AccessKey,
			SecretKey:    app.config.S3SecretKey,
			Bucket:       app.config.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown uploader kind: %q", app.config.Uploader)
	}
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	shutdownTracer, err := tracing.Init(ctx, "demorelay", app.config.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing init error: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "tracer shutdown error", "error", err)
		}
	}()

	if err := filex.EnsureDir(app.config.ScratchDir); err != nil {
		return fmt.Errorf("scratch dir error: %w", err)
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	matchRepo := rm.Matches(db)
	userRepo := rm.Users(db)

	steamClient := steamweb.New(app.config.SteamAPIKey)
	session := coordinator.NewBridgeSession(app.config.BridgeAddr, app.config.EventBufferSize, app.logger)

	uploader, err := app.newUploader(ctx)
	if err != nil {
		return err
	}

	var cache api.Cache
	if app.config.RedisAddr != "" {
		hc, err := cachex.NewHistoryCache(app.config.RedisAddr, app.config.RedisPassword,
			app.config.RedisDB, app.config.HistoryCacheTTL)
		if err != nil {
			return fmt.Errorf("redis init error: %w", err)
		}
		defer hc.Close()
		cache = hc
	}

	walker := discovery.NewWalker(userRepo, matchRepo, steamClient, app.config.WalkerMaxSteps, app.logger)
	res := resolver.NewResolver(matchRepo, session, app.logger)
	pipe := pipeline.NewPipeline(matchRepo, uploader, app.config.ScratchDir, app.logger)

	sched := scheduler.New(app.logger,
		scheduler.Loop{Name: "discovery", Interval: app.config.DiscoveryInterval, Run: walker.Run},
		scheduler.Loop{Name: "resolution", Interval: app.config.ResolutionInterval, Gate: session.Ready, Run: res.Tick},
		scheduler.Loop{Name: "pipeline", Interval: app.config.PipelineInterval, Run: pipe.Tick},
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := session.Run(ctx); err != nil {
			app.logger.Error(ctx, "coordinator session stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.Run(ctx)
	}()

	wg.Add(3)
	sched.Start(ctx, wg.Done)

	apiServer := api.NewServer(matchRepo, userRepo, steamClient, cache, app.logger)
	httpServer := &http.Server{Addr: app.config.HTTPAddr, Handler: apiServer.Router()}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.logger.Info(ctx, "http server listening", "addr", app.config.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http server shutdown error", "error", err)
		}
	}()

	wg.Wait()
	return nil
}
