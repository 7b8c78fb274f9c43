package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	appservices "tomato-demo/internal/application/services"
	"tomato-demo/internal/application/usecases"
	"tomato-demo/internal/config"
	domainrepos "tomato-demo/internal/domain/repositories"
	domainservices "tomato-demo/internal/domain/services"
	"tomato-demo/internal/domain/valueobjects"
	"tomato-demo/internal/infrastructure/api"
	"tomato-demo/internal/infrastructure/external"
	"tomato-demo/internal/infrastructure/repositories"
	infraservices "tomato-demo/internal/infrastructure/services"
	"tomato-demo/internal/logger"
)

type app struct {
	handler   http.Handler
	detection *usecases.DetectionUseCase
	pool      domainrepos.HTTPClientPool
}

func newApp(env config.Env) (*app, error) {
	// インフラ層を初期化
	pool := infraservices.NewHTTPClientPool(infraservices.HTTPClientConfig{Timeout: env.PredictTimeout})
	predictionClient, err := external.NewPredictionClient(env.PredictBaseURL, pool)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("backend", predictionClient.BaseURL()).Msg("prediction client ready")
	previewGenerator := external.NewPreviewGenerator(env.PreviewMaxEdge)
	chartRenderer := infraservices.NewChartRenderer(infraservices.DefaultChartWidth, infraservices.DefaultChartHeight)
	sessionRepository := repositories.NewMemorySessionRepository[*domainservices.ViewController]()

	// アプリケーション層を初期化
	detectionUseCase := usecases.NewDetectionUseCase(
		sessionRepository,
		predictionClient,
		previewGenerator,
		predictionClient,
		chartRenderer,
		domainservices.WithMediaPolicy(valueobjects.DefaultMediaPolicy()),
	)
	uploadService := appservices.NewUploadService(valueobjects.MaxUploadBytes)

	// API層を初期化
	handler := api.NewDetectionHandler(detectionUseCase, uploadService, env.SessionIdle)

	return &app{
		handler:   api.NewRouter(handler),
		detection: detectionUseCase,
		pool:      pool,
	}, nil
}

// sweepSessions evicts idle sessions until ctx is done.
func (a *app) sweepSessions(ctx context.Context, idle time.Duration) {
	interval := idle / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.detection.SweepIdle(ctx, idle)
		}
	}
}

func main() {
	env := config.Instance()
	logger.Init(env.AppName, env.AppLogLevel)

	a, err := newApp(env)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise application")
	}
	defer a.pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.sweepSessions(ctx, env.SessionIdle)

	server := &http.Server{
		Addr:              env.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", env.Addr()).
		Str("backend", env.PredictBaseURL).
		Dur("timeout", env.PredictTimeout).
		Msg("Starting server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
	log.Info().Msg("server stopped")
}
