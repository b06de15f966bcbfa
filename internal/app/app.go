package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/streetlift/meet-engine/internal/config"
	"github.com/streetlift/meet-engine/internal/domain/live"
	"github.com/streetlift/meet-engine/internal/infrastructure/repository/sqlite"
	"github.com/streetlift/meet-engine/internal/interfaces/httpapi"
	"github.com/streetlift/meet-engine/internal/interfaces/realtime"
	idgen "github.com/streetlift/meet-engine/internal/platform/id"
	"github.com/streetlift/meet-engine/internal/platform/logging"
	"github.com/streetlift/meet-engine/internal/platform/token"
	"github.com/streetlift/meet-engine/internal/usecase"
)

// App owns the realtime service lifecycle: singletons are created here, get
// their dependencies explicitly, and shut down in reverse order.
type App struct {
	Server *http.Server

	db        *sqlx.DB
	broker    *realtime.Broker
	hotLogger *logging.Logger
	teardowns []func(context.Context) error
}

// deferredPublisher breaks the construction cycle between the flow engine
// (needs a Publisher) and the broker (needs the command port). The flow
// engine holds this forwarder; the broker is bound once both exist.
type deferredPublisher struct {
	inner usecase.Publisher
}

func (p *deferredPublisher) Publish(ctx context.Context, ev live.Event) {
	if p.inner == nil {
		return
	}
	p.inner.Publish(ctx, ev)
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if cfg.JudgeTokenSecret == "" {
		return nil, fmt.Errorf("JUDGE_TOKEN_SECRET is required to serve")
	}

	hotLogger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(hotLogger)

	db, err := sqlite.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return nil, err
	}

	athleteRepo := sqlite.NewAthleteRepository(db)
	meetRepo := sqlite.NewMeetRepository(db)
	categoryRepo := sqlite.NewCategoryRepository(db)
	regRepo := sqlite.NewRegistrationRepository(db)
	groupingRepo := sqlite.NewGroupingRepository(db)
	attemptRepo := sqlite.NewAttemptRepository(db)
	currentRepo := sqlite.NewCurrentRepository(db)

	tally := usecase.NewTallyService()
	ordering := usecase.NewOrderingService(groupingRepo, regRepo, attemptRepo, athleteRepo)
	ranking := usecase.NewRankingService(meetRepo, regRepo, attemptRepo, athleteRepo, categoryRepo, groupingRepo)

	pub := &deferredPublisher{}
	flow := usecase.NewFlowService(
		currentRepo, meetRepo, groupingRepo, regRepo, attemptRepo, athleteRepo,
		ordering, ranking, tally, pub, logger,
	)

	signer, err := token.NewSigner(cfg.JudgeTokenSecret, cfg.JudgeTokenTTL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	broker, err := realtime.NewBroker(flow, tally, meetRepo, signer, idgen.NewRandomGenerator(), hotLogger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	pub.inner = broker

	handler := httpapi.NewHandler(meetRepo, regRepo, groupingRepo, ranking, hotLogger)
	router := httpapi.NewRouter(handler, broker.HandleWS, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		broker.Shutdown()
		_ = db.Close()
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:    server,
		db:        db,
		broker:    broker,
		hotLogger: hotLogger,
	}, nil
}

// Shutdown tears singletons down in reverse creation order.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := a.Server.Shutdown(ctx); err != nil {
		firstErr = err
	}
	a.broker.Shutdown()
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	_ = a.hotLogger.Sync()

	for i := len(a.teardowns) - 1; i >= 0; i-- {
		if err := a.teardowns[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// AddTeardown registers extra cleanup (observability exporters) to run
// after the server stops.
func (a *App) AddTeardown(fn func(context.Context) error) {
	a.teardowns = append(a.teardowns, fn)
}
