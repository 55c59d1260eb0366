package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/boltdb/bolt"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

// App owns the configuration, the external clients and the api server.
type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	redisClient    *redis.Client
	boltClient     *bolt.DB
	gormClient     *gorm.DB
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// NewApp provides an instance of App.
func NewApp(configFile, envFile string) (AppProvider, error) {
	config, err := LoadAndInitConfigs(configFile, envFile, GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %w", err)
	}

	clock := NewClock()
	logWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logWriter, NewTickClock(clock))
	app := &App{logger: logger, config: config}
	app.cleanups = append(app.cleanups,
		func() {
			if err := logWriter.Close(); err != nil {
				fmt.Fprintln(os.Stderr, "error during closing of log file: ", err)
			}
		},
		func() {
			if err := flusher(); err != nil {
				fmt.Fprintln(os.Stderr, "error during logs flushing: ", err)
			}
		},
	)

	if err = app.setupClients(); err != nil {
		app.Clean()
		return nil, err
	}

	boltBookStorage := NewBoltBookStorage(logger, &config.BoltDB, app.boltClient)
	gormBookStorage := NewGormBookStorage(logger, app.gormClient)
	redisBookCache := NewRedisBookCache(logger, app.redisClient, config.Redis.CacheTTL)
	redisQueue := NewRedisQueue(app.redisClient, QueuePopTimeout)
	boltDBConsumer := NewBoltDBConsumer(logger, redisQueue, boltBookStorage)

	ids := NewIDsHandler()
	bookService := NewBookService(logger, config, clock, ids, gormBookStorage, redisBookCache, redisQueue)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		ids,
		bookService,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	// Build the api server definition.
	app.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}

	app.queueConsumers = []func(ctx context.Context) error{
		func(ctx context.Context) error {
			return boltDBConsumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
		},
	}
	return app, nil
}

// setupClients connects to redis, boltDB and the relational database then
// registers their cleanups. The database schema is migrated on the way.
func (app *App) setupClients() error {
	var err error
	app.redisClient, err = GetRedisClient(app.config)
	if err != nil {
		_ = app.redisClient.Close()
		return fmt.Errorf("failed to connect to redis server: %w", err)
	}
	app.cleanups = append(app.cleanups, func() {
		if err := app.redisClient.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			app.logger.Error("failed to close redis client", zap.Error(err))
		}
	})

	if err = os.MkdirAll(filepath.Dir(app.config.BoltDB.FilePath), 0o700); err != nil {
		return fmt.Errorf("failed to create boltDB folder: %w", err)
	}
	app.boltClient, err = GetBoltDBClient(app.config)
	if err != nil {
		return fmt.Errorf("failed to connect to boltDB server: %w", err)
	}
	app.cleanups = append(app.cleanups, func() {
		if err := app.boltClient.Close(); err != nil {
			app.logger.Error("failed to close boltDB client", zap.Error(err))
		}
	})

	app.gormClient, err = GetGormClient(context.Background(), app.logger, &app.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.cleanups = append(app.cleanups, func() {
		if err := CloseGormClient(app.gormClient); err != nil {
			app.logger.Error("failed to close database client", zap.Error(err))
		}
	})

	if err = MigrateBookSchema(app.gormClient); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions in reverse order.
func (app *App) Clean() {
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		app.cleanups[i]()
	}
	app.cleanups = nil
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("database.driver", app.config.Database.Driver),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
