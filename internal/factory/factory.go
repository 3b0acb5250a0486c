package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/livequiz/internal/bus"
	busmemory "github.com/mcoot/livequiz/internal/bus/memory"
	busredis "github.com/mcoot/livequiz/internal/bus/redis"
	"github.com/mcoot/livequiz/internal/config"
	"github.com/mcoot/livequiz/internal/dependencies/clock"
	"github.com/mcoot/livequiz/internal/dependencies/random"
	"github.com/mcoot/livequiz/internal/services/answer"
	"github.com/mcoot/livequiz/internal/services/broadcast"
	"github.com/mcoot/livequiz/internal/services/gameflow"
	"github.com/mcoot/livequiz/internal/services/membership"
	"github.com/mcoot/livequiz/internal/services/results"
	"github.com/mcoot/livequiz/internal/services/session"
	"github.com/mcoot/livequiz/internal/storage"
	"github.com/mcoot/livequiz/internal/storage/memory"
	redisstorage "github.com/mcoot/livequiz/internal/storage/redis"
	"github.com/mcoot/livequiz/internal/storage/sqlite"
)

// Backend constants
const (
	StorageTypeMemory = config.BackendMemory
	StorageTypeRedis  = config.BackendRedis
)

// App contains all wired application components
type App struct {
	// Storage
	Sessions storage.SessionStore
	Catalog  storage.QuizCatalog
	Results  storage.ResultStore
	Bus      bus.Bus

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Broadcaster *broadcast.Broadcaster
	Membership  *membership.Service
	Answers     *answer.Service
	Scheduler   *gameflow.Scheduler
	Finalizer   *results.Finalizer
	Coordinator *session.Coordinator

	pingers []pinger
	closers []io.Closer
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the live session backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// BusType selects the event bus ("memory" or "redis")
	// If empty, follows StorageType
	BusType string
	// RedisConfig holds Redis connection settings (required if either backend is "redis")
	RedisConfig *redisstorage.Config
	// DatabasePath is the SQLite file for quizzes and results
	// If empty, quizzes and results are kept in the session store's process memory
	DatabasePath string
	// BanWindow is how long a kicked player stays out (optional)
	BanWindow time.Duration
	// Flow holds the fixed round durations (optional)
	Flow gameflow.Config
}

// FromEnv translates the process configuration into a factory Config
func FromEnv(env config.Config, logger *slog.Logger) Config {
	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = env.RedisURL
	redisCfg.SessionTTL = env.SessionTTL
	redisCfg.HostLockTTL = env.SessionTTL

	return Config{
		Logger:       logger,
		StorageType:  env.Storage,
		BusType:      env.Bus,
		RedisConfig:  &redisCfg,
		DatabasePath: env.DatabasePath,
		BanWindow:    env.BanWindow,
		Flow: gameflow.Config{
			RevealWindow:   env.RevealWindow,
			StartCountdown: env.StartCountdown,
		},
	}
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}
	busType := cfg.BusType
	if busType == "" {
		busType = storageType
	}

	var (
		sessions storage.SessionStore
		catalog  storage.QuizCatalog
		store    storage.ResultStore
		b        bus.Bus
		pingers  []pinger
		closers  []io.Closer
	)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	var memStore *memory.Storage
	switch storageType {
	case StorageTypeMemory:
		memStore = memory.New()
		sessions = memStore
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		sessions = redisStore
		pingers = append(pingers, redisStore)
		closers = append(closers, redisStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	switch busType {
	case StorageTypeMemory:
		b = busmemory.New(logger)
	case StorageTypeRedis:
		redisStore, ok := sessions.(*redisstorage.Storage)
		if !ok {
			cleanup()
			return nil, errors.New("a redis bus needs redis storage")
		}
		b = busredis.New(redisStore.Client(), logger)
	default:
		cleanup()
		return nil, errors.New("invalid BusType: must be 'memory' or 'redis'")
	}

	if cfg.DatabasePath != "" {
		db, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("open database: %w", err)
		}
		catalog, store = db, db
		pingers = append(pingers, db)
		closers = append(closers, db)
	} else {
		if memStore == nil {
			memStore = memory.New()
		}
		catalog, store = memStore, memStore
	}

	app := newWithDependencies(sessions, catalog, store, b, clock.New(), random.New(), cfg, logger)
	app.pingers = pingers
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	sessions storage.SessionStore,
	catalog storage.QuizCatalog,
	store storage.ResultStore,
	b bus.Bus,
	clk clock.Clock,
	rnd random.Random,
	cfg Config,
	logger *slog.Logger,
) *App {
	flow := cfg.Flow
	if flow == (gameflow.Config{}) {
		flow = gameflow.DefaultConfig()
	}

	broadcaster := broadcast.New(sessions, b, clk, logger)
	finalizer := results.New(sessions, store, broadcaster, clk, logger)
	scheduler := gameflow.NewScheduler(sessions, catalog, broadcaster, finalizer, clk, rnd, logger, flow)
	membershipService := membership.New(sessions, scheduler, clk, logger, cfg.BanWindow)
	answerService := answer.New(sessions, scheduler, broadcaster, clk, logger)
	coordinator := session.NewCoordinator(sessions, catalog, membershipService, answerService, scheduler, broadcaster, b, clk, rnd, logger)

	return &App{
		Sessions:    sessions,
		Catalog:     catalog,
		Results:     store,
		Bus:         b,
		Clock:       clk,
		Random:      rnd,
		Broadcaster: broadcaster,
		Membership:  membershipService,
		Answers:     answerService,
		Scheduler:   scheduler,
		Finalizer:   finalizer,
		Coordinator: coordinator,
	}
}

// Ready checks that every external backend is reachable
func (a *App) Ready(ctx context.Context) error {
	for _, p := range a.pingers {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops pending round timers and releases backend connections
func (a *App) Close() error {
	a.Scheduler.Shutdown()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
