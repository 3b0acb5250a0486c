package factory

import (
	"io"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	busmemory "github.com/mcoot/livequiz/internal/bus/memory"
	busredis "github.com/mcoot/livequiz/internal/bus/redis"
	"github.com/mcoot/livequiz/internal/dependencies/mocks"
	"github.com/mcoot/livequiz/internal/storage/memory"
	redisstorage "github.com/mcoot/livequiz/internal/storage/redis"
	"github.com/mcoot/livequiz/internal/storage/sqlite"
	"github.com/mcoot/livequiz/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

func testStart() time.Time {
	return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

// NewTestApp creates an in-memory App with mocked clock and random
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(testStart())
	mockRandom := mocks.NewMockRandom()
	logger := testutil.NopLogger()

	app := newWithDependencies(store, store, store, busmemory.New(logger), mockClock, mockRandom, Config{}, logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// NewRedisTestApp creates an App backed by the given miniredis for sessions and the bus,
// and a private in-memory SQLite database for quizzes and results
func NewRedisTestApp(mini *miniredis.Miniredis) (*TestApp, error) {
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	sessions := redisstorage.NewWithClient(client, redisstorage.DefaultConfig())

	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	mockClock := mocks.NewMockClock(testStart())
	mockRandom := mocks.NewMockRandom()
	logger := testutil.NopLogger()

	app := newWithDependencies(sessions, db, db, busredis.New(client, logger), mockClock, mockRandom, Config{}, logger)
	app.pingers = []pinger{sessions, db}
	app.closers = []io.Closer{sessions, db}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}, nil
}
