package e2e_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/livequiz/internal/api"
	"github.com/mcoot/livequiz/internal/bus"
	"github.com/mcoot/livequiz/internal/factory"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/services/broadcast"
	"github.com/mcoot/livequiz/internal/services/gameflow"
	"github.com/mcoot/livequiz/internal/testutil"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "livequiz-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/livequiz")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

// runAs runs the CLI acting as the given player
func (r *cliRunner) runAs(playerID string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--player-id", playerID,
		"--name", playerID,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	app      *factory.App
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	// Short fixed phases so a game completes quickly on the real clock
	app, err := factory.New(factory.Config{
		Flow: gameflow.Config{
			StartCountdown: 0,
			RevealWindow:   100 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:      testutil.NopLogger(),
		Coordinator: app.Coordinator,
		Catalog:     app.Catalog,
		Results:     app.Results,
		Bus:         app.Bus,
		Ready:       app.Ready,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

func writeQuizFile(t *testing.T) string {
	t.Helper()

	quiz := map[string]any{
		"title": "Capitals",
		"questions": []map[string]any{
			{
				"question":   "Capital of France?",
				"options":    []map[string]string{{"key": "A", "text": "Paris"}, {"key": "B", "text": "Lyon"}},
				"correctKey": "A",
			},
		},
	}
	data, err := json.Marshal(quiz)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "quiz.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

// Response types for JSON parsing
type quizResponse struct {
	ID        string `json:"id"`
	CreatorID string `json:"creator_id"`
	Title     string `json:"title"`
}

type summaryResponse struct {
	ID          string `json:"id"`
	PlayerCount int    `json:"player_count"`
	Winner      *struct {
		ID         string `json:"id"`
		TotalScore int    `json:"total_score"`
	} `json:"winner"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)

	output, err = cli.run("health", "--ready")
	require.NoError(t, err, "output: %s", output)
}

func TestCLI_IdentityFile(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	identityFile := filepath.Join(t.TempDir(), "identity.json")

	output, err := cli.run("--identity-file", identityFile, "identity", "set", "Alice", "--id", "alice")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.run("--identity-file", identityFile, "identity", "show")
	require.NoError(t, err, "output: %s", output)

	var identity struct {
		PlayerID    string `json:"player_id"`
		DisplayName string `json:"display_name"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &identity))
	assert.Equal(t, "alice", identity.PlayerID)
	assert.Equal(t, "Alice", identity.DisplayName)

	// Commands pick up the saved identity
	output, err = cli.run("--identity-file", identityFile, "quiz", "import", writeQuizFile(t))
	require.NoError(t, err, "output: %s", output)

	var quiz quizResponse
	require.NoError(t, json.Unmarshal([]byte(output), &quiz))
	assert.Equal(t, "alice", quiz.CreatorID)
}

func TestCLI_SessionCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.runAs("host", "quiz", "import", writeQuizFile(t))
	require.NoError(t, err, "output: %s", output)
	var quiz quizResponse
	require.NoError(t, json.Unmarshal([]byte(output), &quiz))

	// Only the author can host it
	_, err = cli.runAs("intruder", "session", "create", quiz.ID)
	assert.Error(t, err)

	output, err = cli.runAs("host", "session", "create", quiz.ID)
	require.NoError(t, err, "output: %s", output)
	var snapshot broadcast.SessionSnapshot
	require.NoError(t, json.Unmarshal([]byte(output), &snapshot))
	assert.Equal(t, model.SessionStatusLobby, snapshot.Status)
	code := string(snapshot.Code)

	output, err = cli.runAs("alice", "session", "join", code)
	require.NoError(t, err, "output: %s", output)
	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Contains(t, msg.Message, "accepted")

	output, err = cli.runAs("host", "session", "settings", code, "--max-players", "5", "--time", "30")
	require.NoError(t, err, "output: %s", output)

	// Non-hosts cannot change settings
	_, err = cli.runAs("alice", "session", "settings", code, "--max-players", "2")
	assert.Error(t, err)

	output, err = cli.run("session", "get", code)
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), &snapshot))
	require.Len(t, snapshot.Players, 1)
	assert.Equal(t, model.PlayerID("alice"), snapshot.Players[0].ID)
	assert.Equal(t, 5, snapshot.Settings.MaxPlayers)
	assert.Equal(t, 30, snapshot.Settings.TimePerQuestion)

	output, err = cli.runAs("host", "session", "close", code)
	require.NoError(t, err, "output: %s", output)

	_, err = cli.run("session", "get", code)
	assert.Error(t, err)
}

func TestCLI_FullGameFlow(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.runAs("host", "quiz", "import", writeQuizFile(t))
	require.NoError(t, err, "output: %s", output)
	var quiz quizResponse
	require.NoError(t, json.Unmarshal([]byte(output), &quiz))

	output, err = cli.runAs("host", "session", "create", quiz.ID)
	require.NoError(t, err, "output: %s", output)
	var snapshot broadcast.SessionSnapshot
	require.NoError(t, json.Unmarshal([]byte(output), &snapshot))
	code := snapshot.Code
	t.Logf("Created session: %s", code)

	recorder := testutil.NewEventRecorder(t, ts.app.Bus, bus.SessionTopic(code))

	output, err = cli.runAs("alice", "session", "join", string(code))
	require.NoError(t, err, "output: %s", output)

	output, err = cli.runAs("host", "session", "start", string(code))
	require.NoError(t, err, "output: %s", output)

	// Wait for the question to open
	require.Eventually(t, func() bool {
		output, err := cli.run("session", "get", string(code))
		if err != nil || json.Unmarshal([]byte(output), &snapshot) != nil {
			return false
		}
		return snapshot.Round != nil && snapshot.Round.Phase == model.PhaseQuestion
	}, 5*time.Second, 50*time.Millisecond)

	// Answering is all-answered, so the round closes without waiting for the timer
	output, err = cli.runAs("alice", "session", "answer", string(code), "0", "a")
	require.NoError(t, err, "output: %s", output)

	_, err = cli.runAs("alice", "session", "answer", string(code), "0", "a")
	assert.Error(t, err, "second answer must be rejected")

	var final broadcast.SessionSnapshot
	require.Eventually(t, func() bool {
		ev, ok := recorder.Last(bus.SessionTopic(code))
		if !ok || ev.Decode(&final) != nil {
			return false
		}
		return final.Status == model.SessionStatusEnded && final.ResultID != ""
	}, 5*time.Second, 20*time.Millisecond)
	t.Logf("Game finished: %s", final.ResultID)

	output, err = cli.run("results", "get", string(final.ResultID))
	require.NoError(t, err, "output: %s", output)
	var summary summaryResponse
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	assert.Equal(t, 1, summary.PlayerCount)
	require.NotNil(t, summary.Winner)
	assert.Equal(t, "alice", summary.Winner.ID)
	assert.Positive(t, summary.Winner.TotalScore)

	output, err = cli.run("results", "players", string(final.ResultID))
	require.NoError(t, err, "output: %s", output)
	var players []struct {
		Rank int `json:"rank"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &players))
	require.Len(t, players, 1)
	assert.Equal(t, 1, players[0].Rank)
}
