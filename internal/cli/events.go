package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events <code>",
		Short: "Stream SSE events from a session",
		Long: `Connect to the session's SSE endpoint and stream events in real-time.

Events include:
  - session-updated: Full session snapshot after any change
  - session-closed: The host closed the session
  - answer-progress: Answers to the open question (host only)
  - kicked: You were removed from the session
  - answer-ack: Your answer was accepted or rejected
  - error: One of your commands was rejected

Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, sessionCode(args[0]), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func streamEvents(ctx context.Context, code string, jsonOutput bool) error {
	if cfg.Identity.PlayerID == "" {
		return fmt.Errorf("no identity set; use --player-id or 'livequiz identity set <name>'")
	}

	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/sessions/" + code + "/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	client.setIdentity(req)

	// No timeout for SSE
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		fmt.Printf("Connected to session %s\n", code)
	}

	// Parse SSE stream
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent != "" {
				printEvent(currentEvent, strings.Join(dataLines, "\n"), jsonOutput)
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil {
		// Context cancellation is expected
		if ctx.Err() != nil {
			if !jsonOutput {
				fmt.Println("\nDisconnected")
			}
			return nil
		}
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		fmt.Println("Disconnected")
	}
	return nil
}

func printEvent(event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		raw := json.RawMessage(data)
		if !json.Valid(raw) {
			raw, _ = json.Marshal(data)
		}
		jsonData, _ := json.Marshal(SSEEvent{Time: now, Event: event, Data: raw})
		fmt.Println(string(jsonData))
		return
	}

	timestamp := now.Format(time.DateTime)
	// Truncate data if it's too long for display
	displayData := data
	if len(displayData) > 120 {
		displayData = displayData[:120] + "..."
	}
	displayData = strings.ReplaceAll(displayData, "\n", " ")
	fmt.Printf("[%s] %s: %s\n", timestamp, event, displayData)
}
