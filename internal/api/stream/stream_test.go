package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/livequiz/internal/bus"
	busmemory "github.com/mcoot/livequiz/internal/bus/memory"
	"github.com/mcoot/livequiz/internal/model"
	"github.com/mcoot/livequiz/internal/testutil"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		data      string
		expected  string
	}{
		{
			name:      "single line data",
			eventName: "session-updated",
			data:      `{"type":"session-updated"}`,
			expected:  "event: session-updated\ndata: {\"type\":\"session-updated\"}\n\n",
		},
		{
			name:      "multi-line data",
			eventName: "error",
			data:      "{\n  \"code\": \"BANNED\"\n}",
			expected:  "event: error\ndata: {\ndata:   \"code\": \"BANNED\"\ndata: }\n\n",
		},
		{
			name:      "empty data",
			eventName: "ping",
			data:      "",
			expected:  "event: ping\ndata: \n\n",
		},
		{
			name:      "data with carriage returns",
			eventName: "test",
			data:      "line1\r\nline2",
			expected:  "event: test\ndata: line1\ndata: line2\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatMessage(tt.eventName, tt.data)))
		})
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single line", input: "hello", expected: []string{"hello"}},
		{name: "two lines", input: "line1\nline2", expected: []string{"line1", "line2"}},
		{name: "trailing newline", input: "line1\n", expected: []string{"line1"}},
		{name: "empty string", input: "", expected: []string{""}},
		{name: "crlf line endings", input: "line1\r\nline2\r\n", expected: []string{"line1", "line2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitLines(tt.input))
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, model.EventKicked, typeOf([]byte(`{"type":"kicked","payload":{}}`)))
	assert.Equal(t, model.EventType("message"), typeOf([]byte(`not json`)))
	assert.Equal(t, model.EventType("message"), typeOf([]byte(`{}`)))
}

// readEvent returns the name of the next event on the stream, skipping keepalives
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data += strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func publish(t *testing.T, b bus.Bus, topic string, eventType model.EventType) {
	t.Helper()
	data, err := json.Marshal(model.Event{Type: eventType, SessionCode: "ABC123"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), topic, data))
}

func TestServeRelaysTopicsUntilClosed(t *testing.T) {
	logger := testutil.NopLogger()
	b := busmemory.New(logger)
	streamer := New(b, logger, 10*time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		streamer.Serve(w, r, "ABC123", "alice", bus.SessionTopic("ABC123"), bus.UserTopic("alice"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	// Subscriptions are in place before the connected event is written
	name, _ := readEvent(t, reader)
	require.Equal(t, "connected", name)

	publish(t, b, bus.SessionTopic("ABC123"), model.EventSessionUpdated)
	name, data := readEvent(t, reader)
	assert.Equal(t, string(model.EventSessionUpdated), name)
	assert.Contains(t, data, `"sessionCode":"ABC123"`)

	publish(t, b, bus.UserTopic("alice"), model.EventAnswerAck)
	name, _ = readEvent(t, reader)
	assert.Equal(t, string(model.EventAnswerAck), name)

	// Another player's notices are not relayed
	publish(t, b, bus.UserTopic("bob"), model.EventKicked)
	publish(t, b, bus.SessionTopic("ABC123"), model.EventSessionClosed)
	name, _ = readEvent(t, reader)
	assert.Equal(t, string(model.EventSessionClosed), name)

	// The stream ends after the session is closed
	_, err = reader.ReadString('\n')
	assert.Error(t, err)
}
