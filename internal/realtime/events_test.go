package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventAudioDelta(t *testing.T) {
	ev := parseEvent(map[string]interface{}{
		"type":  "response.output_audio.delta",
		"delta": "YXVkaW8=",
	})
	assert.Equal(t, EventTypeAudioDelta, ev.Type)
	assert.Equal(t, "YXVkaW8=", ev.AudioDelta)

	// Older sessions emit the legacy event name for the same payload.
	ev = parseEvent(map[string]interface{}{
		"type":  "response.audio.delta",
		"delta": "YXVkaW8=",
	})
	assert.Equal(t, EventTypeAudioDeltaLegacy, ev.Type)
	assert.Equal(t, "YXVkaW8=", ev.AudioDelta)
}

func TestParseEventFunctionCall(t *testing.T) {
	ev := parseEvent(map[string]interface{}{
		"type":      "response.function_call_arguments.done",
		"call_id":   "call_9",
		"name":      "create_appointment",
		"arguments": `{"name":"Ana"}`,
	})
	assert.Equal(t, EventTypeFunctionCallArgsDone, ev.Type)
	assert.Equal(t, "call_9", ev.CallID)
	assert.Equal(t, "create_appointment", ev.Name)
	assert.Equal(t, `{"name":"Ana"}`, ev.Arguments)
}

func TestParseEventKeepsRaw(t *testing.T) {
	raw := map[string]interface{}{"type": "session.created", "session": map[string]interface{}{"id": "s1"}}
	ev := parseEvent(raw)
	assert.Equal(t, EventTypeSessionCreated, ev.Type)
	assert.Equal(t, raw, ev.Raw)
}

func TestSessionURL(t *testing.T) {
	u, err := sessionURL(Config{BaseURL: "https://api.openai.com", Model: "gpt-realtime"})
	require.NoError(t, err)
	assert.Equal(t, "wss://api.openai.com/v1/realtime?model=gpt-realtime", u)

	u, err = sessionURL(Config{BaseURL: "http://127.0.0.1:9999", Model: "gpt-realtime"})
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9999/v1/realtime?model=gpt-realtime", u)
}

func TestDialRequiresAPIKey(t *testing.T) {
	_, err := Dial(context.Background(), Config{BaseURL: "https://api.openai.com"}, SessionParams{})
	assert.ErrorIs(t, err, ErrCredentialMissing)
}
