package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookline-ai/voice-scheduler-service/internal/agent"
	"github.com/bookline-ai/voice-scheduler-service/internal/realtime"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/internal/tool"
	"github.com/bookline-ai/voice-scheduler-service/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newProviderPair dials a loopback WebSocket endpoint and returns the
// service-side socket plus the client conn playing the telephony provider.
func newProviderPair(t *testing.T) (*transport.Socket, *websocket.Conn) {
	t.Helper()

	sockCh := make(chan *transport.Socket, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("provider upgrade: %v", err)
			return
		}
		sockCh <- transport.NewSocket(conn)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case sock := <-sockCh:
		return sock, client
	case <-time.After(2 * time.Second):
		t.Fatal("provider socket never arrived")
		return nil, nil
	}
}

// fakeAgentServer stands in for the realtime agent service. It records what
// the bridge sends upstream and lets tests emit server events.
type fakeAgentServer struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	conn          *websocket.Conn
	greetings     []string
	audioAppended []string
	toolOutputs   chan map[string]interface{}

	ready chan struct{}
}

func newFakeAgentServer(t *testing.T) *fakeAgentServer {
	t.Helper()
	f := &fakeAgentServer{
		t:           t,
		toolOutputs: make(chan map[string]interface{}, 8),
		ready:       make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("agent upgrade: %v", err)
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		close(f.ready)
		f.readLoop(conn)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAgentServer) readLoop(conn *websocket.Conn) {
	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		msgType, _ := msg["type"].(string)
		switch msgType {
		case "input_audio_buffer.append":
			audio, _ := msg["audio"].(string)
			f.mu.Lock()
			f.audioAppended = append(f.audioAppended, audio)
			f.mu.Unlock()
		case "conversation.item.create":
			item, _ := msg["item"].(map[string]interface{})
			itemType, _ := item["type"].(string)
			switch itemType {
			case "message":
				f.mu.Lock()
				f.greetings = append(f.greetings, messageText(item))
				f.mu.Unlock()
			case "function_call_output":
				f.toolOutputs <- item
			}
		}
	}
}

func messageText(item map[string]interface{}) string {
	content, _ := item["content"].([]interface{})
	for _, part := range content {
		m, _ := part.(map[string]interface{})
		if text, ok := m["text"].(string); ok {
			return text
		}
	}
	return ""
}

func (f *fakeAgentServer) emit(event map[string]interface{}) {
	select {
	case <-f.ready:
	case <-time.After(2 * time.Second):
		f.t.Fatal("agent conn never established")
	}
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	require.NoError(f.t, conn.WriteJSON(event))
}

func (f *fakeAgentServer) greetingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.greetings)
}

func (f *fakeAgentServer) appendedAudio() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.audioAppended...)
}

func (f *fakeAgentServer) dial(t *testing.T, def *agent.Definition) *realtime.Session {
	t.Helper()
	sess, err := realtime.Dial(context.Background(), realtime.Config{
		APIKey:  "test-key",
		BaseURL: f.srv.URL,
		Model:   "gpt-realtime",
		Voice:   "verse",
	}, realtime.SessionParams{
		Instructions: def.Instructions,
		Tools:        def.Tools.Definitions(),
	})
	require.NoError(t, err)
	return sess
}

type bridgeFixture struct {
	bridge   *Bridge
	registry *Registry
	client   *websocket.Conn
	agent    *fakeAgentServer
	store    *repository.MemoryAppointmentRepository
	callID   string
	done     chan error
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	return newBridgeFixtureOn(t, NewRegistry(), "CA123")
}

func newBridgeFixtureOn(t *testing.T, registry *Registry, callID string) *bridgeFixture {
	t.Helper()

	sock, client := newProviderPair(t)
	fake := newFakeAgentServer(t)

	store := repository.NewMemoryAppointmentRepository()
	recorder := tool.NewAppointmentRecorder(store)
	def := agent.NewFactory(recorder).Build("tenant-a", callID)

	sess := fake.dial(t, def)

	keys := SessionKeys{TenantID: "tenant-a", CallID: callID}
	b := New(keys, "basic", def, sock, sess, repository.NewMemoryCallRepository(), registry, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	return &bridgeFixture{
		bridge:   b,
		registry: registry,
		client:   client,
		agent:    fake,
		store:    store,
		callID:   callID,
		done:     done,
	}
}

func (fx *bridgeFixture) sendStart(t *testing.T) {
	t.Helper()
	require.NoError(t, fx.client.WriteJSON(map[string]interface{}{
		"event":     "start",
		"streamSid": "MZ001",
		"start": map[string]interface{}{
			"streamSid": "MZ001",
			"callSid":   fx.callID,
		},
	}))
}

func (fx *bridgeFixture) sendStop(t *testing.T) {
	t.Helper()
	require.NoError(t, fx.client.WriteJSON(map[string]interface{}{
		"event": "stop",
		"stop":  map[string]interface{}{"callSid": fx.callID},
	}))
}

func (fx *bridgeFixture) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case err := <-fx.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge never closed")
	}
}

func TestBridgeGreetsExactlyOnce(t *testing.T) {
	fx := newBridgeFixture(t)

	require.NoError(t, fx.client.WriteJSON(map[string]interface{}{"event": "connected"}))
	for i := 0; i < 10; i++ {
		fx.sendStart(t)
	}

	require.Eventually(t, func() bool {
		return fx.agent.greetingCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateActive, fx.bridge.State())

	fx.sendStop(t)
	fx.waitClosed(t)

	assert.Equal(t, 1, fx.agent.greetingCount())
	assert.Contains(t, fx.agent.greetings[0], "greet the caller")
	assert.Equal(t, StateClosed, fx.bridge.State())
	assert.Equal(t, 0, fx.registry.Count())
}

func TestBridgeRelaysAudioBothWays(t *testing.T) {
	fx := newBridgeFixture(t)
	fx.sendStart(t)

	// Caller audio goes upstream untouched.
	require.NoError(t, fx.client.WriteJSON(map[string]interface{}{
		"event": "media",
		"media": map[string]interface{}{"payload": "dGVzdC1hdWRpbw=="},
	}))
	require.Eventually(t, func() bool {
		audio := fx.agent.appendedAudio()
		return len(audio) == 1 && audio[0] == "dGVzdC1hdWRpbw=="
	}, 2*time.Second, 10*time.Millisecond)

	// Agent audio comes back as a provider media frame.
	fx.agent.emit(map[string]interface{}{
		"type":  "response.output_audio.delta",
		"delta": "YWdlbnQtYXVkaW8=",
	})
	frame := fx.readProviderFrame(t, "media")
	assert.Equal(t, "YWdlbnQtYXVkaW8=", frame.Media.Payload)
	assert.Equal(t, "MZ001", frame.StreamSID)

	// Caller barge-in clears buffered playback.
	fx.agent.emit(map[string]interface{}{"type": "input_audio_buffer.speech_started"})
	fx.readProviderFrame(t, "clear")

	fx.sendStop(t)
	fx.waitClosed(t)
}

// readProviderFrame reads frames off the provider client until one of the
// wanted event arrives. Greeting-driven frames may interleave.
func (fx *bridgeFixture) readProviderFrame(t *testing.T, event string) transport.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = fx.client.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame transport.Frame
		require.NoError(t, fx.client.ReadJSON(&frame))
		if frame.Event == event {
			return frame
		}
	}
	t.Fatalf("no %s frame arrived", event)
	return transport.Frame{}
}

func TestBridgeExecutesToolCall(t *testing.T) {
	fx := newBridgeFixture(t)
	fx.sendStart(t)

	fx.agent.emit(map[string]interface{}{
		"type":      "response.function_call_arguments.done",
		"call_id":   "call_1",
		"name":      "create_appointment",
		"arguments": `{"name":"Ana Torres","service":"haircut","startTime":"2026-09-01T10:00:00","phone":"+15551112222"}`,
	})

	output := fx.waitToolOutput(t)
	assert.Equal(t, "call_1", output["call_id"])
	result, _ := output["output"].(string)
	assert.Contains(t, result, "haircut")
	assert.Equal(t, 1, fx.store.Count())

	appts, err := fx.store.ListByCall(context.Background(), "tenant-a", "CA123")
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "Ana Torres", appts[0].Name)
	assert.Equal(t, "tenant-a", appts[0].TenantID)

	fx.sendStop(t)
	fx.waitClosed(t)
}

func TestBridgeToolFailureDoesNotEndCall(t *testing.T) {
	fx := newBridgeFixture(t)
	fx.sendStart(t)

	// Missing required fields: the failure goes back as tool output.
	fx.agent.emit(map[string]interface{}{
		"type":      "response.function_call_arguments.done",
		"call_id":   "call_2",
		"name":      "create_appointment",
		"arguments": `{"name":"Ana"}`,
	})

	output := fx.waitToolOutput(t)
	result, _ := output["output"].(string)
	assert.Contains(t, result, "error")
	assert.Equal(t, 0, fx.store.Count())
	assert.Equal(t, StateActive, fx.bridge.State())

	// Unknown tool names are handled the same way.
	fx.agent.emit(map[string]interface{}{
		"type":      "response.function_call_arguments.done",
		"call_id":   "call_3",
		"name":      "no_such_tool",
		"arguments": `{}`,
	})
	output = fx.waitToolOutput(t)
	result, _ = output["output"].(string)
	assert.Contains(t, result, "error")

	fx.sendStop(t)
	fx.waitClosed(t)
}

func (fx *bridgeFixture) waitToolOutput(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case item := <-fx.agent.toolOutputs:
		return item
	case <-time.After(3 * time.Second):
		t.Fatal("no tool output arrived")
		return nil
	}
}

func TestBridgeIsolationAcrossCalls(t *testing.T) {
	registry := NewRegistry()
	first := newBridgeFixtureOn(t, registry, "CA300")
	second := newBridgeFixtureOn(t, registry, "CA301")

	first.sendStart(t)
	second.sendStart(t)
	require.Eventually(t, func() bool {
		return registry.Count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Closing one call leaves the other live and registered.
	first.sendStop(t)
	first.waitClosed(t)

	assert.Equal(t, StateActive, second.bridge.State())
	assert.Same(t, second.bridge, registry.Get("CA301"))
	assert.Equal(t, 1, registry.Count())

	second.sendStop(t)
	second.waitClosed(t)
	assert.Equal(t, 0, registry.Count())
}

func TestBridgeRejectsDuplicateAttach(t *testing.T) {
	fx := newBridgeFixture(t)
	fx.sendStart(t)
	require.Eventually(t, func() bool {
		return fx.registry.Get("CA123") != nil
	}, 2*time.Second, 10*time.Millisecond)

	sock, client := newProviderPair(t)
	fake := newFakeAgentServer(t)
	def := agent.NewFactory(tool.NewAppointmentRecorder(repository.NewMemoryAppointmentRepository())).Build("tenant-a", "CA123")
	sess := fake.dial(t, def)

	dup := New(SessionKeys{TenantID: "tenant-a", CallID: "CA123"}, "basic", def, sock, sess, nil, fx.registry, nil, zap.NewNop())
	err := dup.Run(context.Background())
	assert.ErrorIs(t, err, ErrDuplicateCall)
	assert.Equal(t, StateFailed, dup.State())

	// The original bridge is untouched.
	assert.Same(t, fx.bridge, fx.registry.Get("CA123"))
	_ = client.Close()

	fx.sendStop(t)
	fx.waitClosed(t)
	assert.Equal(t, 0, fx.registry.Count())
}
