// Package realtime implements the session against the external realtime
// agent service (OpenAI Realtime API over WebSocket).
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrCredentialMissing indicates no service API key is configured.
	// A configuration fault, not retried.
	ErrCredentialMissing = errors.New("realtime service API key not configured")

	// ErrSessionEstablish indicates the session could not be opened.
	ErrSessionEstablish = errors.New("failed to establish realtime session")
)

// Config holds connection settings for the realtime agent service.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
}

// SessionParams carries the per-call agent configuration applied at session
// start.
type SessionParams struct {
	Instructions string
	Tools        []interface{}
}

// Session is one live conversation with the realtime agent service. Outbound
// writes are serialized; inbound events arrive in order on Events().
type Session struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial opens a realtime session and applies the session configuration
// (instructions, tools, telephony audio format, server VAD).
func Dial(ctx context.Context, cfg Config, params SessionParams) (*Session, error) {
	if cfg.APIKey == "" {
		return nil, ErrCredentialMissing
	}

	endpoint, err := sessionURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionEstablish, err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, fmt.Errorf("%w: dial %s (status %d): %v", ErrSessionEstablish, endpoint, status, err)
	}

	s := &Session{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	if err := s.sendSessionUpdate(cfg, params); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: session.update: %v", ErrSessionEstablish, err)
	}

	go s.readLoop()
	return s, nil
}

// sessionURL converts the HTTP base URL into the realtime WebSocket endpoint.
func sessionURL(cfg Config) (string, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", err
	}
	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	case "http":
		base.Scheme = "ws"
	}
	if !strings.HasSuffix(base.Path, "/v1/realtime") {
		base.Path = strings.TrimSuffix(base.Path, "/") + "/v1/realtime"
	}
	q := base.Query()
	q.Set("model", cfg.Model)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// sendSessionUpdate applies instructions, tools and the telephony audio
// configuration to the freshly opened session.
func (s *Session) sendSessionUpdate(cfg Config, params SessionParams) error {
	session := map[string]interface{}{
		"type":         "realtime",
		"model":        cfg.Model,
		"instructions": params.Instructions,
		"audio": map[string]interface{}{
			"input": map[string]interface{}{
				"format": map[string]interface{}{"type": "audio/pcmu"},
				"turn_detection": map[string]interface{}{
					"type": "server_vad",
				},
			},
			"output": map[string]interface{}{
				"format": map[string]interface{}{"type": "audio/pcmu"},
				"voice":  cfg.Voice,
			},
		},
	}
	if len(params.Tools) > 0 {
		session["tools"] = params.Tools
	}

	return s.SendEvent(map[string]interface{}{
		"type":    "session.update",
		"session": session,
	})
}

// Events returns the inbound event channel. It is closed when the session
// ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session is closed from either side.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// SendEvent sends one client event to the agent service.
func (s *Session) SendEvent(event map[string]interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return fmt.Errorf("realtime session closed")
	default:
	}
	return s.conn.WriteJSON(event)
}

// AppendAudio forwards one base64 audio payload from the provider into the
// session's input buffer.
func (s *Session) AppendAudio(payload string) error {
	return s.SendEvent(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": payload,
	})
}

// SendUserMessage injects a synthetic text prompt into the live conversation
// and asks the model to respond. Used for the one-shot greeting trigger.
func (s *Session) SendUserMessage(text string) error {
	item := map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type": "message",
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "input_text", "text": text},
			},
		},
	}
	if err := s.SendEvent(item); err != nil {
		return err
	}
	return s.SendEvent(map[string]interface{}{"type": "response.create"})
}

// SendFunctionResult returns a tool invocation's output to the model and
// triggers the follow-up response.
func (s *Session) SendFunctionResult(callID, output string) error {
	result := map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}
	if err := s.SendEvent(result); err != nil {
		return err
	}
	return s.SendEvent(map[string]interface{}{"type": "response.create"})
}

// Close tears the session down. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

// readLoop decodes server events in arrival order until the session ends.
func (s *Session) readLoop() {
	defer func() {
		close(s.events)
		_ = s.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Base().Debug("realtime session read ended", zap.Error(err))
				}
			}
			return
		}

		var raw map[string]interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}

		ev := parseEvent(raw)
		if ev.Type == EventTypeError {
			logger.Base().Warn("realtime service error event", zap.Any("event", raw))
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
