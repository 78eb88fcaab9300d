// Package transport wraps a Twilio Media Streams WebSocket connection.
//
// Twilio delivers JSON control frames (connected/start/media/stop/mark) over
// the socket; media payloads are base64-encoded audio that this package
// treats as opaque.
package transport

import (
	"encoding/json"
	"sync"

	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Twilio Media Streams frame events.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventDTMF      = "dtmf"
)

// Frame is one Twilio Media Streams message.
type Frame struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *StartFrame   `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
	Stop      *StopFrame    `json:"stop,omitempty"`
	Mark      *MarkFrame    `json:"mark,omitempty"`
}

// StartFrame announces the media stream and identifies the call.
type StartFrame struct {
	StreamSID    string            `json:"streamSid"`
	AccountSID   string            `json:"accountSid"`
	CallSID      string            `json:"callSid"`
	Tracks       []string          `json:"tracks"`
	MediaFormat  MediaFormat       `json:"mediaFormat"`
	CustomParams map[string]string `json:"customParameters"`
}

// MediaFormat describes the audio encoding of the stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaPayload carries one chunk of base64-encoded audio.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// StopFrame ends the media stream.
type StopFrame struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// MarkFrame acknowledges playback position.
type MarkFrame struct {
	Name string `json:"name"`
}

// Socket wraps the provider-side WebSocket. The read loop delivers frames in
// arrival order on a channel; writes are serialized by a mutex. Close is
// idempotent.
type Socket struct {
	conn   *websocket.Conn
	frames chan Frame
	done   chan struct{}

	writeMu   sync.Mutex
	mu        sync.RWMutex
	streamSID string
	closeOnce sync.Once
}

// NewSocket wraps an upgraded WebSocket connection and starts its read loop.
func NewSocket(conn *websocket.Conn) *Socket {
	s := &Socket{
		conn:   conn,
		frames: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Frames returns the inbound frame channel. It is closed when the provider
// closes the socket or a read error occurs.
func (s *Socket) Frames() <-chan Frame {
	return s.frames
}

// Done is closed when the socket is closed from either side.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// StreamSID returns the stream identifier learned from the start frame.
func (s *Socket) StreamSID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamSID
}

// WriteMedia sends one base64 audio payload to the provider.
func (s *Socket) WriteMedia(payload string) error {
	return s.writeJSON(map[string]interface{}{
		"event":     "media",
		"streamSid": s.StreamSID(),
		"media":     map[string]string{"payload": payload},
	})
}

// WriteMark sends a mark frame, used to track playback position.
func (s *Socket) WriteMark(name string) error {
	return s.writeJSON(map[string]interface{}{
		"event":     "mark",
		"streamSid": s.StreamSID(),
		"mark":      map[string]string{"name": name},
	})
}

// WriteClear asks the provider to drop any buffered outbound audio.
func (s *Socket) WriteClear() error {
	return s.writeJSON(map[string]interface{}{
		"event":     "clear",
		"streamSid": s.StreamSID(),
	})
}

// Close closes the underlying connection. Safe to call from any goroutine,
// any number of times.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

func (s *Socket) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// readLoop decodes inbound frames in order and forwards them until the
// socket closes. Unparseable messages are skipped.
func (s *Socket) readLoop() {
	defer func() {
		close(s.frames)
		_ = s.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-s.done:
				default:
					logger.Base().Debug("provider socket read ended", zap.Error(err))
				}
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		if frame.Event == EventStart && frame.Start != nil {
			s.mu.Lock()
			s.streamSID = frame.Start.StreamSID
			s.mu.Unlock()
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}

		if frame.Event == EventStop {
			return
		}
	}
}
