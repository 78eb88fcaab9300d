// Package bridge joins one provider media stream to one realtime agent
// session and relays audio and tool traffic between them for the life of the
// call.
package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bookline-ai/voice-scheduler-service/internal/agent"
	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/bookline-ai/voice-scheduler-service/internal/realtime"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/internal/transport"
	"go.uber.org/zap"
)

// Bridge lifecycle states.
const (
	StateHandshaking = "HANDSHAKING"
	StateAttached    = "ATTACHED"
	StateActive      = "ACTIVE"
	StateClosing     = "CLOSING"
	StateClosed      = "CLOSED"
	StateFailed      = "FAILED"
)

// greetingPrompt is injected exactly once, when the provider's start frame
// arrives, so the agent speaks first.
const greetingPrompt = "Please greet the caller now."

// SessionMonitor publishes bridge lifecycle to shared infrastructure so
// operators can see live calls across instances. A nil monitor is skipped.
type SessionMonitor interface {
	Register(ctx context.Context, tenantID, callID string) error
	Unregister(ctx context.Context, tenantID, callID string) error
}

// Bridge relays one call between the provider socket and the agent session.
type Bridge struct {
	keys  SessionKeys
	plan  string
	def   *agent.Definition
	sock  *transport.Socket
	sess  *realtime.Session
	calls repository.CallRepository

	registry *Registry
	monitor  SessionMonitor
	log      *zap.Logger

	mu      sync.Mutex
	state   string
	greeted bool
}

// New assembles a bridge over an upgraded provider socket and an established
// agent session. The bridge starts in HANDSHAKING and owns both connections
// from here on.
func New(keys SessionKeys, plan string, def *agent.Definition, sock *transport.Socket, sess *realtime.Session, calls repository.CallRepository, registry *Registry, monitor SessionMonitor, log *zap.Logger) *Bridge {
	return &Bridge{
		keys:     keys,
		plan:     plan,
		def:      def,
		sock:     sock,
		sess:     sess,
		calls:    calls,
		registry: registry,
		monitor:  monitor,
		log:      log.With(zap.String("tenant_id", keys.TenantID), zap.String("call_id", keys.CallID)),
		state:    StateHandshaking,
	}
}

// State reports the current lifecycle state.
func (b *Bridge) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition moves to the next state. Terminal states are sticky: once
// CLOSED or FAILED is reached no further transition applies.
func (b *Bridge) transition(next string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed || b.state == StateFailed {
		return
	}
	b.state = next
}

// fail marks the bridge FAILED unless it is already terminal.
func (b *Bridge) fail(reason string, err error) {
	b.mu.Lock()
	terminal := b.state == StateClosed || b.state == StateFailed
	if !terminal {
		b.state = StateFailed
	}
	b.mu.Unlock()
	if !terminal {
		b.log.Error("bridge failed", zap.String("reason", reason), zap.Error(err))
	}
}

// Run registers the bridge, relays traffic in both directions, and tears
// everything down when either side ends. It blocks until the call is over.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.registry.Add(b.keys.CallID, b); err != nil {
		b.fail("duplicate call", err)
		_ = b.sock.Close()
		_ = b.sess.Close()
		return err
	}
	b.transition(StateAttached)
	b.log.Info("bridge attached", zap.String("plan", b.plan))

	if b.monitor != nil {
		if err := b.monitor.Register(ctx, b.keys.TenantID, b.keys.CallID); err != nil {
			b.log.Warn("session monitor register failed", zap.Error(err))
		}
	}

	defer func() {
		b.transition(StateClosing)
		_ = b.sock.Close()
		_ = b.sess.Close()
		b.registry.Remove(b.keys.CallID)
		if b.monitor != nil {
			if err := b.monitor.Unregister(context.Background(), b.keys.TenantID, b.keys.CallID); err != nil {
				b.log.Warn("session monitor unregister failed", zap.Error(err))
			}
		}
		b.transition(StateClosed)
		b.log.Info("bridge closed", zap.String("state", b.State()))
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.pumpAgent(ctx)
	}()

	b.pumpProvider(ctx)

	// The provider side is over; release the agent session so the agent
	// pump drains and exits.
	_ = b.sess.Close()
	<-done
	return nil
}

// pumpProvider consumes provider frames in arrival order and forwards caller
// audio upstream. Returns when the stream stops or the socket dies.
func (b *Bridge) pumpProvider(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.sess.Done():
			return
		case frame, ok := <-b.sock.Frames():
			if !ok {
				return
			}
			switch frame.Event {
			case transport.EventConnected:
				// Handshake preamble, no payload to act on.
			case transport.EventStart:
				b.onStart(ctx, frame.Start)
			case transport.EventMedia:
				if frame.Media == nil {
					continue
				}
				if err := b.sess.AppendAudio(frame.Media.Payload); err != nil {
					b.fail("audio forward", err)
					return
				}
			case transport.EventMark:
				// Playback acknowledgements are informational.
			case transport.EventStop:
				b.log.Info("provider stream stopped")
				return
			}
		}
	}
}

// onStart activates the bridge on the provider's start frame: the call record
// is merged, and the one-shot greeting is triggered. Repeated start frames
// never re-greet.
func (b *Bridge) onStart(ctx context.Context, start *transport.StartFrame) {
	b.transition(StateActive)

	b.mu.Lock()
	alreadyGreeted := b.greeted
	b.greeted = true
	b.mu.Unlock()

	if start != nil && b.calls != nil {
		callSID := start.CallSID
		if callSID == "" {
			callSID = b.keys.CallID
		}
		// Status merge only. The plan was recorded by the webhook at call
		// start; the attach-side value is an informational hint and must not
		// overwrite it.
		if _, err := b.calls.Upsert(ctx, &domain.UpsertCallRequest{
			CallSID:  callSID,
			TenantID: b.keys.TenantID,
			Status:   domain.CallStatusInProgress,
			Source:   domain.SourceTwilioVoice,
		}); err != nil {
			// Bookkeeping only; the conversation goes on.
			b.log.Warn("call record merge failed", zap.Error(err))
		}
	}

	if alreadyGreeted {
		return
	}
	if err := b.sess.SendUserMessage(greetingPrompt); err != nil {
		b.fail("greeting trigger", err)
		return
	}
	b.log.Info("greeting triggered")
}

// pumpAgent consumes agent events in arrival order: audio goes back to the
// caller, barge-in clears queued playback, and tool calls are executed
// inline so their results keep conversation order.
func (b *Bridge) pumpAgent(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.sock.Done():
			return
		case ev, ok := <-b.sess.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case realtime.EventTypeAudioDelta, realtime.EventTypeAudioDeltaLegacy:
				if err := b.sock.WriteMedia(ev.AudioDelta); err != nil {
					b.fail("audio return", err)
					return
				}
			case realtime.EventTypeInputSpeechStarted:
				// Caller barge-in: drop queued agent audio immediately.
				if err := b.sock.WriteClear(); err != nil {
					b.fail("barge-in clear", err)
					return
				}
			case realtime.EventTypeFunctionCallArgsDone:
				b.onToolCall(ctx, ev)
			}
		}
	}
}

// onToolCall executes a completed tool invocation and returns the result to
// the agent. Tool failures are reported back as tool output; they never end
// the call.
func (b *Bridge) onToolCall(ctx context.Context, ev realtime.Event) {
	b.log.Info("tool call", zap.String("tool", ev.Name), zap.String("tool_call_id", ev.CallID))

	output, err := b.def.Tools.Execute(ctx, ev.Name, ev.Arguments)
	if err != nil {
		b.log.Warn("tool call failed", zap.String("tool", ev.Name), zap.Error(err))
		failed, _ := json.Marshal(map[string]string{"error": err.Error()})
		output = string(failed)
	}

	if err := b.sess.SendFunctionResult(ev.CallID, output); err != nil {
		b.fail("tool result delivery", err)
	}
}
