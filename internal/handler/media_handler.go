package handler

import (
	"errors"
	"net/http"

	"github.com/bookline-ai/voice-scheduler-service/internal/agent"
	"github.com/bookline-ai/voice-scheduler-service/internal/bridge"
	"github.com/bookline-ai/voice-scheduler-service/internal/config"
	"github.com/bookline-ai/voice-scheduler-service/internal/realtime"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/internal/transport"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MediaHandler upgrades provider media stream connections and runs one bridge
// per call.
type MediaHandler struct {
	cfg      *config.Config
	agents   *agent.Factory
	calls    repository.CallRepository
	registry *bridge.Registry
	monitor  bridge.SessionMonitor

	upgrader websocket.Upgrader

	// dial is swappable for tests.
	dial func(r *http.Request, keys bridge.SessionKeys, def *agent.Definition) (*realtime.Session, error)
}

// NewMediaHandler creates a new media stream handler
func NewMediaHandler(cfg *config.Config, agents *agent.Factory, calls repository.CallRepository, registry *bridge.Registry, monitor bridge.SessionMonitor) *MediaHandler {
	h := &MediaHandler{
		cfg:      cfg,
		agents:   agents,
		calls:    calls,
		registry: registry,
		monitor:  monitor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The provider's media stream client sends no Origin we can pin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	h.dial = func(r *http.Request, keys bridge.SessionKeys, def *agent.Definition) (*realtime.Session, error) {
		return realtime.Dial(r.Context(), realtime.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.RealtimeModel,
			Voice:   cfg.RealtimeVoice,
		}, realtime.SessionParams{
			Instructions: def.Instructions,
			Tools:        def.Tools.Definitions(),
		})
	}
	return h
}

// HandleMediaStream is the attach endpoint. Identity problems are rejected
// before the upgrade where possible; failures after the upgrade close the
// socket, since the provider ignores HTTP status on an upgraded connection.
func (h *MediaHandler) HandleMediaStream(w http.ResponseWriter, r *http.Request) {
	keys, err := bridge.ExtractSessionKeys(r)
	if err != nil {
		logger.Base().Warn("media attach rejected", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Informational hints from the webhook-built stream URL. The webhook
	// already recorded the authoritative plan on the call record; these are
	// for logging only.
	plan := r.URL.Query().Get("plan")
	logger.Base().Info("media attach",
		zap.String("call_id", keys.CallID),
		zap.String("tenant_id", keys.TenantID),
		zap.String("plan", plan),
		zap.String("to", r.URL.Query().Get("to")))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Base().Error("media upgrade failed", zap.Error(err))
		return
	}
	sock := transport.NewSocket(conn)

	def := h.agents.Build(keys.TenantID, keys.CallID)

	sess, err := h.dial(r, keys, def)
	if err != nil {
		if errors.Is(err, realtime.ErrCredentialMissing) {
			logger.Base().Error("realtime credentials not configured")
		} else {
			logger.Base().Error("realtime session establish failed",
				zap.String("call_id", keys.CallID), zap.Error(err))
		}
		_ = sock.Close()
		return
	}

	b := bridge.New(keys, plan, def, sock, sess, h.calls, h.registry, h.monitor, logger.Base())
	if err := b.Run(r.Context()); err != nil {
		logger.Base().Warn("bridge ended with error", zap.String("call_id", keys.CallID), zap.Error(err))
	}
}
