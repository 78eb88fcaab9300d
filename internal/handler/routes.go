package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bookline-ai/voice-scheduler-service/internal/agent"
	"github.com/bookline-ai/voice-scheduler-service/internal/auth"
	"github.com/bookline-ai/voice-scheduler-service/internal/bridge"
	"github.com/bookline-ai/voice-scheduler-service/internal/config"
	"github.com/bookline-ai/voice-scheduler-service/internal/repository"
	"github.com/bookline-ai/voice-scheduler-service/internal/routing"
	"github.com/bookline-ai/voice-scheduler-service/internal/session"
	"github.com/bookline-ai/voice-scheduler-service/internal/tool"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/bookline-ai/voice-scheduler-service/pkg/redis"
	"github.com/bookline-ai/voice-scheduler-service/pkg/twilio"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const managementTokenTTL = 30 * 24 * time.Hour

// HandlerManager wires the service's handlers and their shared dependencies.
type HandlerManager struct {
	cfg         *config.Config
	repoManager repository.RepositoryManager
	registry    *bridge.Registry
	monitor     *session.Monitor

	voiceHandler       *VoiceHandler
	mediaHandler       *MediaHandler
	tenantHandler      *TenantHandler
	appointmentHandler *AppointmentHandler
	validateHandler    *TwilioValidateHandler
}

// NewHandlerManager creates and initializes all handlers and services
func NewHandlerManager(cfg *config.Config) (*HandlerManager, error) {
	repoManager, err := repository.NewRepositoryManager(cfg.DatabaseURL)
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Redis is optional: without it the session monitor is inert and the
	// service runs single-instance.
	var redisSvc redis.RedisServiceInterface
	if cfg.RedisHost != "" {
		svc, err := redis.NewRedisService(&redis.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err != nil {
			logger.Base().Warn("failed to initialize redis, running without session monitor", zap.Error(err))
		} else {
			redisSvc = svc
		}
	}
	monitor := session.NewMonitor(redisSvc, cfg.InstanceID)
	if err := monitor.Watch(context.Background(), func(event session.Event) {
		logger.Base().Info("session event",
			zap.String("kind", event.Kind),
			zap.String("tenant_id", event.TenantID),
			zap.String("call_id", event.CallID),
			zap.String("instance_id", event.InstanceID))
	}); err != nil {
		logger.Base().Warn("session event watch failed", zap.Error(err))
	}

	resolver := routing.NewResolver(repoManager.Tenant())
	recorder := tool.NewAppointmentRecorder(repoManager.Appointment())
	agents := agent.NewFactory(recorder)
	registry := bridge.NewRegistry()
	tokens := auth.NewManager(cfg.JWTSecret, managementTokenTTL)

	hm := &HandlerManager{
		cfg:         cfg,
		repoManager: repoManager,
		registry:    registry,
		monitor:     monitor,

		voiceHandler:       NewVoiceHandler(cfg, resolver, repoManager.Call()),
		mediaHandler:       NewMediaHandler(cfg, agents, repoManager.Call(), registry, monitor),
		tenantHandler:      NewTenantHandler(repoManager.Tenant(), tokens),
		appointmentHandler: NewAppointmentHandler(repoManager.Appointment(), tokens),
		validateHandler:    NewTwilioValidateHandler(cfg, twilio.NewCredentialValidator()),
	}
	return hm, nil
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	if hm.cfg.EnableCORS {
		router.Use(CORSMiddleware)
	}
	router.Use(LoggingMiddleware)

	// Provider-facing endpoints
	router.HandleFunc("/voice", hm.voiceHandler.HandleInboundCall).Methods("POST")
	router.HandleFunc("/media", hm.mediaHandler.HandleMediaStream)
	router.HandleFunc("/media/{tenantId}/{callId}", hm.mediaHandler.HandleMediaStream)

	// Management API
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/tenants", hm.tenantHandler.CreateTenant).Methods("POST")
	apiRouter.HandleFunc("/tenants/{id}", hm.tenantHandler.GetTenant).Methods("GET")
	apiRouter.HandleFunc("/appointments/{id}", hm.appointmentHandler.GetAppointment).Methods("GET")
	apiRouter.HandleFunc("/calls/{callSid}/appointments", hm.appointmentHandler.ListCallAppointments).Methods("GET")
	apiRouter.HandleFunc("/twilio/validate", hm.validateHandler.Validate).Methods("POST")
	apiRouter.HandleFunc("/sessions", hm.handleActiveSessions).Methods("GET")

	router.HandleFunc("/health", hm.handleHealth).Methods("GET")
}

// handleHealth reports process liveness and database reachability.
func (hm *HandlerManager) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":         "ok",
		"instance_id":    hm.cfg.InstanceID,
		"active_bridges": hm.registry.Count(),
	}
	code := http.StatusOK
	if err := hm.repoManager.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// handleActiveSessions lists live call sessions across instances.
func (hm *HandlerManager) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	records, err := hm.monitor.Active(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"local_bridges": hm.registry.Snapshot(),
		"sessions":      records,
	})
}

// Close releases long-lived resources held by the handlers.
func (hm *HandlerManager) Close() error {
	return hm.repoManager.Close()
}
