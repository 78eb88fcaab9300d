package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bookline-ai/voice-scheduler-service/internal/config"
	"github.com/bookline-ai/voice-scheduler-service/internal/handler"
	"github.com/bookline-ai/voice-scheduler-service/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Server represents the voice scheduler service
type Server struct {
	config         *config.Config
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

// NewServer creates a new voice scheduler server
func NewServer(cfg *config.Config) *Server {
	router := mux.NewRouter()

	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		logger.Base().Error("Failed to initialize handler manager", zap.Error(err))
		return nil
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}
}

// Start starts the HTTP server. Media stream sockets are hijacked on upgrade
// and are not bound by these timeouts.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Base().Info("Starting server", zap.String("addr", addr))
	return server.ListenAndServe()
}

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("Failed to initialize zap logger, falling back to std log")
	}
	defer logger.Sync()

	cfg := config.LoadConfig()

	server := NewServer(cfg)
	if server == nil {
		logger.Base().Fatal("Failed to create server")
	}

	if err := server.Start(); err != nil {
		logger.Base().Fatal("Server stopped", zap.Error(err))
	}
}
