// Package api exposes the HTTP edge: chat-platform event ingress, the
// business webhook endpoint, health reporting, and Prometheus metrics.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
	"github.com/revops-ai/relay/pkg/queue"
)

// IngressStore is the persistence surface the ingress handlers need.
type IngressStore interface {
	EnqueueWorkItem(ctx context.Context, item *models.WorkItem) error
	MarkEventProcessed(ctx context.Context, eventKey string, window time.Duration) (bool, error)
}

// RequestVerifier validates inbound chat-platform request signatures.
type RequestVerifier interface {
	Verify(header http.Header, body []byte) error
}

// ChatClient posts the interim placeholder message at ingress.
type ChatClient interface {
	PostPlaceholder(ctx context.Context, channelID, threadTS string) (string, error)
}

// Server is the HTTP server for all relay endpoints.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	store      IngressStore
	db         *sql.DB
	workerPool *queue.WorkerPool
	verifier   RequestVerifier
	chat       ChatClient
	slackCfg   *config.SlackConfig
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewServer wires the server and registers all routes. workerPool and chat
// may be nil; the corresponding health check and placeholder post are skipped.
func NewServer(store IngressStore, db *sql.DB, workerPool *queue.WorkerPool,
	verifier RequestVerifier, chat ChatClient, slackCfg *config.SlackConfig,
	logger *slog.Logger) *Server {
	s := &Server{
		echo:       echo.New(),
		store:      store,
		db:         db,
		workerPool: workerPool,
		verifier:   verifier,
		chat:       chat,
		slackCfg:   slackCfg,
		logger:     logger.With("component", "api"),
		now:        time.Now,
		newID:      newUUID,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", func(c *echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	s.echo.POST("/slack/events", s.slackEventsHandler)
	s.echo.POST("/api/v1/query", s.webhookQueryHandler)
	s.echo.POST("/api/v1/items/:id/cancel", s.cancelItemHandler)
}

// Start begins serving on addr and blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server, draining in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
