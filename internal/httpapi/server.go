// Package httpapi exposes the notification queue over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmylchreest/bigsnackbar/internal/config"
	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

const shutdownTimeout = 5 * time.Second

// Queue is the part of snackbar.Queue the API drives.
type Queue interface {
	Submit(req snackbar.Request) (string, error)
	Close() bool
	CloseAll() int
	State() snackbar.State
	Current() (snackbar.Request, bool)
	Len() int
}

// Options configures a Server.
type Options struct {
	// JWTSecret enables HS256 bearer authentication on /api/v1 when set.
	JWTSecret string
	Logger    *slog.Logger
	// Callbacks delivers action callbacks. Nil uses a default client.
	Callbacks *CallbackClient
}

// Server is the HTTP ingestion API.
type Server struct {
	router    *gin.Engine
	queue     Queue
	logger    *slog.Logger
	callbacks *CallbackClient
}

// NewServer builds the router for q.
func NewServer(q Queue, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	callbacks := opts.Callbacks
	if callbacks == nil {
		callbacks = NewCallbackClient(logger)
	}

	router := gin.New()
	router.Use(Recovery(logger))
	router.Use(RequestLogger(logger))

	s := &Server{
		router:    router,
		queue:     q,
		logger:    logger,
		callbacks: callbacks,
	}
	s.setupRoutes(opts.JWTSecret)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	s.callbacks.Wait()
	return nil
}

func (s *Server) setupRoutes(secret string) {
	api := s.router.Group("/api/v1")
	if secret != "" {
		api.Use(JWTAuth(secret))
	}
	{
		notifications := api.Group("/notifications")
		{
			notifications.POST("", s.handleSubmit())
			notifications.POST("/close", s.handleClose())
			notifications.DELETE("", s.handleCloseAll())
		}
		api.GET("/status", s.handleStatus())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

type actionBody struct {
	Label       string `json:"label"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type submitBody struct {
	Message string          `json:"message"`
	Timeout config.Duration `json:"timeout,omitempty"`
	Actions []actionBody    `json:"actions,omitempty"`
}

// notificationResponse describes a queued or displayed request.
type notificationResponse struct {
	ID      string   `json:"id"`
	Message string   `json:"message"`
	Actions []string `json:"actions"`
}

type statusResponse struct {
	State   string                `json:"state"`
	Current *notificationResponse `json:"current"`
	Pending int                   `json:"pending"`
}

func (s *Server) handleSubmit() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body submitBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body: " + err.Error()})
			return
		}

		id, err := snackbar.NewID()
		if err != nil {
			s.logger.Error("failed to generate request id", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate id"})
			return
		}

		req := snackbar.Request{
			ID:      id,
			Message: body.Message,
			Timeout: body.Timeout.Duration(),
		}
		for _, a := range body.Actions {
			if a.CallbackURL != "" {
				if err := validateCallbackURL(a.CallbackURL); err != nil {
					c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
					return
				}
			}
			req.Actions = append(req.Actions, snackbar.Action{
				Label:   a.Label,
				Handler: s.callbackHandler(id, a),
			})
		}

		if _, err := s.queue.Submit(req); err != nil {
			if errors.Is(err, snackbar.ErrInvalidRequest) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			s.logger.Error("failed to submit notification", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit notification"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"id": id})
	}
}

func (s *Server) callbackHandler(id string, a actionBody) func() {
	if a.CallbackURL == "" {
		return func() {}
	}
	return func() {
		s.callbacks.Send(a.CallbackURL, CallbackPayload{ID: id, Label: a.Label})
	}
}

func (s *Server) handleClose() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"closed": s.queue.Close()})
	}
}

func (s *Server) handleCloseAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"dropped": s.queue.CloseAll()})
	}
}

func (s *Server) handleStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := statusResponse{
			State:   s.queue.State().String(),
			Pending: s.queue.Len(),
		}
		if cur, ok := s.queue.Current(); ok {
			resp.Current = &notificationResponse{
				ID:      cur.ID,
				Message: cur.Message,
				Actions: cur.Labels(),
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func validateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid callback_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid callback_url %q: must be an absolute http(s) URL", raw)
	}
	return nil
}
