// Package server exposes the office backend over HTTP: snapshots, an SSE
// event stream, event resolution and sprite assets.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agent_office/internal/assets"
	"agent_office/internal/domain"
	sqlitestore "agent_office/internal/store/sqlite"
)

type Store interface {
	Snapshot(ctx context.Context, locale string) (domain.Snapshot, error)
	Version(ctx context.Context) (int64, error)
	ResolveEvent(ctx context.Context, id string) error
}

type Bus interface {
	Register(subscriberID string) <-chan domain.Event
	Unregister(subscriberID string)
}

type Options struct {
	Store  Store
	Bus    Bus
	Assets assets.Fetcher
	// Locale is used when a request does not name one.
	Locale         string
	StreamInterval time.Duration
	Heartbeat      time.Duration
	Logger         *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Locale == "" {
		o.Locale = "en"
	}
	if o.StreamInterval <= 0 {
		o.StreamInterval = time.Second
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = 15 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Assets == nil {
		o.Assets = assets.Embedded()
	}
	return o
}

type handler struct {
	opts Options
}

func NewRouter(opts Options) *gin.Engine {
	opts = opts.withDefaults()
	h := &handler{opts: opts}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Logger))

	router.GET("/healthz", h.health)
	router.GET("/snapshot", h.snapshot)
	router.GET("/events/stream", h.stream)
	router.POST("/events/:id/resolve", h.resolve)
	router.GET("/assets/:key", h.asset)
	return router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, opts Options) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) locale(c *gin.Context) string {
	if l := strings.TrimSpace(c.Query("locale")); l != "" {
		return l
	}
	return h.opts.Locale
}

func (h *handler) snapshot(c *gin.Context) {
	snap, err := h.opts.Store.Snapshot(c.Request.Context(), h.locale(c))
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handler) resolve(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		writeError(c, http.StatusBadRequest, fmt.Errorf("event id is required"))
		return
	}
	if err := h.opts.Store.ResolveEvent(c.Request.Context(), id); err != nil {
		if errors.Is(err, sqlitestore.ErrNotFound) {
			writeError(c, http.StatusNotFound, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved", "id": id})
}

func (h *handler) asset(c *gin.Context) {
	raw, err := h.opts.Assets.Fetch(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, assets.ErrAssetNotFound) {
			writeError(c, http.StatusNotFound, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(raw))
}

func writeError(c *gin.Context, code int, err error) {
	c.JSON(code, gin.H{"error": err.Error()})
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/events/stream" {
			return
		}
		logger.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// subscriberID names a stream subscription on the bus.
func subscriberID() string {
	return "stream-" + uuid.NewString()
}
