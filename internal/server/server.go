// Package server exposes the markdex service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/markdex/markdex/internal/document"
	"github.com/markdex/markdex/internal/faults"
	"github.com/markdex/markdex/internal/revision"
	"github.com/markdex/markdex/internal/search"
	"github.com/markdex/markdex/internal/telemetry"
)

// Backend is the service surface the HTTP layer needs.
type Backend interface {
	Search(ctx context.Context, c search.Cursor) (*search.Result, error)
	Get(ctx context.Context, key string) (*document.Document, error)
	GetMany(ctx context.Context, keys []string) []*document.Document
	ListKeys(prefix, afterKey string, limit int) []string
	SyncAsync()
	ViewGeneration() uint64
	LastSynced() revision.ID
}

// Server is the HTTP front of a markdex instance.
type Server struct {
	echo    *echo.Echo
	backend Backend
	cache   *SearchCache
	logger  *slog.Logger
}

// searchRequest is the body of POST /api/search. A non-empty cursor
// token overrides the other fields.
type searchRequest struct {
	Prefix  string `json:"prefix"`
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
	Cursor  string `json:"cursor"`
}

type keysResponse struct {
	Keys []string `json:"keys"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Generation uint64 `json:"generation"`
	Revision   string `json:"revision,omitempty"`
}

// New builds the server with routes and middleware registered. cache
// may be nil to disable response caching.
func New(backend Backend, cache *SearchCache, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		backend: backend,
		cache:   cache,
		logger:  logger.With("component", "server"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api")
	api.GET("/documents", s.handleListKeys)
	api.GET("/documents/*", s.handleGetDocument)
	api.POST("/documents/batch", s.handleGetBatch)
	api.GET("/search", s.handleSearchGet)
	api.POST("/search", s.handleSearchPost)
	api.POST("/sync", s.handleSync)

	return s
}

// Start blocks serving HTTP on addr until Shutdown.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		s.logger.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", c.Response().Status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		)
		return nil
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:     "ok",
		Generation: s.backend.ViewGeneration(),
		Revision:   string(s.backend.LastSynced()),
	})
}

func (s *Server) handleGetDocument(c echo.Context) error {
	key := c.Param("*")
	doc, err := s.backend.Get(c.Request().Context(), key)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleGetBatch(c echo.Context) error {
	var body struct {
		Keys []string `json:"keys"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	docs := s.backend.GetMany(c.Request().Context(), body.Keys)
	return c.JSON(http.StatusOK, map[string]any{"items": docs})
}

func (s *Server) handleListKeys(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = n
	}
	keys := s.backend.ListKeys(c.QueryParam("prefix"), c.QueryParam("after"), limit)
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(http.StatusOK, keysResponse{Keys: keys})
}

func (s *Server) handleSearchGet(c echo.Context) error {
	count := 0
	if raw := c.QueryParam("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "count must be an integer")
		}
		count = n
	}
	return s.search(c, searchRequest{
		Prefix:  c.QueryParam("prefix"),
		Keyword: c.QueryParam("keyword"),
		Count:   count,
		Cursor:  c.QueryParam("cursor"),
	})
}

func (s *Server) handleSearchPost(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	return s.search(c, req)
}

func (s *Server) search(c echo.Context, req searchRequest) error {
	cursor := search.Cursor{
		Prefix:  req.Prefix,
		Keyword: req.Keyword,
		Count:   req.Count,
	}
	if req.Cursor != "" {
		decoded, err := search.DecodeCursor(req.Cursor)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
		}
		cursor = decoded
	}

	ctx := c.Request().Context()

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.Key(cursor, s.backend.ViewGeneration())
		if payload, ok := s.cache.Get(ctx, cacheKey); ok {
			return c.JSONBlob(http.StatusOK, payload)
		}
	}

	result, err := s.backend.Search(ctx, cursor)
	if err != nil {
		return httpError(err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			s.cache.Set(ctx, cacheKey, payload)
		}
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleSync(c echo.Context) error {
	s.backend.SyncAsync()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// httpError maps domain failures to HTTP statuses.
func httpError(err error) error {
	switch {
	case faults.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case faults.IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	case faults.IsUnreachable(err):
		return echo.NewHTTPError(http.StatusBadGateway, "upstream unreachable")
	case errors.Is(err, search.ErrInvalidCursor):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
