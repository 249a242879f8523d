// Package webui serves a JSON API over one editor. All editor calls go
// through a single mutex; the editor itself is not safe for concurrent use.
package webui

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"datasync/internal/config"
	"datasync/internal/editor"
	"datasync/internal/mapping"
)

// Server owns the editor while serving.
type Server struct {
	mu     sync.Mutex
	ed     *editor.Editor
	engine *gin.Engine

	// OnChange, when set, is called under the lock after every request that
	// changed something, e.g. to persist the control file.
	OnChange func(ctx context.Context, ed *editor.Editor) error
}

// New builds the router.
func New(ed *editor.Editor) *Server {
	s := &Server{ed: ed}

	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	v1 := r.Group("/api/v1")
	{
		v1.GET("/mapping", s.getMapping)
		v1.POST("/mapping/bind", s.bind)
		v1.POST("/mapping/ignore", s.ignore)
		v1.POST("/mapping/rematch", s.rematch)

		fields := v1.Group("/fields/:field")
		{
			fields.POST("/ignore", s.ignoreField)
			fields.PUT("/synthetic", s.setSynthetic)
			fields.DELETE("/synthetic", s.removeSynthetic)
		}

		v1.PUT("/options", s.setOptions)
		v1.GET("/controlfile", s.getControlFile)
		v1.GET("/validate", s.validate)
	}
	s.engine = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("webui: listening addr=%s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("webui: method=%s path=%s status=%d took=%s",
			c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// mutate runs fn under the lock and writes the standard mutation response.
func (s *Server) mutate(c *gin.Context, fn func(ctx context.Context) ([]mapping.Event, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := c.Request.Context()
	evs, err := fn(ctx)
	if len(evs) > 0 && s.OnChange != nil {
		if err := s.OnChange(ctx, s.ed); err != nil {
			log.Printf("webui: on change: %v", err)
		}
	}
	if err != nil {
		respondWithEditError(c, err, evs)
		return
	}
	if evs == nil {
		evs = []mapping.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) getMapping(c *gin.Context) {
	samples := 3
	if v := c.Query("samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondWithError(c, http.StatusBadRequest, CodeValidation, "samples must be a non-negative integer", gin.H{"samples": v})
			return
		}
		samples = n
	}
	s.mu.Lock()
	snap := s.ed.Snapshot(samples)
	s.mu.Unlock()
	c.JSON(http.StatusOK, snap)
}

type bindRequest struct {
	Field    string `json:"field" binding:"required"`
	Position *int   `json:"position" binding:"required"`
}

func (s *Server) bind(c *gin.Context) {
	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, CodeValidation, "invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	s.mutate(c, func(ctx context.Context) ([]mapping.Event, error) {
		return s.ed.Bind(ctx, req.Field, *req.Position)
	})
}

type ignoreRequest struct {
	Position *int `json:"position" binding:"required"`
}

func (s *Server) ignore(c *gin.Context) {
	var req ignoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, CodeValidation, "invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	s.mutate(c, func(ctx context.Context) ([]mapping.Event, error) {
		return s.ed.Ignore(ctx, *req.Position)
	})
}

func (s *Server) rematch(c *gin.Context) {
	s.mutate(c, s.ed.Rematch)
}

func (s *Server) ignoreField(c *gin.Context) {
	field := c.Param("field")
	s.mutate(c, func(ctx context.Context) ([]mapping.Event, error) {
		return s.ed.IgnoreField(ctx, field)
	})
}

func (s *Server) setSynthetic(c *gin.Context) {
	var d mapping.Derivation
	if err := c.ShouldBindJSON(&d); err != nil {
		respondWithError(c, http.StatusBadRequest, CodeValidation, "invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	field := c.Param("field")
	switch d.Kind {
	case mapping.DerivationLocation:
		s.mutate(c, func(ctx context.Context) ([]mapping.Event, error) {
			return s.ed.SetSyntheticLocation(ctx, field, d)
		})
	case mapping.DerivationPoint:
		s.mutate(c, func(ctx context.Context) ([]mapping.Event, error) {
			return s.ed.SetSyntheticPoint(ctx, field, d)
		})
	default:
		respondWithError(c, http.StatusBadRequest, CodeValidation, "kind must be location or point", gin.H{"kind": d.Kind})
	}
}

func (s *Server) removeSynthetic(c *gin.Context) {
	field := c.Param("field")
	s.mutate(c, func(ctx context.Context) ([]mapping.Event, error) {
		return s.ed.RemoveSynthetic(ctx, field)
	})
}

func (s *Server) getControlFile(c *gin.Context) {
	s.mu.Lock()
	cf := s.ed.ControlFile()
	s.mu.Unlock()
	c.JSON(http.StatusOK, cf)
}

func (s *Server) validate(c *gin.Context) {
	s.mu.Lock()
	issues := s.ed.Validate()
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"ok": !config.HasErrors(issues), "issues": issues})
}
