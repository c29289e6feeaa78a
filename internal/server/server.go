// Package server exposes batch translation over HTTP for headless use.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// BatchRunner is the part of the orchestrator the server drives.
type BatchRunner interface {
	Run(ctx context.Context, inputs, outputs []string) ([]string, error)
	RunDetailed(ctx context.Context, inputs, outputs []string) (*types.BatchResult, error)
}

// Inspector reports PDF structure for a path.
type Inspector func(path string) (*types.PDFInfo, error)

// TranslateRequest is the body of the translate endpoints.
type TranslateRequest struct {
	PDFPaths    []string `json:"pdf_paths"`
	OutputPaths []string `json:"output_paths"`
}

type inspectRequest struct {
	Path string `json:"path" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Server wires HTTP routes to a BatchRunner.
type Server struct {
	runner  BatchRunner
	inspect Inspector
	engine  *gin.Engine
	srv     *http.Server
}

// New builds the router. inspect may be nil, in which case /api/inspect is not registered.
func New(runner BatchRunner, inspect Inspector) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{runner: runner, inspect: inspect, engine: engine}

	api := engine.Group("/api")
	{
		api.GET("/health", s.health)
		api.POST("/translate", s.translate)
		api.POST("/translate/detailed", s.translateDetailed)
		if inspect != nil {
			api.POST("/inspect", s.inspectPDF)
		}
	}
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.String("addr", addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("HTTP server shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: string(types.ErrValidation)})
		return
	}

	outputs, err := s.runner.Run(c.Request.Context(), req.PDFPaths, req.OutputPaths)
	if err != nil {
		c.JSON(statusFor(err), errorResponse{Error: err.Error(), Code: string(types.CodeOf(err))})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outputs": outputs})
}

func (s *Server) translateDetailed(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: string(types.ErrValidation)})
		return
	}

	batch, err := s.runner.RunDetailed(c.Request.Context(), req.PDFPaths, req.OutputPaths)
	if err != nil {
		c.JSON(statusFor(err), errorResponse{Error: err.Error(), Code: string(types.CodeOf(err))})
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) inspectPDF(c *gin.Context) {
	var req inspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: string(types.ErrValidation)})
		return
	}

	info, err := s.inspect(req.Path)
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// statusFor maps a batch error to an HTTP status: bad input lists are the
// caller's fault, everything else is a job that could not be processed.
func statusFor(err error) int {
	if types.CodeOf(err) == types.ErrValidation {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Int64("latencyMs", time.Since(start).Milliseconds()))
	}
}
