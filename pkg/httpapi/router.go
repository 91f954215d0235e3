// Package httpapi is a thin transport wrapper around *sakura.Sakura: gin
// handlers, go-playground/validator struct-tag binding, and a translated
// APIError envelope. The facade's Go API is the actual contract; this
// package exists for embedding applications that want it over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sakura-lang/sakura/internal/logging"
	"github.com/sakura-lang/sakura/pkg/sakura"
)

// Server wraps a gin engine bound to a Sakura facade.
type Server struct {
	sakura *sakura.Sakura
	logger *logging.Logger
	engine *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGinMode sets gin's global mode (gin.ReleaseMode/DebugMode/TestMode)
// before the engine is built.
func WithGinMode(mode string) Option {
	return func(s *Server) { gin.SetMode(mode) }
}

// New builds a Server exposing sk over HTTP.
func New(sk *sakura.Sakura, opts ...Option) *Server {
	s := &Server{sakura: sk}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(s.recovery(), s.logging())
	s.engine = engine
	s.registerRoutes()
	return s
}

// Engine exposes the underlying *gin.Engine, e.g. for http.ListenAndServe.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.POST("/trees", s.handleAddTree)
	s.engine.POST("/trees/:id/trigger", s.handleTriggerTree)
	s.engine.POST("/run", s.handleRun)
	s.engine.GET("/templates/:id", s.handleGetTemplate)
	s.engine.GET("/files/:id", s.handleGetFile)
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if s.logger != nil {
					s.logger.Error("panic recovered in httpapi handler", "error", r, "path", c.Request.URL.Path)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newAPIError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}

func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if s.logger != nil {
			s.logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
		}
	}
}

func respondError(c *gin.Context, err error) {
	apiErr := translateError(err)
	c.JSON(apiErr.HTTPStatus, apiErr)
}

// handleAddTree handles POST /trees: register a tree built from its JSON
// AST representation with the garden.
func (s *Server) handleAddTree(c *gin.Context) {
	var req treeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, newAPIError("INVALID_JSON", err.Error(), http.StatusBadRequest))
		return
	}

	tree, err := req.toTree()
	if err != nil {
		respondError(c, newAPIError("INVALID_TREE", err.Error(), http.StatusBadRequest))
		return
	}

	if err := s.sakura.AddTree(tree); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": tree.ID})
}

// runRequest is shared by POST /run and POST /trees/:id/trigger.
type runRequest struct {
	TreeID string                 `json:"tree_id,omitempty"`
	Inputs map[string]interface{} `json:"inputs,omitempty"`
}

// handleRun handles POST /run: synchronous execution, returns the
// completed Execution envelope.
func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, newAPIError("INVALID_JSON", err.Error(), http.StatusBadRequest))
		return
	}
	if req.TreeID == "" {
		respondError(c, newAPIError("MISSING_PARAMETER", "tree_id is required", http.StatusBadRequest))
		return
	}

	inputs, err := inputsFromJSON(req.Inputs)
	if err != nil {
		respondError(c, newAPIError("INVALID_INPUT", err.Error(), http.StatusBadRequest))
		return
	}

	exec, err := s.sakura.RunTree(c.Request.Context(), req.TreeID, inputs)
	if err != nil && exec == nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, executionResponse(exec))
}

// handleTriggerTree handles POST /trees/:id/trigger: fire-and-forget
// execution, returns the execution ID immediately.
func (s *Server) handleTriggerTree(c *gin.Context) {
	treeID := c.Param("id")

	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, newAPIError("INVALID_JSON", err.Error(), http.StatusBadRequest))
			return
		}
	}

	inputs, err := inputsFromJSON(req.Inputs)
	if err != nil {
		respondError(c, newAPIError("INVALID_INPUT", err.Error(), http.StatusBadRequest))
		return
	}

	id, err := s.sakura.TriggerTree(context.WithoutCancel(c.Request.Context()), treeID, inputs, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

// handleGetTemplate handles GET /templates/:id.
func (s *Server) handleGetTemplate(c *gin.Context) {
	id := c.Param("id")
	tree, err := s.sakura.GetTemplate(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": tree.ID, "relative_path": tree.RelativePath})
}

// handleGetFile handles GET /files/:id.
func (s *Server) handleGetFile(c *gin.Context) {
	id := c.Param("id")
	file, err := s.sakura.GetFile(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", file.Content)
}

func executionResponse(exec *sakura.Execution) gin.H {
	if exec == nil {
		return gin.H{}
	}
	return gin.H{
		"id":          exec.ID,
		"tree_id":     exec.TreeID,
		"started_at":  exec.StartedAt,
		"finished_at": exec.FinishedAt,
		"success":     exec.Success,
		"error":       exec.Error,
		"output":      outputsToJSON(exec.Output),
	}
}
