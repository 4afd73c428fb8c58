// Package api provides the HTTP ingress for the orchestration engine: a
// minimal gin router exposing the async-ask endpoint and an operational
// health check.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/models"
	"github.com/codeready-toolchain/tarsy-orchestrator/pkg/queue"
)

// JobEnqueuer is the subset of *store.Client the ask handler depends on.
type JobEnqueuer interface {
	EnqueueJob(ctx context.Context, job models.Job) error
}

// PoolHealther reports the worker pool's operational status.
type PoolHealther interface {
	Health() *queue.PoolHealth
}

// Server wraps a gin engine exposing the ingress HTTP contract: POST
// /api/v1/ask enqueues a job and returns 202 immediately; GET /health
// reports liveness plus the worker pool's operational detail.
type Server struct {
	engine     *gin.Engine
	jobs       JobEnqueuer
	pool       PoolHealther
	appName    string
	apiVersion string
}

// NewServer builds a Server and registers its routes.
func NewServer(jobs JobEnqueuer, pool PoolHealther, appName, apiVersion string) *Server {
	s := &Server{
		engine:     gin.Default(),
		jobs:       jobs,
		pool:       pool,
		appName:    appName,
		apiVersion: apiVersion,
	}
	s.setupRoutes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/ask", s.ask)
}

// askRequest is the ingress body for POST /api/v1/ask.
type askRequest struct {
	UserID         string         `json:"user_id" binding:"required"`
	Question       string         `json:"question" binding:"required"`
	SessionID      string         `json:"session_id"`
	TaskID         string         `json:"task_id"`
	WebhookURL     string         `json:"webhook_url"`
	AddressingInfo map[string]any `json:"addressing_info"`
}

// ask handles POST /api/v1/ask: enqueues a job and returns 202 with the
// (possibly generated) task/session IDs. Missing IDs are generated as
// UUIDv4.
func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.New().String()
	}

	job := models.Job{
		TaskID:    taskID,
		UserID:    req.UserID,
		SessionID: sessionID,
		UserInput: req.Question,
		CallbackDetails: models.CallbackDetails{
			WebhookURL:     req.WebhookURL,
			AddressingInfo: req.AddressingInfo,
		},
	}

	if err := s.jobs.EnqueueJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "accepted",
		"task_id":    taskID,
		"session_id": sessionID,
	})
}

// health handles GET /health: the minimal {status, version} liveness
// payload, plus the worker pool's operational detail when a pool is
// wired in.
func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"version": s.apiVersion,
		"app":     s.appName,
	}

	if s.pool != nil {
		health := s.pool.Health()
		resp["worker_pool"] = health
		if !health.IsHealthy {
			resp["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ListenAndServe starts an http.Server on addr wrapping the gin engine,
// with sane read/write timeouts.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return srv.ListenAndServe()
}
