// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package devserver is a local stand-in for the askdesk question-answering
// service.
//
// # Description
//
// It serves the three endpoints the client talks to (credential check, chat
// stream, feedback) against a small fixture corpus, so the CLI can be run
// and tested without the real backend. Answers are assembled from the
// matched documents' own sentences; nothing is generated.
//
// # Endpoints
//
//	POST /api/verify-credentials  {username, password} -> {authenticated, token}
//	POST /api/chat?session_id=    {question} -> text/event-stream
//	POST /api/feedback            {trace_id, value}, bearer token required
//	GET  /health
//	GET  /metrics
package devserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// ServiceName names the server in spans and logs.
	ServiceName = "devserver"

	// DefaultTokenTTL is how long an issued token stays valid.
	DefaultTokenTTL = 24 * time.Hour

	// maxSessions bounds the remembered chat histories.
	maxSessions = 1024
)

// Config configures a Server.
//
// # Fields
//
//   - Username, Password: Required. The one accepted credential pair.
//   - SecretKey: Required. HS256 signing key for issued tokens.
//   - TokenTTL: Optional. Default: DefaultTokenTTL.
//   - TokenDelay: Optional. Pause between streamed answer tokens.
//   - ResultSize: Optional. Sources cited per answer. Default: 3.
//   - Corpus: Optional. Default: DefaultCorpus().
//   - Logger: Optional. Default: slog.Default().
//   - Registry: Optional. Default: a fresh registry per Server.
//   - TracerProvider: Optional. Starts one span per request; the chat
//     stream's trace id is that span's. Default: an SDK provider with no
//     exporter.
type Config struct {
	Username   string        `validate:"required"`
	Password   string        `validate:"required"`
	SecretKey  string        `validate:"required"`
	TokenTTL   time.Duration `validate:"gte=0"`
	TokenDelay time.Duration `validate:"gte=0"`
	ResultSize int           `validate:"gte=0"`
	Corpus     []Document
	Logger     *slog.Logger
	Registry   *prometheus.Registry

	TracerProvider trace.TracerProvider
}

// ConfigFromEnv reads AUTH_USERNAME, AUTH_PASSWORD and SECRET_KEY.
func ConfigFromEnv() Config {
	return Config{
		Username:  os.Getenv("AUTH_USERNAME"),
		Password:  os.Getenv("AUTH_PASSWORD"),
		SecretKey: os.Getenv("SECRET_KEY"),
	}
}

func (c Config) withDefaults() Config {
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.ResultSize == 0 {
		c.ResultSize = DefaultResultSize
	}
	if c.Corpus == nil {
		c.Corpus = DefaultCorpus()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	if c.TracerProvider == nil {
		c.TracerProvider = sdktrace.NewTracerProvider()
	}
	return c
}

// =============================================================================
// Server
// =============================================================================

// Server is the dev stand-in. Safe for concurrent use.
type Server struct {
	cfg     Config
	secret  []byte
	logger  *slog.Logger
	metrics *Metrics
	router  *gin.Engine

	mu      sync.Mutex
	history map[string][]string // session id -> earlier questions
	votes   map[string]int      // trace id -> vote, 0 while unvoted
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("devserver config: %s is %s", verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("devserver config: %w", err)
	}
	cfg = cfg.withDefaults()

	s := &Server{
		cfg:     cfg,
		secret:  []byte(cfg.SecretKey),
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
		history: make(map[string][]string),
		votes:   make(map[string]int),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics exposes the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(ServiceName, otelgin.WithTracerProvider(s.cfg.TracerProvider)),
		RequestContext(s.logger, s.metrics),
	)

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.POST("/verify-credentials", s.handleVerifyCredentials)
		api.POST("/chat", s.handleChat)
		api.POST("/feedback", BearerAuth(s.secret), s.handleFeedback)
	}
	return router
}

// =============================================================================
// Session and trace state
// =============================================================================

// condense returns the retrieval query for question: the session's previous
// question followed by this one, so follow-ups keep their topic.
func (s *Server) condense(sessionID, question string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior := s.history[sessionID]
	if len(prior) == 0 {
		return question
	}
	return prior[len(prior)-1] + " " + question
}

func (s *Server) remember(sessionID, question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[sessionID]; !ok && len(s.history) >= maxSessions {
		s.history = make(map[string][]string)
	}
	s.history[sessionID] = append(s.history[sessionID], question)
}

func (s *Server) registerTrace(traceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[traceID] = 0
}

var (
	errUnknownTrace = errors.New("unknown trace_id")
	errAlreadyVoted = errors.New("trace already voted")
)

func (s *Server) recordVote(traceID string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[traceID]
	switch {
	case !ok:
		return errUnknownTrace
	case v != 0:
		return errAlreadyVoted
	}
	s.votes[traceID] = value
	return nil
}

// Vote returns the recorded vote for traceID (0 when none).
func (s *Server) Vote(traceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votes[traceID]
}
