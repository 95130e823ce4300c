// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package devserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Request Types
// =============================================================================

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type chatRequest struct {
	Question *string `json:"question"`
}

type feedbackRequest struct {
	TraceID string `json:"trace_id" binding:"required"`
	Value   int    `json:"value" binding:"required,oneof=1 -1"`
}

// NoMatchAnswer is streamed when no document matches the question.
const NoMatchAnswer = "I could not find anything about that in the documents."

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleVerifyCredentials checks the one configured credential pair and
// issues a signed token.
func (s *Server) handleVerifyCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"authenticated": false})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Password)) == 1
	if !userOK || !passOK {
		s.metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn("credentials rejected", "request_id", requestID(c))
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}

	token, err := issueToken(s.secret, req.Username, s.cfg.TokenTTL, time.Now())
	if err != nil {
		s.logger.Error("sign token", "request_id", requestID(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"authenticated": false})
		return
	}
	s.metrics.LoginsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "token": token})
}

// handleFeedback records one vote per trace.
func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trace_id and value (1 or -1) are required"})
		return
	}

	switch err := s.recordVote(req.TraceID, req.Value); {
	case errors.Is(err, errUnknownTrace):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, errAlreadyVoted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	label := "up"
	if req.Value < 0 {
		label = "down"
	}
	s.metrics.VotesTotal.WithLabelValues(label).Inc()
	s.logger.Info("feedback recorded",
		"request_id", requestID(c),
		"trace_id", req.TraceID,
		"value", req.Value,
		"user", authUser(c),
	)
	c.JSON(http.StatusOK, gin.H{"status": "recorded", "trace_id": req.TraceID})
}

// handleChat streams an answer as server-sent events.
//
// Event order:
//
//	[SESSION_ID], one [SOURCE] per match (loading), answer tokens,
//	one [ENRICH] per match (enhanced, or error without text), [TRACE_ID], [DONE]
//
// A blank question gets [SESSION_ID] then [ERROR].
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Missing question from request JSON"})
		return
	}
	question := strings.TrimSpace(*req.Question)

	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	w := &eventWriter{c: c}
	outcome := s.stream(c.Request.Context(), w, sessionID, question)
	s.metrics.StreamsTotal.WithLabelValues(outcome).Inc()
	s.logger.Info("chat stream finished",
		"request_id", requestID(c),
		"session_id", sessionID,
		"trace_id", trace.SpanContextFromContext(c.Request.Context()).TraceID().String(),
		"outcome", outcome,
	)
}

// traceIDFrom returns the request span's trace id, or a fresh uuid when the
// request carries no span.
func traceIDFrom(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

// stream writes one exchange and returns its outcome label.
func (s *Server) stream(ctx context.Context, w *eventWriter, sessionID, question string) string {
	w.write(ux.StreamEvent{Type: ux.StreamEventSessionID, Content: sessionID})

	if question == "" {
		w.write(ux.StreamEvent{Type: ux.StreamEventError, Content: "question is empty"})
		return "error"
	}

	matches := Search(s.cfg.Corpus, s.condense(sessionID, question), s.cfg.ResultSize)
	for _, m := range matches {
		w.write(ux.StreamEvent{Type: ux.StreamEventSource, Payload: sourcePayload(m)})
	}
	if len(matches) == 0 {
		w.write(ux.StreamEvent{Type: ux.StreamEventStatus, Content: "No matching documents"})
	}

	for _, tok := range Tokenize(ComposeAnswer(question, matches)) {
		if s.cfg.TokenDelay > 0 {
			select {
			case <-ctx.Done():
				return "cancelled"
			case <-time.After(s.cfg.TokenDelay):
			}
		}
		if ctx.Err() != nil {
			return "cancelled"
		}
		// the stream can get messed up with newlines
		w.write(ux.StreamEvent{Type: ux.StreamEventToken, Content: strings.ReplaceAll(tok, "\n", " ")})
		s.metrics.TokensTotal.Inc()
	}

	for _, m := range matches {
		payload, result := enrichPayload(m)
		w.write(ux.StreamEvent{Type: ux.StreamEventEnrich, Payload: payload})
		s.metrics.SourcesTotal.WithLabelValues(result).Inc()
	}

	traceID := traceIDFrom(ctx)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("askdesk.session_id", sessionID),
		attribute.Int("askdesk.sources", len(matches)),
	)
	s.registerTrace(traceID)
	w.write(ux.StreamEvent{Type: ux.StreamEventTraceID, Content: traceID})
	w.write(ux.StreamEvent{Type: ux.StreamEventDone})

	if w.err != nil {
		return "cancelled"
	}
	s.remember(sessionID, question)
	if len(matches) == 0 {
		return "empty"
	}
	return "done"
}

// =============================================================================
// Payloads
// =============================================================================

func sourcePayload(m Match) []byte {
	p := map[string]any{
		"name":       m.Doc.Name,
		"icon":       m.Doc.Icon,
		"confidence": m.Confidence,
		"loading":    true,
	}
	if m.Doc.URL != "" {
		p["url"] = m.Doc.URL
	}
	if !m.Doc.UpdatedAt.IsZero() {
		p["updated_at"] = m.Doc.UpdatedAt.Format(time.RFC3339)
	}
	b, _ := json.Marshal(p)
	return b
}

// enrichPayload finishes a source: its sentences as the summary, or an error
// when the document has no text.
func enrichPayload(m Match) ([]byte, string) {
	p := map[string]any{"name": m.Doc.Name, "loading": false}
	result := "enhanced"
	if sentences := Sentences(m.Doc.Body); len(sentences) > 0 {
		p["enhanced"] = true
		p["summary"] = sentences
	} else {
		p["error"] = "no extractable text"
		result = "error"
	}
	b, _ := json.Marshal(p)
	return b, result
}

// =============================================================================
// Answer assembly
// =============================================================================

var tokenRE = regexp.MustCompile(`\s*\S+`)

// Tokenize splits text into word tokens that carry their leading whitespace,
// so concatenating the tokens restores the text.
func Tokenize(text string) []string {
	return tokenRE.FindAllString(text, -1)
}

// ComposeAnswer picks, per matched document, the sentence sharing the most
// terms with the question. Paragraphs are separated by two spaces.
func ComposeAnswer(question string, matches []Match) string {
	q := map[string]bool{}
	for _, t := range terms(question) {
		q[t] = true
	}

	var parts []string
	for _, m := range matches {
		best, bestHits := "", 0
		for _, sentence := range Sentences(m.Doc.Body) {
			hits := 0
			for _, t := range terms(sentence) {
				if q[t] {
					hits++
				}
			}
			if hits > bestHits {
				best, bestHits = sentence, hits
			}
		}
		if best != "" {
			parts = append(parts, "According to "+m.Doc.Name+": "+best)
		}
	}
	if len(parts) == 0 {
		return NoMatchAnswer
	}
	return strings.Join(parts, "  ")
}

// =============================================================================
// Event writer
// =============================================================================

// eventWriter writes events and flushes after each. After the first write
// error every later write is a no-op.
type eventWriter struct {
	c   *gin.Context
	err error
}

func (w *eventWriter) write(e ux.StreamEvent) {
	if w.err != nil {
		return
	}
	if err := ux.EncodeEvent(w.c.Writer, e); err != nil {
		w.err = err
		return
	}
	w.c.Writer.Flush()
}
