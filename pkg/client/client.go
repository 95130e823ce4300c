// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package client talks to the three askdesk collaborators: the authentication
// endpoint, the streaming chat endpoint and the feedback endpoint.
//
// # Architecture
//
//	Client → HTTPClient interface → http.Client
//	   ↓
//	resp.Body → ux.StreamReader → ux.SSEParser → ux.StreamCallback
//
// Every call returns one of three outcomes: nil, a *TransportError (no
// response) or a *StatusError (non-2xx response).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/google/uuid"
)

// =============================================================================
// INTERFACES
// =============================================================================

// HTTPClient abstracts HTTP operations for testing.
//
// # Assumptions
//
//   - Caller handles response body closing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token for authenticated calls. An empty
// token sends no Authorization header.
type TokenSource interface {
	Token() string
}

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	DefaultAuthPath     = "/api/verify-credentials"
	DefaultChatPath     = "/api/chat"
	DefaultFeedbackPath = "/api/feedback"
	DefaultTimeout      = 30 * time.Second

	maxErrorBody = 4 << 10
)

// Config holds the collaborator endpoints.
//
// # Fields
//
//   - BaseURL: Required. Server URL without trailing slash.
//   - AuthPath, ChatPath, FeedbackPath: Optional. Default to the /api routes.
//   - Timeout: Optional. Applies to auth and feedback calls. The chat stream
//     is bounded only by its context.
//   - Logger: Optional. Default: slog.Default().
type Config struct {
	BaseURL      string
	AuthPath     string
	ChatPath     string
	FeedbackPath string
	Timeout      time.Duration
	Logger       *slog.Logger
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.AuthPath == "" {
		c.AuthPath = DefaultAuthPath
	}
	if c.ChatPath == "" {
		c.ChatPath = DefaultChatPath
	}
	if c.FeedbackPath == "" {
		c.FeedbackPath = DefaultFeedbackPath
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is safe for concurrent use.
type Client struct {
	http   HTTPClient
	cfg    Config
	reader ux.StreamReader
	tokens TokenSource
	logger *slog.Logger
}

// New creates a Client backed by a default http.Client.
func New(cfg Config, tokens TokenSource) *Client {
	return NewWithClient(cfg, tokens, &http.Client{})
}

// NewWithClient creates a Client with a custom HTTPClient (for testing).
// tokens may be nil.
func NewWithClient(cfg Config, tokens TokenSource, httpClient HTTPClient) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		http:   httpClient,
		cfg:    cfg,
		reader: ux.NewSSEStreamReader(ux.NewSSEParser()),
		tokens: tokens,
		logger: cfg.Logger,
	}
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	Authenticated bool   `json:"authenticated"`
	Token         string `json:"token"`
}

// VerifyCredentials exchanges a username and password for a token.
//
// Returns ErrInvalidCredentials on 401 or an unauthenticated response.
func (c *Client) VerifyCredentials(ctx context.Context, username, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	requestID := uuid.New().String()
	resp, err := c.postJSON(ctx, requestID, "verify credentials", c.cfg.AuthPath, nil, credentialsRequest{
		Username: username,
		Password: password,
	}, false)
	if err != nil {
		return "", err
	}
	defer c.closeBody(requestID, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Info("credentials rejected", "request_id", requestID)
		return "", ErrInvalidCredentials
	}
	if err := c.checkStatus(requestID, "verify credentials", resp); err != nil {
		return "", err
	}

	var body credentialsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode credentials response: %w", err)
	}
	if !body.Authenticated || body.Token == "" {
		return "", ErrInvalidCredentials
	}

	c.logger.Debug("credentials accepted", "request_id", requestID, "token_present", true)
	return body.Token, nil
}

type chatRequest struct {
	Question string `json:"question"`
}

// Ask posts a question and streams the answer events to callback until
// [DONE], [ERROR], EOF or ctx cancellation. sessionID may be empty for a new
// conversation.
func (c *Client) Ask(ctx context.Context, question, sessionID string, callback ux.StreamCallback) error {
	requestID := uuid.New().String()
	var query url.Values
	if sessionID != "" {
		query = url.Values{"session_id": {sessionID}}
	}

	c.logger.Debug("sending chat question",
		"request_id", requestID,
		"session_id", sessionID,
		"question_length", len(question),
	)

	resp, err := c.postJSON(ctx, requestID, "chat", c.cfg.ChatPath, query, chatRequest{Question: question}, true)
	if err != nil {
		return err
	}
	defer c.closeBody(requestID, resp.Body)

	if err := c.checkStatus(requestID, "chat", resp); err != nil {
		return err
	}

	if err := c.reader.Read(ctx, resp.Body, callback); err != nil {
		return fmt.Errorf("read chat stream: %w", err)
	}
	return nil
}

type feedbackRequest struct {
	TraceID string `json:"trace_id"`
	Value   int    `json:"value"`
}

// SubmitFeedback posts one vote for traceID. Any 2xx is success.
func (c *Client) SubmitFeedback(ctx context.Context, traceID string, vote int) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	requestID := uuid.New().String()
	resp, err := c.postJSON(ctx, requestID, "feedback", c.cfg.FeedbackPath, nil, feedbackRequest{
		TraceID: traceID,
		Value:   vote,
	}, false)
	if err != nil {
		return err
	}
	defer c.closeBody(requestID, resp.Body)

	if err := c.checkStatus(requestID, "feedback", resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info("feedback submitted", "request_id", requestID, "trace_id", traceID, "value", vote)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) postJSON(ctx context.Context, requestID, op, path string, query url.Values, payload any, stream bool) (*http.Response, error) {
	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("request failed",
			"request_id", requestID,
			"op", op,
			"url", target,
			"error", err,
		)
		return nil, &TransportError{Op: op, URL: target, Err: err}
	}
	return resp, nil
}

func (c *Client) checkStatus(requestID, op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		c.logger.Error("server returned error (failed to read body)",
			"request_id", requestID,
			"op", op,
			"status_code", resp.StatusCode,
			"read_error", err,
		)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: "failed to read response body"}
	}
	c.logger.Error("server returned error",
		"request_id", requestID,
		"op", op,
		"status_code", resp.StatusCode,
		"response_body", string(bodyBytes),
	)
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
}

func (c *Client) closeBody(requestID string, body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Error("failed to close response body", "request_id", requestID, "error", err)
	}
}
