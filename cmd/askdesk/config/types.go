// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"time"
)

// AskdeskConfig is the on-disk configuration of the askdesk CLI.
type AskdeskConfig struct {
	// Server: where the question-answering backend lives
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Storage: where the auth token is persisted
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Logging: level and the rotating log file
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// UI: personality, snippet budget and the idle suggestions
	UI UIConfig `yaml:"ui" mapstructure:"ui"`
}

type ServerConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`             // e.g. http://localhost:5000
	AuthPath     string        `yaml:"auth_path" mapstructure:"auth_path" validate:"required,startswith=/"` // e.g. /api/verify-credentials
	ChatPath     string        `yaml:"chat_path" mapstructure:"chat_path" validate:"required,startswith=/"`
	FeedbackPath string        `yaml:"feedback_path" mapstructure:"feedback_path" validate:"required,startswith=/"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"` // applies to auth and feedback, not the stream
}

type StorageConfig struct {
	// DataDir holds the badger database with the auth token.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir" validate:"required"`

	// InMemory keeps the token for the life of the process only.
	InMemory bool `yaml:"in_memory" mapstructure:"in_memory"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Dir        string `yaml:"dir" mapstructure:"dir"`
	JSON       bool   `yaml:"json" mapstructure:"json"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days" validate:"gte=0"`
}

type UIConfig struct {
	// Personality is full, standard, minimal or machine. Empty picks full.
	Personality string `yaml:"personality" mapstructure:"personality" validate:"omitempty,oneof=full standard minimal machine"`

	// SummaryWords is the word budget of a source snippet.
	SummaryWords int `yaml:"summary_words" mapstructure:"summary_words" validate:"gt=0"`

	// SuggestedQueries are offered while nothing has been asked. Digits 1-9
	// select them, so at most nine.
	SuggestedQueries []string `yaml:"suggested_queries" mapstructure:"suggested_queries" validate:"max=9,dive,required"`

	// ShowHints prints key binding and command hints.
	ShowHints bool `yaml:"show_hints" mapstructure:"show_hints"`
}

// DefaultSuggestedQueries are the questions shown on a fresh screen.
var DefaultSuggestedQueries = []string{
	"What does ATD stand for in a legal context?",
	"What are the key elements of a valid contract?",
	"How long does a landlord have to return a security deposit?",
	"What qualifies a lawsuit as a class action?",
	"What is the difference between a will and a trust?",
	"When is a non-compete agreement enforceable?",
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() AskdeskConfig {
	base := ".askdesk"
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".askdesk")
	}
	return AskdeskConfig{
		Server: ServerConfig{
			BaseURL:      "http://localhost:5000",
			AuthPath:     "/api/verify-credentials",
			ChatPath:     "/api/chat",
			FeedbackPath: "/api/feedback",
			Timeout:      30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(base, "data"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        filepath.Join(base, "logs"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{
			Personality:      "",
			SummaryWords:     150,
			SuggestedQueries: append([]string(nil), DefaultSuggestedQueries...),
			ShowHints:        true,
		},
	}
}
