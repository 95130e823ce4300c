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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides: ASKDESK_SERVER_BASE_URL
// overrides server.base_url.
const EnvPrefix = "ASKDESK"

// Notices receives the first-run message. Tests silence it.
var Notices io.Writer = os.Stderr

// DefaultPath returns ~/.askdesk/askdesk.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".askdesk", "askdesk.yaml"), nil
}

// Load reads the configuration at path (DefaultPath when empty).
//
// A .env file in the working directory is loaded first so its variables can
// override file values. The file is created with defaults on first run.
// Values missing from the file fall back to DefaultConfig.
func Load(path string) (AskdeskConfig, error) {
	var cfg AskdeskConfig

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	// create it if it doesn't exist
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(Notices, "First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return cfg, err
		}
	} else if err != nil {
		return cfg, fmt.Errorf("error checking config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}

	cfg.Storage.DataDir = expandHome(cfg.Storage.DataDir)
	cfg.Logging.Dir = expandHome(cfg.Logging.Dir)
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg AskdeskConfig) error {
	err := validator.New().Struct(cfg)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// setDefaults registers every key so AutomaticEnv can override keys the
// file does not mention.
func setDefaults(v *viper.Viper, d AskdeskConfig) {
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.auth_path", d.Server.AuthPath)
	v.SetDefault("server.chat_path", d.Server.ChatPath)
	v.SetDefault("server.feedback_path", d.Server.FeedbackPath)
	v.SetDefault("server.timeout", d.Server.Timeout)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.in_memory", d.Storage.InMemory)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.json", d.Logging.JSON)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("ui.personality", d.UI.Personality)
	v.SetDefault("ui.summary_words", d.UI.SummaryWords)
	v.SetDefault("ui.suggested_queries", d.UI.SuggestedQueries)
	v.SetDefault("ui.show_hints", d.UI.ShowHints)
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
