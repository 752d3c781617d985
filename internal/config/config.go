/*
 * This file is part of Voicebridge (https://github.com/AlexandruDanCroitoriu/voicebridge).
 * Copyright (C) 2025 Alexandru Dan Croitoriu
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Voicebridge service
type Config struct {
	Server  ServerConfig
	Whisper WhisperConfig
	Audio   AudioConfig
	Logging LoggingConfig
	NATS    NATSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DBPath       string
	AudioDir     string // spool directory for uploaded recordings
}

// WhisperConfig holds inference engine configuration
type WhisperConfig struct {
	ModelPath string
	Language  string
	Threads   int // 0 = min(4, hardware concurrency)
}

// AudioConfig holds audio input expectations
type AudioConfig struct {
	SampleRate int // expected input rate; mismatches are logged, not corrected
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("VOICEBRIDGE_HOST", "0.0.0.0"),
			Port:         getEnvInt("VOICEBRIDGE_PORT", 8090),
			ReadTimeout:  getEnvDuration("VOICEBRIDGE_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("VOICEBRIDGE_WRITE_TIMEOUT", 60*time.Second),
			DBPath:       getEnvString("DB_PATH", "./data/voicebridge.db"),
			AudioDir:     getEnvString("AUDIO_DIR", "./data/audio"),
		},
		Whisper: WhisperConfig{
			ModelPath: getEnvString("WHISPER_MODEL_PATH", "models/ggml-base.en.bin"),
			Language:  getEnvString("WHISPER_LANGUAGE", "en"),
			Threads:   getEnvInt("WHISPER_THREADS", 0),
		},
		Audio: AudioConfig{
			SampleRate: getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			Subject:       getEnvString("NATS_SUBJECT", "voicebridge.transcripts"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Whisper.ModelPath == "" {
		return fmt.Errorf("whisper model path must be provided")
	}

	if c.Whisper.Threads < 0 {
		return fmt.Errorf("whisper threads must not be negative: %d", c.Whisper.Threads)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive: %d", c.Audio.SampleRate)
	}

	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS subject must be provided")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
