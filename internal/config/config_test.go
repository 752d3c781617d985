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
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"VOICEBRIDGE_HOST", "VOICEBRIDGE_PORT", "VOICEBRIDGE_READ_TIMEOUT", "VOICEBRIDGE_WRITE_TIMEOUT",
	"DB_PATH", "AUDIO_DIR",
	"WHISPER_MODEL_PATH", "WHISPER_LANGUAGE", "WHISPER_THREADS",
	"AUDIO_SAMPLE_RATE",
	"LOG_LEVEL", "LOG_FORMAT",
	"NATS_URL", "NATS_SUBJECT", "NATS_MAX_RECONNECT", "NATS_RECONNECT_WAIT",
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		key := key
		if val, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { _ = os.Setenv(key, val) })
			_ = os.Unsetenv(key)
		}
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Server defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8090)
	}
	if cfg.Server.DBPath != "./data/voicebridge.db" {
		t.Errorf("Server.DBPath = %q, want %q", cfg.Server.DBPath, "./data/voicebridge.db")
	}
	if cfg.Server.AudioDir != "./data/audio" {
		t.Errorf("Server.AudioDir = %q, want %q", cfg.Server.AudioDir, "./data/audio")
	}

	// Whisper defaults
	if cfg.Whisper.ModelPath != "models/ggml-base.en.bin" {
		t.Errorf("Whisper.ModelPath = %q, want %q", cfg.Whisper.ModelPath, "models/ggml-base.en.bin")
	}
	if cfg.Whisper.Language != "en" {
		t.Errorf("Whisper.Language = %q, want %q", cfg.Whisper.Language, "en")
	}
	if cfg.Whisper.Threads != 0 {
		t.Errorf("Whisper.Threads = %d, want 0", cfg.Whisper.Threads)
	}

	// Audio defaults
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want %d", cfg.Audio.SampleRate, 16000)
	}

	// NATS defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("NATS.URL = %q, want %q", cfg.NATS.URL, "nats://localhost:4222")
	}
	if cfg.NATS.Subject != "voicebridge.transcripts" {
		t.Errorf("NATS.Subject = %q, want %q", cfg.NATS.Subject, "voicebridge.transcripts")
	}
	if cfg.NATS.ReconnectWait != 2*time.Second {
		t.Errorf("NATS.ReconnectWait = %v, want %v", cfg.NATS.ReconnectWait, 2*time.Second)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "Server overrides",
			envVars: map[string]string{
				"VOICEBRIDGE_HOST":         "127.0.0.1",
				"VOICEBRIDGE_PORT":         "9000",
				"VOICEBRIDGE_READ_TIMEOUT": "45s",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Host != "127.0.0.1" {
					t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
				}
				if cfg.Server.Port != 9000 {
					t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
				}
				if cfg.Server.ReadTimeout != 45*time.Second {
					t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
				}
			},
		},
		{
			name: "Whisper overrides",
			envVars: map[string]string{
				"WHISPER_MODEL_PATH": "/opt/models/ggml-small.en.bin",
				"WHISPER_LANGUAGE":   "en",
				"WHISPER_THREADS":    "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Whisper.ModelPath != "/opt/models/ggml-small.en.bin" {
					t.Errorf("Whisper.ModelPath = %q", cfg.Whisper.ModelPath)
				}
				if cfg.Whisper.Threads != 2 {
					t.Errorf("Whisper.Threads = %d, want 2", cfg.Whisper.Threads)
				}
			},
		},
		{
			name: "Invalid int falls back to default",
			envVars: map[string]string{
				"VOICEBRIDGE_PORT": "not-a-number",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8090 {
					t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, 8090)
				}
			},
		},
		{
			name: "NATS overrides",
			envVars: map[string]string{
				"NATS_URL":     "nats://broker:4222",
				"NATS_SUBJECT": "cv.transcripts",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.NATS.URL != "nats://broker:4222" {
					t.Errorf("NATS.URL = %q", cfg.NATS.URL)
				}
				if cfg.NATS.Subject != "cv.transcripts" {
					t.Errorf("NATS.Subject = %q", cfg.NATS.Subject)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			for key, val := range tt.envVars {
				t.Setenv(key, val)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Port out of range",
			envVars: map[string]string{"VOICEBRIDGE_PORT": "70000"},
		},
		{
			name:    "Negative threads",
			envVars: map[string]string{"WHISPER_THREADS": "-1"},
		},
		{
			name:    "Negative sample rate",
			envVars: map[string]string{"AUDIO_SAMPLE_RATE": "-16000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			for key, val := range tt.envVars {
				t.Setenv(key, val)
			}

			if _, err := Load(); err == nil {
				t.Error("Load() should fail for invalid configuration")
			}
		})
	}
}
