// Package config handles platform configuration
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/parleyhq/platform/internal/errors"
)

type Config struct {
	HTTPAddr       string        `validate:"required"`
	RecognizerURL  string        // empty disables the interview feature
	WorkerURL      string        `validate:"required"`
	DeepgramAPIKey string        // empty falls back to the logging TTS engine
	DeepgramVoice  string        `validate:"required"`
	SampleRate     int           `validate:"required,gt=0"`
	AudioBuffer    int           `validate:"gt=0"`
	DialTimeout    time.Duration `validate:"gt=0"`
	LogFile        string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
		RecognizerURL:  getEnv("RECOGNIZER_URL", "ws://localhost:9090/stt"),
		WorkerURL:      getEnv("WORKER_URL", "ws://localhost:9091/worker"),
		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramVoice:  getEnv("DEEPGRAM_VOICE", "aura-2-thalia-en"),
		SampleRate:     getEnvInt("SAMPLE_RATE", 16000),
		AudioBuffer:    getEnvInt("AUDIO_BUFFER", 100),
		DialTimeout:    getEnvDuration("DIAL_TIMEOUT", 10*time.Second),
		LogFile:        getEnv("LOG_FILE", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigInvalid, "config validation failed")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
