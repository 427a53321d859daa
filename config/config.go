// Package config reads settings from the environment and an optional .env
// file. Command-line flags in main override these values.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultEndpoint      = "http://localhost:5000/analyze"
	DefaultSubmitTimeout = 60 * time.Second
	DefaultCameraWidth   = 1280
	DefaultCameraHeight  = 720
)

type Config struct {
	Endpoint      string
	Token         string
	TokenSecret   string
	Camera        string
	CameraWidth   int
	CameraHeight  int
	SubmitTimeout time.Duration
	MetricsAddr   string
	Mock          bool
	Guest         bool
}

// Load reads .env files (missing files are fine) and then the environment.
// Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return FromEnv(), nil
}

func FromEnv() *Config {
	return &Config{
		Endpoint:      getEnv("SKINSCAN_ENDPOINT", DefaultEndpoint),
		Token:         getEnv("SKINSCAN_TOKEN", ""),
		TokenSecret:   getEnv("SKINSCAN_TOKEN_SECRET", ""),
		Camera:        getEnv("SKINSCAN_CAMERA", ""),
		CameraWidth:   getEnvAsInt("SKINSCAN_CAMERA_WIDTH", DefaultCameraWidth),
		CameraHeight:  getEnvAsInt("SKINSCAN_CAMERA_HEIGHT", DefaultCameraHeight),
		SubmitTimeout: getEnvAsDuration("SKINSCAN_SUBMIT_TIMEOUT", DefaultSubmitTimeout),
		MetricsAddr:   getEnv("SKINSCAN_METRICS_ADDR", ""),
		Mock:          getEnvAsBool("SKINSCAN_MOCK", false),
		Guest:         getEnvAsBool("SKINSCAN_GUEST", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil && value > 0 {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
