package env

import (
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// environment holds the current environment value retrieved from the ENVIRONMENT variable.
	environment = os.Getenv("ENVIRONMENT")
)

// IsDevelopment returns true if the current environment is set to "development".
func IsDevelopment() bool {
	return environment == "development"
}

// IsProduction returns true if the current environment is set to "production".
func IsProduction() bool {
	return environment == "production"
}

// IsRemote returns true if the process runs in a deployed environment.
func IsRemote() bool {
	return IsProduction() || IsDevelopment()
}

// IsLocal returns true if the environment is explicitly "local".
func IsLocal() bool {
	return environment == "local"
}

func GetEnvironment() string {
	return environment
}

// String returns the trimmed value of key, or fallback when it is unset or blank.
func String(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Duration parses key as a time.Duration. Unparseable or non-positive values yield fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Int parses key as a base-10 integer, returning fallback when unset or malformed.
func Int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func Float(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
