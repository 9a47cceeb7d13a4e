package config

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/env"
)

// AppConfig describes the process hosting the notifier (service name, listen port, runtime).
type AppConfig struct {
	AppName      string
	Environment  string
	Port         string
	Timezone     *time.Location
	Architecture string
	OS           string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Init(cfg *AppConfig) {
	once.Do(func() {
		if cfg.AppName == "" {
			cfg.AppName = env.String("APP_NAME", "ingestion-notifier")
		}
		if cfg.Environment == "" {
			cfg.Environment = env.GetEnvironment()
		}
		if cfg.Environment == "" {
			cfg.Environment = "local"
		}
		if cfg.Port == "" {
			cfg.Port = env.String("PORT", "8080")
		}
		if cfg.Timezone == nil {
			cfg.Timezone = DetectTimezone()
		}
		if cfg.OS == "" {
			cfg.OS = runtime.GOOS
		}
		if cfg.Architecture == "" {
			cfg.Architecture = runtime.GOARCH
		}
		instance = cfg
	})
}

func Get() *AppConfig {
	if instance == nil {
		Init(&AppConfig{})
	}
	return instance
}

func MustGet() *AppConfig {
	if instance == nil {
		panic("AppConfig not initialized: call config.Init first")
	}
	return instance
}

func DetectTimezone() *time.Location {
	if tzName := os.Getenv("TZ"); tzName != "" {
		if tz, err := time.LoadLocation(tzName); err == nil {
			return tz
		}
	}
	return time.UTC
}
