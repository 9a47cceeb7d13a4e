package config

import (
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/env"
)

const (
	EnvIngestionHost    = "INGESTION_SERVICE_HOST"
	EnvIngestionPort    = "INGESTION_SERVICE_PORT"
	EnvIngestionTimeout = "INGESTION_SERVICE_TIMEOUT"
	EnvIngestionRate    = "INGESTION_RATE_LIMIT"
	EnvIngestionBreaker = "INGESTION_BREAKER_FAILURES"

	DefaultIngestionHost    = "bayesian-jobs"
	DefaultIngestionPort    = "34000"
	DefaultIngestionTimeout = 10 * time.Second

	// IngestionEndpoint is the path of the ingestion API that accepts ecosystem/package/version batches.
	IngestionEndpoint = "/internal/ingestions/epv"
)

// IngestionConfig locates the ingestion service.
// Timeout bounds awaited submissions and each background request.
// RateLimit (requests/s) and BreakerFailures are off when zero.
type IngestionConfig struct {
	Host            string
	Port            string
	Timeout         time.Duration
	RateLimit       float64
	BreakerFailures uint32
}

var (
	ingestion     IngestionConfig
	ingestionOnce sync.Once
)

// LoadIngestion returns the ingestion settings captured from the environment
// on first use. Later changes to the environment are not observed.
func LoadIngestion() IngestionConfig {
	ingestionOnce.Do(func() {
		ingestion = IngestionFromEnv()
	})
	return ingestion
}

// IngestionFromEnv reads the environment on every call.
func IngestionFromEnv() IngestionConfig {
	cfg := IngestionConfig{
		Host:      env.String(EnvIngestionHost, DefaultIngestionHost),
		Port:      env.String(EnvIngestionPort, DefaultIngestionPort),
		Timeout:   env.Duration(EnvIngestionTimeout, DefaultIngestionTimeout),
		RateLimit: env.Float(EnvIngestionRate, 0),
	}
	if n := int64(env.Int(EnvIngestionBreaker, 0)); n > 0 {
		cfg.BreakerFailures = uint32(min(n, math.MaxUint32))
	}
	return cfg.withDefaults()
}

func (c IngestionConfig) withDefaults() IngestionConfig {
	if c.Host == "" {
		c.Host = DefaultIngestionHost
	}
	if c.Port == "" {
		c.Port = DefaultIngestionPort
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultIngestionTimeout
	}
	// Zero disables the limiter, and so does anything that is not a finite positive rate.
	if math.IsNaN(c.RateLimit) || math.IsInf(c.RateLimit, 0) || c.RateLimit < 0 {
		c.RateLimit = 0
	}
	return c
}

// Normalize fills empty fields with the package defaults.
func (c IngestionConfig) Normalize() IngestionConfig {
	return c.withDefaults()
}

// BaseURL is the scheme and authority of the ingestion service, without a path.
func (c IngestionConfig) BaseURL() string {
	c = c.withDefaults()
	host := c.Host
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, c.Port))
}

// URL is the full ingestion endpoint, e.g. http://bayesian-jobs:34000/internal/ingestions/epv.
func (c IngestionConfig) URL() string {
	return c.BaseURL() + IngestionEndpoint
}
