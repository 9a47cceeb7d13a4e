package web

import (
	"context"
	"testing"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	config.Init(&config.AppConfig{AppName: "test-app", Environment: "local"})
}

func TestSetupTelemetryDoesNotAutoShutdown(t *testing.T) {
	app := &GinApp{
		registry: prometheus.NewRegistry(),
		ginConfig: GinConfig{
			EnableTracing: false,
			EnableMetrics: true,
		},
	}

	err := app.setupTelemetry()
	if err != nil {
		t.Fatalf("setupTelemetry failed: %v", err)
	}

	if app.meter == nil {
		t.Fatal("expected meter provider to be set")
	}

	time.Sleep(6 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = app.ShutdownTelemetry(ctx)
	if err != nil {
		t.Fatalf("ShutdownTelemetry failed (provider was likely already shut down): %v", err)
	}
}

func TestMeterProviderExportsToAppRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	app := &GinApp{
		registry:  reg,
		ginConfig: GinConfig{EnableMetrics: true},
	}
	if err := app.setupTelemetry(); err != nil {
		t.Fatalf("setupTelemetry failed: %v", err)
	}
	defer app.ShutdownTelemetry(context.Background())

	counter, err := app.meter.Meter("test").Int64Counter("ingestion_test")
	if err != nil {
		t.Fatalf("create counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "ingestion_test_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected ingestion_test_total in the app registry")
	}
}
