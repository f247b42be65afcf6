package logger

import (
	"io"
	"os"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("pipeline")
	if entry.Entry.Data["component"] != "pipeline" {
		t.Errorf("expected component field to be set, got %v", entry.Entry.Data["component"])
	}
}

func TestWithFieldsChaining(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("loader").WithFields(Fields{"table": "dim_product"})
	if entry.Entry.Data["component"] != "loader" {
		t.Errorf("component field lost after chaining: %v", entry.Entry.Data["component"])
	}
	if entry.Entry.Data["table"] != "dim_product" {
		t.Errorf("expected table field, got %v", entry.Entry.Data["table"])
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	log := Logger()
	if err := log.Configure("not-a-level", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureLevelEnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	log := Logger()
	if err := log.Configure("warn", "json", "stdout", 0); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if log.Logger.GetLevel().String() != "debug" {
		t.Errorf("LOG_LEVEL override not applied: %s", log.Logger.GetLevel())
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("RETAILFLOW_TEST_ENV", "value-123")
	defer os.Unsetenv("RETAILFLOW_TEST_ENV")

	log := Logger()
	entry := log.WithEnv("RETAILFLOW_TEST_ENV")
	if entry.Entry.Data["RETAILFLOW_TEST_ENV"] != "value-123" {
		t.Errorf("expected env value in fields, got %v", entry.Entry.Data["RETAILFLOW_TEST_ENV"])
	}
}

func TestCountersTrackWarnsAndErrors(t *testing.T) {
	ResetCounters()
	defer ResetCounters()

	log := Logger()
	log.SetOutput(io.Discard)

	log.WithComponent("validator").Warn("bad record")
	log.WithComponent("validator").Warn("another bad record")
	log.WithComponent("loader").Error("load failed")

	warns, errs := Snapshot()
	if warns["validator"] != 2 {
		t.Errorf("expected 2 validator warnings, got %d", warns["validator"])
	}
	if errs["loader"] != 1 {
		t.Errorf("expected 1 loader error, got %d", errs["loader"])
	}
	if errs["validator"] != 0 {
		t.Errorf("expected no validator errors, got %d", errs["validator"])
	}
}
