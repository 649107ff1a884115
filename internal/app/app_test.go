package app

import (
	"context"
	"testing"

	"sereno-go/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Encryption.Type = "test"
	cfg.Database.Type = "memory"
	cfg.Staging.Type = "memory"
	cfg.Vault.Type = "none"
	cfg.Location = config.LocationConfig{
		Type:      "static",
		Latitude:  -12.0212,
		Longitude: -76.9877,
		AccuracyM: 5,
	}
	cfg.API.MainURL = "http://main.test/api"
	cfg.API.IncidenceURL = "http://incidence.test/api"
	return cfg
}

func TestNewSerenoApp(t *testing.T) {
	app, err := NewSerenoApp(context.Background(), testConfig(t), "Test")
	if err != nil {
		t.Fatalf("NewSerenoApp() error = %v", err)
	}
	defer app.Close()

	if app.Service() == nil {
		t.Error("Service() returned nil")
	}
	if app.Sessions() == nil {
		t.Error("Sessions() returned nil")
	}
}

func TestNewSerenoApp_BadLocationType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Location.Type = "carrier-pigeon"

	if _, err := NewSerenoApp(context.Background(), cfg, "Test"); err == nil {
		t.Error("NewSerenoApp() expected error for unknown location type, got nil")
	}
}

func TestSerenoApp_RestoreSessionEmpty(t *testing.T) {
	app, err := NewSerenoApp(context.Background(), testConfig(t), "Test")
	if err != nil {
		t.Fatalf("NewSerenoApp() error = %v", err)
	}
	defer app.Close()

	// No persisted blob: restoring is a no-op, not an error.
	if err := app.RestoreSession("passphrase"); err != nil {
		t.Errorf("RestoreSession() error = %v", err)
	}
	if app.Sessions().Session().Valid() {
		t.Error("session should be empty")
	}
}
