package location

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sereno-go/internal/config"
	"sereno-go/internal/field"
	"sereno-go/internal/testutil"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakeloc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecProvider_CurrentFix(t *testing.T) {
	script := writeScript(t, `echo '{"latitude": -11.571234, "longitude": -77.271111, "accuracy": 12.5}'`)
	p := NewExecProvider(script, nil, testutil.FixedClock(), field.NewNopLogger())

	if !p.Supported() {
		t.Fatal("Supported() = false for existing script")
	}

	fix, err := p.CurrentFix(context.Background(), field.FixOptions{})
	if err != nil {
		t.Fatalf("CurrentFix() error = %v", err)
	}
	if fix.Latitude != -11.571234 || fix.Longitude != -77.271111 {
		t.Errorf("fix = %+v", fix)
	}
	if fix.AccuracyM != 12.5 {
		t.Errorf("AccuracyM = %v, want 12.5", fix.AccuracyM)
	}
	if fix.At.IsZero() {
		t.Error("At should be stamped from the clock")
	}
}

func TestExecProvider_PermissionDenied(t *testing.T) {
	script := writeScript(t, `echo "location permission denied" >&2; exit 1`)
	p := NewExecProvider(script, nil, testutil.FixedClock(), field.NewNopLogger())

	_, err := p.CurrentFix(context.Background(), field.FixOptions{})
	if !errors.Is(err, field.ErrPermissionDenied) {
		t.Errorf("error = %v, want ErrPermissionDenied", err)
	}
}

func TestExecProvider_GarbageOutput(t *testing.T) {
	script := writeScript(t, `echo "not json"`)
	p := NewExecProvider(script, nil, testutil.FixedClock(), field.NewNopLogger())

	_, err := p.CurrentFix(context.Background(), field.FixOptions{})
	if !errors.Is(err, field.ErrPositionUnavailable) {
		t.Errorf("error = %v, want ErrPositionUnavailable", err)
	}
}

func TestExecProvider_ZeroCoordinates(t *testing.T) {
	script := writeScript(t, `echo '{"latitude": 0, "longitude": 0}'`)
	p := NewExecProvider(script, nil, testutil.FixedClock(), field.NewNopLogger())

	_, err := p.CurrentFix(context.Background(), field.FixOptions{})
	if !errors.Is(err, field.ErrPositionUnavailable) {
		t.Errorf("error = %v, want ErrPositionUnavailable", err)
	}
}

func TestExecProvider_MissingCommand(t *testing.T) {
	p := NewExecProvider("/nonexistent/locator", nil, testutil.FixedClock(), field.NewNopLogger())
	if p.Supported() {
		t.Error("Supported() = true for missing command")
	}
	if _, err := p.Permission(context.Background()); !errors.Is(err, field.ErrUnsupported) {
		t.Errorf("Permission() error = %v, want ErrUnsupported", err)
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(-11.57, -77.27, 30, testutil.FixedClock())

	if !p.Supported() {
		t.Error("Supported() = false")
	}
	state, err := p.Permission(context.Background())
	if err != nil || state != field.PermissionGranted {
		t.Errorf("Permission() = %v, %v", state, err)
	}
	fix, err := p.CurrentFix(context.Background(), field.FixOptions{HighAccuracy: true})
	if err != nil {
		t.Fatalf("CurrentFix() error = %v", err)
	}
	if fix.Latitude != -11.57 || fix.Longitude != -77.27 || fix.AccuracyM != 30 {
		t.Errorf("fix = %+v", fix)
	}
}

func TestNoneProvider(t *testing.T) {
	p := NoneProvider{}
	if p.Supported() {
		t.Error("Supported() = true")
	}
	if _, err := p.CurrentFix(context.Background(), field.FixOptions{}); !errors.Is(err, field.ErrUnsupported) {
		t.Errorf("CurrentFix() error = %v, want ErrUnsupported", err)
	}
}

func TestNewProviderFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LocationConfig
		wantErr bool
	}{
		{"exec", config.LocationConfig{Type: "exec"}, false},
		{"default is exec", config.LocationConfig{}, false},
		{"static", config.LocationConfig{Type: "static", Latitude: -11, Longitude: -77}, false},
		{"none", config.LocationConfig{Type: "none"}, false},
		{"unknown", config.LocationConfig{Type: "gps2000"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProviderFromConfig(tt.cfg, testutil.FixedClock(), field.NewNopLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if !tt.wantErr && p == nil {
				t.Error("provider is nil")
			}
		})
	}
}
