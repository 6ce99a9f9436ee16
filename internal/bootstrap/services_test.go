package bootstrap

import (
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/sitetrack/sitetrack-api/config"
)

func TestGetEnabledServices(t *testing.T) {
	tests := []struct {
		name     string
		services string
		want     []string
	}{
		{
			name:     "both services",
			services: "http,reconciler",
			want:     []string{"http", "reconciler"},
		},
		{
			name:     "http only",
			services: "http",
			want:     []string{"http"},
		},
		{
			name:     "invalid service name",
			services: "http,scheduler",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{Services: tt.services}
			got := GetEnabledServices(cfg)
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("GetEnabledServices() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnabledServicesNilConfig(t *testing.T) {
	if got := GetEnabledServices(nil); len(got) != 0 {
		t.Fatalf("GetEnabledServices(nil) = %v, want empty", got)
	}
}

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.AppConfig
		wantErr bool
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
		{
			name:    "no services",
			cfg:     &config.AppConfig{Services: ""},
			wantErr: true,
		},
		{
			name:    "unknown service",
			cfg:     &config.AppConfig{Services: "rules-engine"},
			wantErr: true,
		},
		{
			name:    "valid services",
			cfg:     &config.AppConfig{Services: "http,reconciler"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateServiceConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildAuditSinkDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink, err := buildAuditSink(config.AuditConfig{Enabled: false}, logger)
	if err != nil {
		t.Fatalf("buildAuditSink() error = %v", err)
	}
	if sink != nil {
		t.Fatalf("buildAuditSink() = %v, want nil when disabled", sink)
	}

	if port := auditPort(sink); port != nil {
		t.Fatalf("auditPort(nil sink) = %v, want nil interface", port)
	}
}

func TestBuildAuditSinkRejectsBadMatch(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.AuditConfig{
		Enabled:    true,
		WebhookURL: "https://audit.example.com/hook",
		Match:      "event == ", // unterminated expression
	}
	if _, err := buildAuditSink(cfg, logger); err == nil {
		t.Fatal("buildAuditSink() error = nil, want error for bad match expression")
	}
}

func TestNewServicesRequiresConfig(t *testing.T) {
	if _, err := NewServices(nil); err == nil {
		t.Fatal("NewServices(nil) error = nil, want error")
	}
	if _, err := NewServices(&ServiceDeps{}); err == nil {
		t.Fatal("NewServices(empty deps) error = nil, want error")
	}
}
