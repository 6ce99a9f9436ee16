package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReconciler runs the auth event reconciler loop.
	ServiceModeReconciler ServiceMode = "reconciler"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeReconciler,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeReconciler:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, reconciler)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ReconcilerConfig contains auth event reconciler configuration.
type ReconcilerConfig struct {
	// EventBuffer is the capacity of the provider event channel. Events are
	// still handled one at a time; the buffer only absorbs bursts.
	EventBuffer int `env:"RECONCILER_EVENT_BUFFER" envDefault:"16"`
}

// Sanitize applies guardrails to reconciler configuration values.
func (r *ReconcilerConfig) Sanitize() {
	if r.EventBuffer < 1 {
		r.EventBuffer = 1
	}
}

// RolesConfig contains role resolution configuration.
type RolesConfig struct {
	// MaxAttempts is how many times a missing profile row is re-read before
	// the lookup fails as not found.
	MaxAttempts int `env:"ROLES_MAX_ATTEMPTS" envDefault:"3"`

	// RetryDelay is the pause between profile re-reads.
	RetryDelay time.Duration `env:"ROLES_RETRY_DELAY" envDefault:"1s"`
}

// Sanitize applies guardrails to role resolution configuration values.
func (r *RolesConfig) Sanitize() {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	if r.RetryDelay < 0 {
		r.RetryDelay = 0
	}
}
