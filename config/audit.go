package config

import (
	"strings"
	"time"
)

// AuditConfig controls outbound auth audit event delivery.
type AuditConfig struct {
	// Enabled turns audit fan-out on.
	Enabled bool `env:"AUDIT_ENABLED" envDefault:"false"`

	// WebhookURL is the endpoint that receives audit payloads.
	WebhookURL string `env:"AUDIT_WEBHOOK_URL"`

	// Match is an optional JMESPath expression evaluated against each audit
	// payload. Events are delivered only when the expression yields a truthy
	// value; an empty expression matches everything.
	Match string `env:"AUDIT_MATCH"`

	// Timeout bounds each webhook delivery attempt.
	Timeout time.Duration `env:"AUDIT_TIMEOUT" envDefault:"5s"`

	// RetryLimit is how many times a failed delivery is retried.
	RetryLimit int `env:"AUDIT_RETRY_LIMIT" envDefault:"3"`
}

// Sanitize normalises audit configuration values.
func (c *AuditConfig) Sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Match = strings.TrimSpace(c.Match)
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.WebhookURL == "" {
		c.Enabled = false
	}
}

// IsEnabled returns true when audit delivery is active after sanitisation.
func (c *AuditConfig) IsEnabled() bool {
	return c.Enabled && c.WebhookURL != ""
}
