package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// auditEntry is the JSON document posted to the webhook.
type auditEntry struct {
	Event      string         `json:"event"`
	OccurredAt time.Time      `json:"occurred_at"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// WebhookAuditOptions groups dependencies for WebhookAuditSink.
type WebhookAuditOptions struct {
	// URL is the webhook endpoint. Required.
	URL string

	// Match is an optional JMESPath expression evaluated against each entry.
	// Entries whose result is falsy are skipped. Empty matches everything.
	Match string

	// Timeout bounds a single delivery attempt. Defaults to 5s.
	Timeout time.Duration

	// RetryLimit is the number of additional attempts after a failed
	// delivery. Defaults to 3.
	RetryLimit int

	// Buffer sizes the delivery queue. Defaults to 64.
	Buffer int

	HTTPClient *http.Client
	Evaluator  JMESPathEvaluator
	Logger     *slog.Logger
}

// WebhookAuditSink posts auth lifecycle entries to an HTTP endpoint. Record
// never blocks the caller: entries queue onto a channel drained by a single
// delivery goroutine, and the newest entry is dropped when the queue is full.
type WebhookAuditSink struct {
	url        string
	match      string
	timeout    time.Duration
	retryLimit int
	client     *http.Client
	jems       JMESPathEvaluator
	logger     *slog.Logger

	queue chan auditEntry
	done  chan struct{}

	closeOnce sync.Once
}

// NewWebhookAuditSink constructs a WebhookAuditSink and starts its delivery
// goroutine. The Match expression is compiled up front so a bad filter fails
// at startup rather than per entry.
func NewWebhookAuditSink(opts WebhookAuditOptions) (*WebhookAuditSink, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("audit webhook URL is required")
	}
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	if err := jems.Validate(opts.Match); err != nil {
		return nil, fmt.Errorf("invalid audit match expression: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retryLimit := opts.RetryLimit
	if retryLimit < 0 {
		retryLimit = 3
	}
	buffer := opts.Buffer
	if buffer < 1 {
		buffer = 64
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &WebhookAuditSink{
		url:        opts.URL,
		match:      strings.TrimSpace(opts.Match),
		timeout:    timeout,
		retryLimit: retryLimit,
		client:     client,
		jems:       jems,
		logger:     logger.With("component", "audit_sink"),
		queue:      make(chan auditEntry, buffer),
		done:       make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Record queues an entry for delivery. Entries are dropped, with a warning,
// when the sink is saturated or closed.
func (s *WebhookAuditSink) Record(ctx context.Context, event string, fields map[string]any) {
	entry := auditEntry{
		Event:      event,
		OccurredAt: time.Now().UTC(),
		Fields:     fields,
	}
	if !s.matches(entry) {
		return
	}
	select {
	case s.queue <- entry:
	default:
		s.logger.Warn("audit queue full, dropping entry", "event", event)
	}
}

// Close stops accepting entries and waits for queued deliveries to drain.
func (s *WebhookAuditSink) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (s *WebhookAuditSink) run() {
	defer close(s.done)
	for entry := range s.queue {
		s.deliver(entry)
	}
}

func (s *WebhookAuditSink) matches(entry auditEntry) bool {
	if s.match == "" {
		return true
	}
	data := map[string]any{
		"event":  entry.Event,
		"fields": entry.Fields,
	}
	res, err := s.jems.Evaluate(s.match, data)
	if err != nil {
		s.logger.Warn("audit match evaluation failed", "event", entry.Event, "error", err)
		return false
	}
	return isTruthy(res)
}

func (s *WebhookAuditSink) deliver(entry auditEntry) {
	body, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("marshal audit entry", "event", entry.Event, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= s.retryLimit; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 250 * time.Millisecond)
		}
		lastErr = s.post(body)
		if lastErr == nil {
			return
		}
	}
	s.logger.Warn("audit delivery failed",
		"event", entry.Event, "attempts", s.retryLimit+1, "error", lastErr)
}

func (s *WebhookAuditSink) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post audit entry: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("audit endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func isTruthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case string:
		return tv != ""
	case []any:
		return len(tv) > 0
	case map[string]any:
		return len(tv) > 0
	default:
		return true
	}
}
