package service

import (
	"context"
	"log/slog"
	"net/url"
)

// recoveryMarkerValue is the query value that marks a recovery entry link.
const recoveryMarkerValue = "recovery"

// RecoveryGateOptions groups dependencies for RecoveryGate.
type RecoveryGateOptions struct {
	// Param is the query parameter carrying the recovery marker, "type" by default.
	Param   string
	Cleaner *SessionCleaner

	// Latch reports whether the reconciler currently holds recovery mode.
	// Optional; when nil only the query marker is consulted.
	Latch func() bool

	Logger *slog.Logger
}

// RecoveryGate decides whether a request entered through a password recovery
// link. The decision is a pure function of the request query; entering
// recovery additionally wipes any stale signed-in state so the recovery
// session starts from a clean slate.
type RecoveryGate struct {
	param   string
	cleaner *SessionCleaner
	latch   func() bool
	logger  *slog.Logger
}

// NewRecoveryGate constructs a new RecoveryGate.
func NewRecoveryGate(opts RecoveryGateOptions) *RecoveryGate {
	param := opts.Param
	if param == "" {
		param = "type"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryGate{param: param, cleaner: opts.Cleaner, latch: opts.Latch, logger: logger}
}

// Derive reports whether query marks a recovery entry. It has no side effects
// and the same query always yields the same answer.
func (g *RecoveryGate) Derive(query url.Values) bool {
	return query.Get(g.param) == recoveryMarkerValue
}

// Active reports whether recovery mode applies to a request: either the
// query carries the marker or the reconciler latch is set.
func (g *RecoveryGate) Active(query url.Values) bool {
	if g.Derive(query) {
		return true
	}
	return g.latch != nil && g.latch()
}

// Enter evaluates query and, when it marks a recovery entry, eagerly wipes
// the stale session state identified by refID before the recovery session is
// established. Returns the derived recovery flag.
func (g *RecoveryGate) Enter(ctx context.Context, query url.Values, refID string) bool {
	if !g.Derive(query) {
		return false
	}
	g.logger.Info("recovery entry detected, wiping stale session state")
	if g.cleaner != nil {
		g.cleaner.CleanAll(ctx, refID)
	}
	return true
}
