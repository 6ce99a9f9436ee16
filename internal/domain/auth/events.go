package auth

// EventKind identifies a provider auth lifecycle event.
type EventKind string

const (
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
	EventUserUpdated      EventKind = "USER_UPDATED"
)

// Event is one provider auth lifecycle notification. Session is the session
// the provider asserted alongside the event, when it asserted one; consumers
// must revalidate it rather than trust it.
type Event struct {
	Kind    EventKind
	Session *Session
}
