package auth

// ViewMode is the auth surface the client should currently present.
type ViewMode string

const (
	ViewSignIn         ViewMode = "sign_in"
	ViewUpdatePassword ViewMode = "update_password"
)

// ViewState is the reconciler's derived view of the auth surface. Consumers
// receive copies; the Version counter increases monotonically with every
// mutation so a consumer can detect that a snapshot it holds is stale.
type ViewState struct {
	View            ViewMode
	RecoveryMode    bool
	PasswordUpdated bool
	// Destination is the route the last definitive SIGNED_IN resolved to,
	// empty when no navigation is pending.
	Destination string
	// Err is the latest user-visible error message, empty when none.
	Err string
	// Notice is a non-error message for the sign-in form.
	Notice  string
	Version uint64
}

// InitialViewState returns the state a freshly mounted auth surface starts in.
func InitialViewState() ViewState {
	return ViewState{View: ViewSignIn}
}
