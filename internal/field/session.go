package field

// SessionStore owns the token/user pair. It is the single source of truth:
// the API gateway reads the token through this interface and never keeps
// its own copy.
type SessionStore interface {
	// Login atomically sets the pair, persists it, and broadcasts the
	// change to other running instances.
	Login(token string, user *User) error

	// Logout atomically clears the pair and removes persisted state.
	Logout() error

	// Expire clears the pair like Logout and additionally fires the
	// re-authentication signal. Safe to call when already logged out.
	Expire() error

	// Session returns the current pair (possibly empty).
	Session() Session

	// Token returns the current token, or "" when logged out.
	Token() string
}

// SessionEvent is a session change broadcast between running instances of
// the client sharing the same persisted state.
type SessionEvent struct {
	// Origin identifies the store that published the event so receivers
	// can skip re-broadcasting their own changes.
	Origin  string
	Session Session
	Expired bool
}

// SessionBus is the pub/sub channel for session-change events.
type SessionBus interface {
	Publish(SessionEvent)
	Subscribe() <-chan SessionEvent
}
