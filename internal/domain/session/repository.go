package session

import "context"

// CredentialStore persists the session so it survives restarts.
// Only State implementations write to it.
type CredentialStore interface {
	// Write stores every non-nil field of p. Writing tokens does not require
	// a user or permissions to be present.
	Write(ctx context.Context, p Partial) error

	// Read returns whatever subset is present; missing fields are nil.
	Read(ctx context.Context) (Snapshot, error)

	// Clear removes every key Write can produce, whether or not it exists.
	Clear(ctx context.Context) error

	// AccessToken reads only the access token. Used on every outbound request.
	AccessToken(ctx context.Context) (string, bool, error)
}

// State is the live session container. All mutation goes through these
// five entry points.
type State interface {
	SetAuth(ctx context.Context, c Credential) error
	SetUserProfile(ctx context.Context, u UserProfile, p Permissions) error
	UpdateUser(ctx context.Context, patch UserPatch) error
	Logout(ctx context.Context) error
	ForceLogout(ctx context.Context) error

	Snapshot() Snapshot
	Subscribe(fn func(Event)) (unsubscribe func())
}

// EventKind identifies the entry point that produced an Event.
type EventKind int

const (
	EventAuthenticated EventKind = iota + 1
	EventProfileLoaded
	EventUserUpdated
	EventLoggedOut
	EventForcedLogout
)

func (k EventKind) String() string {
	switch k {
	case EventAuthenticated:
		return "authenticated"
	case EventProfileLoaded:
		return "profile_loaded"
	case EventUserUpdated:
		return "user_updated"
	case EventLoggedOut:
		return "logged_out"
	case EventForcedLogout:
		return "forced_logout"
	default:
		return "unknown"
	}
}

// IsLogout reports either logout variant.
func (k EventKind) IsLogout() bool {
	return k == EventLoggedOut || k == EventForcedLogout
}

// Event is delivered to subscribers after a mutation has been persisted.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
}
