package checkin

// Decision is the render outcome for a protected view.
type Decision int

const (
	// ShowLoading keeps the view in a loading state while the session
	// resolves. Degraded sessions also land here: a recoverable profile
	// failure must never bounce an authenticated user to login.
	ShowLoading Decision = iota
	// RedirectToLogin sends an anonymous caller to the login boundary.
	RedirectToLogin
	// RedirectToUnauthorized sends an authenticated caller without the
	// required role to the unauthorized boundary.
	RedirectToUnauthorized
	// Allow renders the protected view.
	Allow
)

func (d Decision) String() string {
	switch d {
	case ShowLoading:
		return "show_loading"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToUnauthorized:
		return "redirect_to_unauthorized"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Evaluate maps a session snapshot and the view's required roles onto a
// render decision. It is pure and side-effect free; protected views call it
// on every render. With no required roles, any Ready session is allowed.
func Evaluate(snap Snapshot, required ...Role) Decision {
	switch snap.State {
	case StateAnonymous:
		return RedirectToLogin
	case StateAuthenticating, StateProfileLoading, StateDegraded:
		return ShowLoading
	case StateReady:
		if len(required) == 0 {
			return Allow
		}
		if snap.Profile == nil || !Roles(required).Contains(snap.Profile.Role) {
			return RedirectToUnauthorized
		}
		return Allow
	default:
		// Unknown states are treated as still resolving; never Allow.
		return ShowLoading
	}
}
