// Package gate decides whether a route may render for the current session.
package gate

import "github.com/vovakirdan/ephemeral-chat/internal/session"

// Route paths.
const (
	RouteRoom   = "/"
	RouteLogin  = "/login"
	RouteSignup = "/signup"
)

// Intent is who a route is meant for.
type Intent string

const (
	// IntentGuest routes are for signed-out visitors (login, signup).
	IntentGuest Intent = "guest"
	// IntentUser routes need a signed-in user (the room).
	IntentUser Intent = "user"
)

// Decision is what the router should do with a route.
type Decision struct {
	RenderChildren bool
	ShowOverlay    bool
	// Redirect is the path to navigate to, empty when staying put.
	Redirect string
}

// Decide maps a session and a route intent to a Decision. While the session is
// loading the route content renders underneath a blocking overlay.
func Decide(s session.Session, intent Intent) Decision {
	if s.IsLoading {
		return Decision{RenderChildren: true, ShowOverlay: true}
	}

	switch intent {
	case IntentGuest:
		if s.SignedIn() {
			return Decision{Redirect: RouteRoom}
		}
		return Decision{RenderChildren: true}
	case IntentUser:
		if s.SignedIn() {
			return Decision{RenderChildren: true}
		}
		return Decision{Redirect: RouteLogin}
	default:
		return Decision{RenderChildren: true}
	}
}

// IntentFor returns the intent of a known route. Unknown paths are treated as the room.
func IntentFor(path string) Intent {
	switch path {
	case RouteLogin, RouteSignup:
		return IntentGuest
	default:
		return IntentUser
	}
}
