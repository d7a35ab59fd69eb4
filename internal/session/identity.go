package session

import "github.com/vovakirdan/ephemeral-chat/internal/realtime"

const anonymousPrefix = "AnonymousUser-"

// Identity is the signed-in user as the chat sees it.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// IdentityFromUser builds an Identity from a backend user.
func IdentityFromUser(u realtime.User) Identity {
	return Identity{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: DisplayName(u.Metadata.Username, u.ID),
	}
}

// DisplayName returns username, or an anonymous label built from the first four characters of id.
func DisplayName(username, id string) string {
	if username != "" {
		return username
	}
	short := id
	if len(short) > 4 {
		short = short[:4]
	}
	return anonymousPrefix + short
}
