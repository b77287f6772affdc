package auth

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kralgram/kralgram/store"
)

// StoreClient authenticates websocket connects against the user store: the
// id comes from the /ws/{userId} route and must name a registered user.
type StoreClient struct {
	Users store.IUserStore
}

func (c *StoreClient) Auth(r *http.Request) (string, error) {
	uid := mux.Vars(r)["userId"]
	if uid == "" {
		return "", fmt.Errorf("missing user id in ws path")
	}

	if _, err := c.Users.GetUser(r.Context(), uid); err != nil {
		return "", fmt.Errorf("unknown user %q: %w", uid, err)
	}
	return uid, nil
}
