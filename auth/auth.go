package auth

import "net/http"

type Client interface {
	// Auth authenticates the connecting user, returns the user id.
	Auth(r *http.Request) (string, error)
}
