package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/kralgram/kralgram/store"
)

type fakeUsers struct {
	known map[string]bool
}

func (f *fakeUsers) GetUser(ctx context.Context, id string) (*store.User, error) {
	if !f.known[id] {
		return nil, store.ErrNotFound
	}
	return &store.User{ID: id}, nil
}

func (f *fakeUsers) CreateUser(ctx context.Context, name, username, password string) (*store.User, error) {
	panic("not used")
}

func (f *fakeUsers) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	panic("not used")
}

func (f *fakeUsers) ListOthers(ctx context.Context, excludeID string) ([]*store.User, error) {
	panic("not used")
}

func TestStoreClientAuth(t *testing.T) {
	c := &StoreClient{Users: &fakeUsers{known: map[string]bool{"alice": true}}}

	var gotUID string
	var gotErr error
	r := mux.NewRouter()
	r.HandleFunc("/ws/{userId}", func(w http.ResponseWriter, req *http.Request) {
		gotUID, gotErr = c.Auth(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws/alice", nil))
	assert.NoError(t, gotErr)
	assert.Equal(t, "alice", gotUID)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws/nobody", nil))
	assert.ErrorIs(t, gotErr, store.ErrNotFound)
}

func TestStoreClientAuthNoVar(t *testing.T) {
	c := &StoreClient{Users: &fakeUsers{}}
	_, err := c.Auth(httptest.NewRequest("GET", "/ws/", nil))
	assert.Error(t, err)
}
