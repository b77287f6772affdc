package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kralgram/kralgram/blob"
	"github.com/kralgram/kralgram/store"
)

type fakeUserStore struct {
	users map[string]*store.User // keyed by username
}

func (f *fakeUserStore) CreateUser(ctx context.Context, name, username, password string) (*store.User, error) {
	if _, ok := f.users[username]; ok {
		return nil, store.ErrDuplicateUsername
	}
	u := &store.User{ID: "u-" + username, Name: name, Username: username}
	f.users[username] = u
	return u, nil
}

func (f *fakeUserStore) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	u, ok := f.users[username]
	if !ok || password != "secret" {
		return nil, store.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUserStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) ListOthers(ctx context.Context, excludeID string) ([]*store.User, error) {
	var out []*store.User
	for _, u := range f.users {
		if u.ID != excludeID {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeGroupStore struct {
	groups  map[string]*store.Group // keyed by invite code
	members map[string][]string
}

func (f *fakeGroupStore) CreateGroup(ctx context.Context, name, ownerID string) (*store.Group, error) {
	g := &store.Group{ID: "g-" + name, Name: name, InviteCode: "inv-" + name}
	f.groups[g.InviteCode] = g
	f.members[g.ID] = []string{ownerID}
	return g, nil
}

func (f *fakeGroupStore) JoinGroup(ctx context.Context, inviteCode, userID string) (*store.Group, error) {
	g, ok := f.groups[inviteCode]
	if !ok {
		return nil, store.ErrInvalidInvite
	}
	f.members[g.ID] = append(f.members[g.ID], userID)
	return g, nil
}

func (f *fakeGroupStore) GroupByInvite(ctx context.Context, inviteCode string) (*store.Group, error) {
	g, ok := f.groups[inviteCode]
	if !ok {
		return nil, store.ErrInvalidInvite
	}
	return g, nil
}

func (f *fakeGroupStore) MembersOf(ctx context.Context, roomID string) ([]string, error) {
	return f.members[roomID], nil
}

func (f *fakeGroupStore) GroupsOf(ctx context.Context, userID string) ([]*store.Group, error) {
	var out []*store.Group
	for _, g := range f.groups {
		for _, uid := range f.members[g.ID] {
			if uid == userID {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

type fakeMessageStore struct {
	msgs    []*store.Message
	listErr error
}

func (f *fakeMessageStore) Append(ctx context.Context, m *store.Message) error {
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeMessageStore) ListByRoom(ctx context.Context, roomID string) ([]*store.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*store.Message
	for _, m := range f.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) UpdateStatus(ctx context.Context, msgID, status string) (string, error) {
	return "", store.ErrNotFound
}

type testEnv struct {
	users    *fakeUserStore
	groups   *fakeGroupStore
	messages *fakeMessageStore
	router   *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	blobs, err := blob.NewFSStore(t.TempDir(), "/static/uploads")
	require.NoError(t, err)

	env := &testEnv{
		users:    &fakeUserStore{users: make(map[string]*store.User)},
		groups:   &fakeGroupStore{groups: make(map[string]*store.Group), members: make(map[string][]string)},
		messages: &fakeMessageStore{},
		router:   mux.NewRouter(),
	}
	NewAPI(env.users, env.groups, env.messages, blobs).RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/api/register", `{"name":"Alice","username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var u store.User
	decode(t, w, &u)
	assert.Equal(t, "alice", u.Username)
	assert.NotEmpty(t, u.ID)

	// duplicate username
	w = env.do("POST", "/api/register", `{"name":"A2","username":"alice","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// missing fields
	w = env.do("POST", "/api/register", `{"username":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// malformed body
	w = env.do("POST", "/api/register", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.do("POST", "/api/register", `{"name":"Alice","username":"alice","password":"secret"}`)

	w := env.do("POST", "/api/login", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var u store.User
	decode(t, w, &u)
	assert.Equal(t, "u-alice", u.ID)

	w = env.do("POST", "/api/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGroupEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/api/create_group", `{"name":"gophers","user_id":"u-alice"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var created map[string]string
	decode(t, w, &created)
	assert.Equal(t, "g-gophers", created["room_id"])
	assert.NotEmpty(t, created["invite_link"])

	w = env.do("GET", "/api/invite/"+created["invite_link"], "")
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	decode(t, w, &info)
	assert.Equal(t, "gophers", info["name"])

	w = env.do("GET", "/api/invite/bogus", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("POST", "/api/join_group", `{"invite_link":"`+created["invite_link"]+`","user_id":"u-bob"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, env.groups.members["g-gophers"], "u-bob")

	w = env.do("POST", "/api/join_group", `{"invite_link":"bogus","user_id":"u-bob"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMyChats(t *testing.T) {
	env := newTestEnv(t)
	env.do("POST", "/api/register", `{"name":"Alice","username":"alice","password":"secret"}`)
	env.do("POST", "/api/register", `{"name":"Bob","username":"bob","password":"secret"}`)
	env.do("POST", "/api/create_group", `{"name":"gophers","user_id":"u-alice"}`)

	w := env.do("GET", "/api/my_chats/u-alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]chatItem
	decode(t, w, &resp)
	require.Len(t, resp["groups"], 1)
	assert.Equal(t, "group", resp["groups"][0].Type)
	require.Len(t, resp["users"], 1)
	assert.Equal(t, "Bob", resp["users"][0].Name)
	assert.Equal(t, "pv", resp["users"][0].Type)
}

func TestRoomMessages(t *testing.T) {
	env := newTestEnv(t)
	env.messages.msgs = []*store.Message{
		{
			ID: "m1", RoomID: "u-alice_u-bob", SenderID: "u-alice",
			Content: "hi", Kind: store.KindText, Status: store.StatusSeen,
			CreateTime: time.Unix(1700000000, 0),
		},
	}

	w := env.do("GET", "/api/messages/u-alice_u-bob", "")
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []messageJSON
	decode(t, w, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, store.KindText, msgs[0].Kind)
	assert.Equal(t, float64(1700000000), msgs[0].Timestamp)

	// empty history is an empty array, not null
	w = env.do("GET", "/api/messages/empty_room", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())

	env.messages.listErr = errors.New("db gone")
	w = env.do("GET", "/api/messages/u-alice_u-bob", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	ph := make(textproto.MIMEHeader)
	ph.Set("Content-Disposition", `form-data; name="file"; filename="pic.png"`)
	ph.Set("Content-Type", "image/png")
	fw, err := mw.CreatePart(ph)
	require.NoError(t, err)
	_, err = fw.Write([]byte("png bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.True(t, strings.HasPrefix(resp["url"], "/static/uploads/"))
	assert.True(t, strings.HasSuffix(resp["url"], ".png"))
	assert.Equal(t, store.KindImage, resp["type"])

	// no multipart file part
	w = env.do("POST", "/api/upload", "not multipart")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKindFromContentType(t *testing.T) {
	assert.Equal(t, store.KindImage, kindFromContentType("image/jpeg"))
	assert.Equal(t, store.KindVideo, kindFromContentType("video/mp4"))
	assert.Equal(t, store.KindVoice, kindFromContentType("audio/ogg"))
	assert.Equal(t, store.KindText, kindFromContentType("application/pdf"))
	assert.Equal(t, store.KindText, kindFromContentType(""))
}
