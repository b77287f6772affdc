// Package handlers exposes the request/response surface: identity, groups,
// uploads, chat lists and room history. Real-time traffic goes through the
// ws package instead.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/gorilla/mux"

	"github.com/kralgram/kralgram/blob"
	"github.com/kralgram/kralgram/store"
)

// uploadMaxBytes bounds a single media upload.
const uploadMaxBytes = 20 << 20

type API struct {
	users    store.IUserStore
	groups   store.IGroupStore
	messages store.IMessageStore
	blobs    *blob.FSStore
}

func NewAPI(users store.IUserStore, groups store.IGroupStore, messages store.IMessageStore, blobs *blob.FSStore) *API {
	return &API{
		users:    users,
		groups:   groups,
		messages: messages,
		blobs:    blobs,
	}
}

// RegisterRoutes mounts all API endpoints on the router.
func (a *API) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/register", a.Register).Methods("POST")
	r.HandleFunc("/api/login", a.Login).Methods("POST")
	r.HandleFunc("/api/upload", a.Upload).Methods("POST")
	r.HandleFunc("/api/create_group", a.CreateGroup).Methods("POST")
	r.HandleFunc("/api/join_group", a.JoinGroup).Methods("POST")
	r.HandleFunc("/api/invite/{code}", a.InviteInfo).Methods("GET")
	r.HandleFunc("/api/my_chats/{userId}", a.MyChats).Methods("GET")
	r.HandleFunc("/api/messages/{roomId}", a.RoomMessages).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("write json err: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, username and password are required")
		return
	}

	u, err := a.users.CreateUser(r.Context(), req.Name, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			writeError(w, http.StatusBadRequest, "username is taken")
			return
		}
		glog.Errorf("Register(): %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := a.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "wrong username or password")
			return
		}
		glog.Errorf("Login(): %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// kindFromContentType maps an upload's declared content type to the message
// kind the client should send it as.
func kindFromContentType(ct string) string {
	switch {
	case strings.HasPrefix(ct, "image/"):
		return store.KindImage
	case strings.HasPrefix(ct, "video/"):
		return store.KindVideo
	case strings.HasPrefix(ct, "audio/"):
		return store.KindVoice
	}
	return store.KindText
}

// Upload stores a media blob and returns its URL plus the message kind
// derived from the declared content type; the client sends the actual
// `message` event over the websocket itself.
func (a *API) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, uploadMaxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "error read file")
		return
	}

	url, err := a.blobs.Store(data, header.Filename)
	if err != nil {
		glog.Errorf("Upload(): %v", err)
		writeError(w, http.StatusInternalServerError, "error store file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url":  url,
		"type": kindFromContentType(header.Header.Get("Content-Type")),
	})
}

func (a *API) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "name and user_id are required")
		return
	}

	g, err := a.groups.CreateGroup(r.Context(), req.Name, req.UserID)
	if err != nil {
		glog.Errorf("CreateGroup(): %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"room_id":     g.ID,
		"name":        g.Name,
		"invite_link": g.InviteCode,
	})
}

func (a *API) JoinGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteLink string `json:"invite_link"`
		UserID     string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := a.groups.JoinGroup(r.Context(), req.InviteLink, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInvite) {
			writeError(w, http.StatusNotFound, "invalid invite link")
			return
		}
		glog.Errorf("JoinGroup(): %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"room_id": g.ID,
		"name":    g.Name,
	})
}

func (a *API) InviteInfo(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	g, err := a.groups.GroupByInvite(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInvite) {
			writeError(w, http.StatusNotFound, "invalid invite link")
			return
		}
		glog.Errorf("InviteInfo(): %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"room_id": g.ID,
		"name":    g.Name,
	})
}

type chatItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// MyChats returns the chat list: groups the user belongs to plus every
// addressable user.
func (a *API) MyChats(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["userId"]

	groups, err := a.groups.GroupsOf(r.Context(), uid)
	if err != nil {
		glog.Errorf("MyChats(): groups: %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}
	users, err := a.users.ListOthers(r.Context(), uid)
	if err != nil {
		glog.Errorf("MyChats(): users: %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}

	groupItems := make([]chatItem, 0, len(groups))
	for _, g := range groups {
		groupItems = append(groupItems, chatItem{ID: g.ID, Name: g.Name, Type: "group"})
	}
	userItems := make([]chatItem, 0, len(users))
	for _, u := range users {
		userItems = append(userItems, chatItem{ID: u.ID, Name: u.Name, Type: "pv"})
	}

	writeJSON(w, http.StatusOK, map[string][]chatItem{
		"groups": groupItems,
		"users":  userItems,
	})
}

type messageJSON struct {
	ID        string  `json:"id"`
	RoomID    string  `json:"room_id"`
	SenderID  string  `json:"sender_id"`
	Content   string  `json:"content"`
	Kind      string  `json:"type"`
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// RoomMessages returns room history ascending by create time.
func (a *API) RoomMessages(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	msgs, err := a.messages.ListByRoom(r.Context(), roomID)
	if err != nil {
		glog.Errorf("RoomMessages(): %v", err)
		writeError(w, http.StatusInternalServerError, "temp storage error")
		return
	}

	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{
			ID:        m.ID,
			RoomID:    m.RoomID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			Kind:      m.Kind,
			Status:    m.Status,
			Timestamp: float64(m.CreateTime.UnixNano()) / 1e9,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
