package store

import (
	"context"
	"errors"
	"time"
)

// Message kinds.
const (
	KindText  = "text"
	KindImage = "image"
	KindVideo = "video"
	KindVoice = "voice"
)

// Message statuses. A message starts as `sent` and moves to `seen` at most
// once; it never moves back.
const (
	StatusSent = "sent"
	StatusSeen = "seen"
)

var (
	ErrNotFound           = errors.New("store: not found")
	ErrDuplicateID        = errors.New("store: duplicate message id")
	ErrDuplicateUsername  = errors.New("store: duplicate username")
	ErrInvalidCredentials = errors.New("store: invalid credentials")
	ErrInvalidInvite      = errors.New("store: invalid invite code")
)

// Message is one persisted chat message. All fields except Status are
// immutable after Append.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	Content    string    `json:"content"`
	Kind       string    `json:"type"`
	Status     string    `json:"status"`
	CreateTime time.Time `json:"-"`
}

// Group is a group chat room. Its id doubles as the room id.
type Group struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	InviteCode string `json:"invite_code"`
}

// User is the identity record. Ids are uuids and never contain the direct
// room separator.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type IMessageStore interface {
	// Append persists a new message. Returns ErrDuplicateID if the id is
	// already taken; id collisions are a programming error, not a user
	// condition.
	Append(ctx context.Context, m *Message) error

	// ListByRoom returns all messages of a room ascending by create time;
	// equal timestamps keep insertion order.
	ListByRoom(ctx context.Context, roomID string) ([]*Message, error)

	// UpdateStatus overwrites the status of a message and returns the stored
	// sender id. Returns ErrNotFound if no such message exists. Re-applying
	// the current status is a no-op, not an error.
	UpdateStatus(ctx context.Context, msgID, status string) (senderID string, err error)
}

type IGroupStore interface {
	// CreateGroup creates a group with the owner as first member and a fresh
	// invite code.
	CreateGroup(ctx context.Context, name, ownerID string) (*Group, error)

	// JoinGroup adds the user to the group matching the invite code. Joining
	// twice is a no-op. Returns ErrInvalidInvite for unknown codes.
	JoinGroup(ctx context.Context, inviteCode, userID string) (*Group, error)

	// GroupByInvite looks up a group by invite code without joining.
	GroupByInvite(ctx context.Context, inviteCode string) (*Group, error)

	// MembersOf returns the user ids of all members of a group room.
	MembersOf(ctx context.Context, roomID string) ([]string, error)

	// GroupsOf returns all groups the user belongs to.
	GroupsOf(ctx context.Context, userID string) ([]*Group, error)
}

type IUserStore interface {
	// CreateUser registers a new identity. Returns ErrDuplicateUsername if
	// the username is taken.
	CreateUser(ctx context.Context, name, username, password string) (*User, error)

	// Authenticate verifies username/password. Returns ErrInvalidCredentials
	// on mismatch or unknown username.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// GetUser returns the user by id, or ErrNotFound.
	GetUser(ctx context.Context, id string) (*User, error)

	// ListOthers returns every user except the given one, for the chat list.
	ListOthers(ctx context.Context, excludeID string) ([]*User, error)
}
