package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"
)

const (
	insertUserSQL = "INSERT INTO users (id,name,username,password_hash,avatar,create_time) VALUES (?,?,?,?,?,?)"
	getUserSQL    = "SELECT id,name,username,avatar FROM users WHERE id=?"
	getByNameSQL  = "SELECT id,name,username,avatar,password_hash FROM users WHERE username=?"
	listOthersSQL = "SELECT id,name,username,avatar FROM users WHERE id != ? ORDER BY name ASC"
	defaultAvatar = "default"
)

// userStore implements IUserStore on MySQL. It is the canonical identity
// provider for this process; everything else only compares the ids it issues.
type userStore struct {
	*sql.DB
}

func NewUserStore(db *sql.DB) IUserStore {
	return &userStore{db}
}

func (s *userStore) CreateUser(ctx context.Context, name, username, password string) (*User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	// uuid ids contain only hex digits and '-', so they can never collide
	// with the direct room separator.
	u := &User{
		ID:       uuid.New(),
		Name:     name,
		Username: username,
		Avatar:   defaultAvatar,
	}

	if _, err := s.ExecContext(ctx, insertUserSQL,
		u.ID, u.Name, u.Username, hash, u.Avatar, time.Now()); err != nil {
		if isDupKeyError(err) {
			return nil, ErrDuplicateUsername
		}
		glog.Errorf("insert user exec err: %v", err)
		return nil, err
	}
	return u, nil
}

func (s *userStore) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var u User
	var hash string
	row := s.QueryRowContext(ctx, getByNameSQL, username)
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Avatar, &hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		glog.Errorf("get user by name scan err: %v", err)
		return nil, err
	}

	ok, err := verifyPassword(password, hash)
	if err != nil {
		glog.Errorf("verify password err, username: %s, err: %v", username, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (s *userStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	row := s.QueryRowContext(ctx, getUserSQL, id)
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Avatar); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		glog.Errorf("get user scan err: %v", err)
		return nil, err
	}
	return &u, nil
}

func (s *userStore) ListOthers(ctx context.Context, excludeID string) ([]*User, error) {
	rows, err := s.QueryContext(ctx, listOthersSQL, excludeID)
	if err != nil {
		glog.Errorf("list users query err: %v", err)
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Avatar); err != nil {
			glog.Errorf("list users scan err: %v", err)
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}
