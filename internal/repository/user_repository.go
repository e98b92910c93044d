package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Saireddy1599/WatchTogether/internal/model"
	"github.com/Saireddy1599/WatchTogether/internal/utils"
)

// UserStore is the read-only credential store consulted by the login route.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

var (
	_ UserStore = (*FileUserRepo)(nil)
	_ UserStore = (*UserRepo)(nil)
)

// FileUserRepo serves users from a JSON file loaded once at startup.
type FileUserRepo struct {
	users map[string]model.User
}

// NewFileUserRepo loads path.  A missing file is created with a single demo
// account, alice / password.
func NewFileUserRepo(path string) (*FileUserRepo, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return seedUsersFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var list []model.User
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	return newFileUserRepo(list), nil
}

func seedUsersFile(path string) (*FileUserRepo, error) {
	hash, err := utils.HashPassword("password", utils.DefaultCost)
	if err != nil {
		return nil, err
	}
	list := []model.User{{Username: "alice", PasswordHash: hash}}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		slog.Warn("users file not written; demo account kept in memory", "path", path, "err", err)
	}
	return newFileUserRepo(list), nil
}

func newFileUserRepo(list []model.User) *FileUserRepo {
	users := make(map[string]model.User, len(list))
	for _, u := range list {
		users[u.Username] = u
	}
	return &FileUserRepo{users: users}
}

func (r *FileUserRepo) GetByUsername(_ context.Context, username string) (model.User, error) {
	u, ok := r.users[strings.TrimSpace(username)]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return u, nil
}

// UserRepo reads the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByUsername fetches a user by its trimmed username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT username,password_hash FROM users WHERE username=? LIMIT 1",
		strings.TrimSpace(username)).Scan(&u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}
