package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saireddy1599/WatchTogether/internal/utils"
)

func TestFileUserRepoSeedsDemoAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	repo, err := NewFileUserRepo(path)
	require.NoError(t, err)

	u, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "password"))

	_, err = os.Stat(path)
	require.NoError(t, err, "seed must be written to disk")

	reloaded, err := NewFileUserRepo(path)
	require.NoError(t, err)
	again, err := reloaded.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, again.PasswordHash)

	_, err = repo.GetByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFileUserRepoRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileUserRepo(path)
	assert.Error(t, err)
}

func TestUserRepoGetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta("SELECT username,password_hash FROM users WHERE username=? LIMIT 1")
	mock.ExpectQuery(query).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"username", "password_hash"}).AddRow("alice", "hash"))
	mock.ExpectQuery(query).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	repo := NewUserRepo(db)
	u, err := repo.GetByUsername(context.Background(), " alice ")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)

	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
