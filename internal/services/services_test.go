package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go-userapi/internal/models"
	"go-userapi/internal/pkg/validation"
	"go-userapi/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixture struct {
	repo   *fakeUserRepo
	tokens *utils.TokenManager
	auth   AuthService
	users  UserService
	audit  *observer.ObservedLogs
	log    Loggers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeUserRepo()
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	core, audit := observer.New(zapcore.InfoLevel)
	return &fixture{
		repo:   repo,
		tokens: tokens,
		auth:   NewAuthService(repo, tokens, zap.NewNop()),
		users:  NewUserService(repo, zap.NewNop()),
		audit:  audit,
		log:    Loggers{Audit: zap.New(core)},
	}
}

func (f *fixture) register(t *testing.T, username, email string) *models.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), f.log, validation.RegisterInput{
		Username: username, Password: "secret1", Email: email, Nama: "Name " + username,
	})
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }

func TestRegister(t *testing.T) {
	f := newFixture(t)

	u := f.register(t, "alice", "a@example.com")
	assert.Positive(t, u.ID)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, utils.CheckPasswordHash("secret1", u.PasswordHash))
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, 1, f.audit.FilterMessage("user.register").Len())
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), f.log, validation.RegisterInput{Username: "alice"})
	require.ErrorIs(t, err, ErrValidation)

	var ferr *validation.FieldError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "password", ferr.Field)
	assert.Empty(t, f.repo.users)
}

func TestRegister_Conflict(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@example.com")

	_, err := f.auth.Register(context.Background(), f.log, validation.RegisterInput{
		Username: "alice", Password: "secret1", Email: "other@example.com", Nama: "A",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = f.auth.Register(context.Background(), f.log, validation.RegisterInput{
		Username: "alice2", Password: "secret1", Email: "a@example.com", Nama: "A",
	})
	assert.ErrorIs(t, err, ErrUserExists)
	assert.Len(t, f.repo.users, 1)
}

func TestRegister_LateConflictFromStorage(t *testing.T) {
	f := newFixture(t)
	f.repo.raceOnCreate = true

	_, err := f.auth.Register(context.Background(), f.log, validation.RegisterInput{
		Username: "alice", Password: "secret1", Email: "a@example.com", Nama: "A",
	})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_StorageError(t *testing.T) {
	f := newFixture(t)
	f.repo.failWith = errDBDown

	_, err := f.auth.Register(context.Background(), Loggers{}, validation.RegisterInput{
		Username: "alice", Password: "secret1", Email: "a@example.com", Nama: "A",
	})
	assert.ErrorIs(t, err, errDBDown)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@example.com")

	token, user, err := f.auth.Login(context.Background(), f.log, validation.LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	subject, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, subject)
	assert.Equal(t, 1, f.audit.FilterMessage("user.login").Len())
}

func TestLogin_SameErrorForUnknownUserAndWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@example.com")

	_, _, wrongPassword := f.auth.Login(context.Background(), f.log, validation.LoginInput{Username: "alice", Password: "wrong"})
	_, _, unknownUser := f.auth.Login(context.Background(), f.log, validation.LoginInput{Username: "nobody", Password: "secret1"})

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, 2, f.audit.FilterMessage("user.login_failed").Len())
}

func TestDummyPasswordHash(t *testing.T) {
	h := dummyPasswordHash()
	require.True(t, strings.HasPrefix(h, "$argon2id$"), h)
	assert.Equal(t, h, dummyPasswordHash())
	assert.False(t, utils.CheckPasswordHash("", h))
	assert.False(t, utils.CheckPasswordHash("secret1", h))
}

func TestLogin_Validation(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.auth.Login(context.Background(), f.log, validation.LoginInput{Username: "alice"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"ann", "ben", "cat"} {
		f.register(t, name, name+"@example.com")
	}

	res, err := f.users.List(context.Background(), f.log, ListQuery{Page: 0, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 2, res.PerPage)
	assert.Equal(t, int64(3), res.Total)
	assert.Len(t, res.Items, 2)

	res, err = f.users.List(context.Background(), f.log, ListQuery{Page: 5, PerPage: 2})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)

	res, err = f.users.List(context.Background(), f.log, ListQuery{Page: math.MaxInt/2 + 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)

	res, err = f.users.List(context.Background(), f.log, ListQuery{Page: 1, PerPage: 0})
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.Equal(t, int64(3), res.Total)

	res, err = f.users.List(context.Background(), f.log, ListQuery{Page: 1, PerPage: 10, Search: "ben"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "ben", res.Items[0].Username)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@example.com")

	got, err := f.users.Get(context.Background(), f.log, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = f.users.Get(context.Background(), f.log, alice.ID+1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdate_OnlyNama(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@example.com")

	updated, err := f.users.Update(context.Background(), f.log, alice.ID, models.UserPatch{Nama: strPtr("Alice L.")})
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", updated.Nama)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, "a@example.com", updated.Email)
	assert.Equal(t, alice.PasswordHash, updated.PasswordHash)
	assert.Equal(t, 1, f.audit.FilterMessage("user.update").Len())
}

func TestUpdate_BlankFieldsIgnored(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@example.com")

	updated, err := f.users.Update(context.Background(), f.log, alice.ID, models.UserPatch{
		Username: strPtr("  "),
		Email:    strPtr("new@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, "new@example.com", updated.Email)
}

func TestUpdate_Errors(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@example.com")
	f.register(t, "bob", "b@example.com")

	_, err := f.users.Update(context.Background(), f.log, alice.ID, models.UserPatch{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.users.Update(context.Background(), f.log, 999, models.UserPatch{Nama: strPtr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.users.Update(context.Background(), f.log, alice.ID, models.UserPatch{Username: strPtr("bob")})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = f.users.Update(context.Background(), f.log, alice.ID, models.UserPatch{Email: strPtr("b@example.com")})
	assert.ErrorIs(t, err, ErrUserExists)

	// Keeping one's own username is not a conflict.
	_, err = f.users.Update(context.Background(), f.log, alice.ID, models.UserPatch{Username: strPtr("alice"), Nama: strPtr("A")})
	assert.NoError(t, err)

	f.repo.raceOnUpdate = true
	_, err = f.users.Update(context.Background(), f.log, alice.ID, models.UserPatch{Nama: strPtr("B")})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "a@example.com")
	bob := f.register(t, "bob", "b@example.com")

	_, err := f.users.Delete(context.Background(), f.log, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrSelfDelete)
	assert.Len(t, f.repo.users, 2)

	deleted, err := f.users.Delete(context.Background(), f.log, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", deleted.Username)
	assert.Len(t, f.repo.users, 1)
	assert.Equal(t, 1, f.audit.FilterMessage("user.delete").Len())

	_, err = f.users.Delete(context.Background(), f.log, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDelete_MissingUserBeforeSelfCheck(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Delete(context.Background(), f.log, 42, 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorageErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	f.repo.failWith = errDBDown

	_, err := f.users.List(context.Background(), f.log, ListQuery{Page: 1, PerPage: 10})
	assert.ErrorIs(t, err, errDBDown)
	_, err = f.users.Get(context.Background(), f.log, 1)
	assert.ErrorIs(t, err, errDBDown)
	_, _, err = f.auth.Login(context.Background(), f.log, validation.LoginInput{Username: "a", Password: "b"})
	assert.ErrorIs(t, err, errDBDown)
}
