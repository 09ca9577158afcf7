package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/famworld/famagent/internal/debug"
	"github.com/famworld/famagent/store"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	docs := store.NewMemory()
	return NewService(docs, debug.Discard()), docs
}

func TestSignupAndLogin(t *testing.T) {
	service, _ := newTestService(t)

	user, err := service.Signup("Ada Lovelace", "Ada@Example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", user.Name)
	// Emails are normalized.
	require.Equal(t, "ada@example.com", user.Email)
	require.NotEmpty(t, user.Avatar)

	loggedIn, err := service.Login("ada@example.COM", "hunter2")
	require.NoError(t, err)
	require.Equal(t, user.Email, loggedIn.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Signup("Ada", "ada@example.com", "hunter2")
	require.NoError(t, err)

	_, err = service.Login("ada@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login("nobody@example.com", "hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Signup("Ada", "ada@example.com", "hunter2")
	require.NoError(t, err)

	_, err = service.Signup("Other Ada", "ADA@example.com", "different")
	require.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestPasswordsAreNotStoredInClear(t *testing.T) {
	service, docs := newTestService(t)
	_, err := service.Signup("Ada", "ada@example.com", "hunter2")
	require.NoError(t, err)

	value, ok, err := docs.Get("famagent_users_db")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, value, "hunter2")
}

func TestFederatedLoginCreatesThenFinds(t *testing.T) {
	service, _ := newTestService(t)

	hint := &User{Name: "Demo User", Email: "Demo@Example.com"}
	created, err := service.FederatedLogin(hint)
	require.NoError(t, err)
	require.Equal(t, "demo@example.com", created.Email)
	require.NotEmpty(t, created.Avatar)

	// A second federated login resolves the same account.
	again, err := service.FederatedLogin(&User{Name: "Ignored", Email: "demo@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Demo User", again.Name)
}

func TestUpdateProfile(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Signup("Ada", "ada@example.com", "hunter2")
	require.NoError(t, err)

	name := "Ada King"
	updated, err := service.UpdateProfile("ada@example.com", ProfilePatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Ada King", updated.Name)

	// The patch is durable.
	user, err := service.Login("ada@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "Ada King", user.Name)
}

func TestUpdateProfileUnknownAccount(t *testing.T) {
	service, _ := newTestService(t)
	name := "Nobody"
	_, err := service.UpdateProfile("nobody@example.com", ProfilePatch{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptUsersDocumentIsEmptySet(t *testing.T) {
	service, docs := newTestService(t)
	require.NoError(t, docs.Put("famagent_users_db", "{corrupt"))

	_, err := service.Login("ada@example.com", "hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Signup still works, replacing the corrupt document.
	_, err = service.Signup("Ada", "ada@example.com", "hunter2")
	require.NoError(t, err)
}
