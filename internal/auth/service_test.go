package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian/internal/shared"
)

type mockRepository struct {
	users       map[string]*User
	sessions    map[string]int64
	lastLoginID int64

	findError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:    make(map[string]*User),
		sessions: make(map[string]int64),
	}
}

func (m *mockRepository) addUser(t *testing.T, email, password string, active bool) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &User{ID: int64(len(m.users) + 1), Email: email, PasswordHash: string(hash), IsActive: active}
	m.users[email] = user
	return user
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	user, ok := m.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (m *mockRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	m.sessions[id] = userID
	return nil
}

func (m *mockRepository) DeleteSession(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockRepository) TouchLastLogin(ctx context.Context, userID int64) error {
	m.lastLoginID = userID
	return nil
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(t, "sales@meridian.local", "hunter2hunter2", true)
	svc := NewService(repo)

	user, err := svc.Authenticate(context.Background(), "sales@meridian.local", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "sales@meridian.local", user.Email)
	assert.Equal(t, user.ID, repo.lastLoginID)
	require.NotNil(t, user.LastLoginAt)
	assert.WithinDuration(t, time.Now(), *user.LastLoginAt, time.Minute)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	repo := newMockRepository()
	repo.addUser(t, "sales@meridian.local", "hunter2hunter2", true)
	repo.addUser(t, "dormant@meridian.local", "hunter2hunter2", false)
	svc := NewService(repo)

	// Unknown account, wrong password and deactivated account all return
	// the same error.
	_, err := svc.Authenticate(context.Background(), "ghost@meridian.local", "hunter2hunter2")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "sales@meridian.local", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "dormant@meridian.local", "hunter2hunter2")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	assert.Zero(t, repo.lastLoginID)
}

func TestSessionLifecycle(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	require.NoError(t, svc.RegisterSession(context.Background(), "sess-1", 7, time.Now().Add(time.Hour), "10.0.0.1", "test"))
	assert.Equal(t, int64(7), repo.sessions["sess-1"])

	require.NoError(t, svc.RemoveSession(context.Background(), "sess-1"))
	_, ok := repo.sessions["sess-1"]
	assert.False(t, ok)
}
