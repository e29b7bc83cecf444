package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour, NewMemoryStore())
	token, issued, err := m.Issue("admin")
	require.NoError(t, err)
	assert.True(t, issued.Authenticated)

	s, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "admin", s.Username)
	assert.Equal(t, issued.ID, s.ID)
}

func TestParseRejectsWrongSecretAndGarbage(t *testing.T) {
	token, _, err := NewManager("one", time.Hour, nil).Issue("admin")
	require.NoError(t, err)

	other := NewManager("two", time.Hour, nil)
	_, err = other.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = other.Parse(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestParseRejectsNonAdminToken(t *testing.T) {
	claims := Claims{
		Admin: false,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ID:        "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewManager("secret", time.Hour, nil).Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionExpires(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := NewManager("secret", time.Hour, nil).WithClock(clock.Now)

	token, _, err := m.Issue("admin")
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRevokedSessionIsRejected(t *testing.T) {
	ctx := context.Background()
	m := NewManager("secret", time.Hour, NewMemoryStore())

	token, s, err := m.Issue("admin")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, s))

	_, err = m.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// 其他会话不受影响
	token2, _, err := m.Issue("admin")
	require.NoError(t, err)
	_, err = m.Parse(ctx, token2)
	assert.NoError(t, err)
}

func TestRevokeAnonymousIsNoop(t *testing.T) {
	m := NewManager("secret", time.Hour, nil)
	assert.NoError(t, m.Revoke(context.Background(), Anonymous()))
}

func TestMemoryStoreForgetsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	store := NewMemoryStore()
	store.now = clock.Now

	require.NoError(t, store.Revoke(ctx, "a", time.Minute))
	revoked, err := store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	clock.t = clock.t.Add(2 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)
}
