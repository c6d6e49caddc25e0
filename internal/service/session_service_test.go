package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriplan/api/internal/config"
	"nutriplan/api/internal/kv"
	"nutriplan/api/internal/models"
	"nutriplan/api/internal/security"
)

type sessionFixture struct {
	svc        *SessionService
	persistent *kv.MemoryStore
	ephemeral  *kv.MemoryStore
	clock      *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	persistent := kv.NewMemoryStore()
	ephemeral := kv.NewMemoryStore()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	hasher := security.NewPasswordHasher(1000, zerolog.Nop())
	svc := NewSessionService(persistent, ephemeral, hasher, config.SecurityConfig{
		SessionTTL:  24 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
	}, zerolog.Nop()).WithClock(clock.Now)

	return &sessionFixture{svc: svc, persistent: persistent, ephemeral: ephemeral, clock: clock}
}

func registerTestUser(t *testing.T, f *sessionFixture, email string) models.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  "Str0ng!Password",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterRedactsCredentials(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	user := registerTestUser(t, f, "ada@example.com")
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, security.RoleUser, user.Role)
	assert.Empty(t, user.PasswordDigest, "redacted copy must not expose the digest")
	assert.Empty(t, user.PasswordSalt, "redacted copy must not expose the salt")

	// the stored directory does carry the credential material
	raw, err := f.persistent.Get(ctx, usersKey)
	require.NoError(t, err)
	var stored []models.User
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].PasswordDigest)
	assert.NotEmpty(t, stored[0].PasswordSalt)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newSessionFixture(t)

	registerTestUser(t, f, "ada@example.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "Ada@Example.com", // same address, different case
		Password: "another-password",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginFailureModes(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	registerTestUser(t, f, "ada@example.com")

	_, err := f.svc.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = f.svc.Login(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestLoginStampsLastLogin(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	registerTestUser(t, f, "ada@example.com")
	f.clock.Advance(2 * time.Hour)

	user, err := f.svc.Login(ctx, "ada@example.com", "Str0ng!Password")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)
	assert.Equal(t, f.clock.Now(), *user.LastLoginAt)
	assert.Empty(t, user.PasswordDigest)
}

func TestSessionLifecycleEphemeral(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	user := registerTestUser(t, f, "ada@example.com")
	f.svc.SaveCurrentUser(ctx, user, false)

	current := f.svc.GetCurrentUser(ctx)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)
	assert.True(t, f.svc.IsLoggedIn(ctx))

	// past 24 hours the record is destroyed on read, leaving no marker behind
	f.clock.Advance(24*time.Hour + time.Minute)
	assert.Nil(t, f.svc.GetCurrentUser(ctx))

	_, err := f.ephemeral.Get(ctx, sessionKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = f.ephemeral.Get(ctx, sessionFlagKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSessionRememberedSurvivesEphemeralLoss(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	user := registerTestUser(t, f, "ada@example.com")
	f.svc.SaveCurrentUser(ctx, user, true)

	// simulate a restart: the ephemeral scope is wiped
	f.svc.ephemeral = kv.NewMemoryStore()

	current := f.svc.GetCurrentUser(ctx)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)

	// the persistent record still expires, after 30 days
	f.clock.Advance(30*24*time.Hour + time.Minute)
	assert.Nil(t, f.svc.GetCurrentUser(ctx))
}

func TestSessionScopesMutuallyExclusive(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	user := registerTestUser(t, f, "ada@example.com")

	f.svc.SaveCurrentUser(ctx, user, true)
	_, err := f.persistent.Get(ctx, sessionKey)
	require.NoError(t, err)

	f.svc.SaveCurrentUser(ctx, user, false)
	_, err = f.persistent.Get(ctx, sessionKey)
	assert.ErrorIs(t, err, kv.ErrNotFound, "switching durability must clear the other scope")
	_, err = f.ephemeral.Get(ctx, sessionKey)
	assert.NoError(t, err)
}

func TestLogoutIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	user := registerTestUser(t, f, "ada@example.com")
	f.svc.SaveCurrentUser(ctx, user, true)

	f.svc.Logout(ctx)
	assert.Nil(t, f.svc.GetCurrentUser(ctx))
	f.svc.Logout(ctx) // second call must not blow up
	assert.False(t, f.svc.IsLoggedIn(ctx))
}

func TestSweepExpired(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	user := registerTestUser(t, f, "ada@example.com")
	f.svc.SaveCurrentUser(ctx, user, false)

	f.clock.Advance(25 * time.Hour)
	f.svc.SweepExpired(ctx)

	_, err := f.ephemeral.Get(ctx, sessionKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestUserStats(t *testing.T) {
	f := newSessionFixture(t)

	registerTestUser(t, f, "a@example.com")
	registerTestUser(t, f, "b@example.com")
	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "n@example.com",
		Password: "pw-long-enough",
		Role:     security.RoleNutritionist,
	})
	require.NoError(t, err)

	stats := f.svc.Stats(context.Background())
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 2, stats.RoleDistribution[security.RoleUser])
	assert.Equal(t, 1, stats.RoleDistribution[security.RoleNutritionist])
}

func TestClearAllData(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	user := registerTestUser(t, f, "ada@example.com")
	f.svc.SaveCurrentUser(ctx, user, true)

	f.svc.ClearAllData(ctx)

	assert.Nil(t, f.svc.GetCurrentUser(ctx))
	_, err := f.svc.Login(ctx, "ada@example.com", "Str0ng!Password")
	assert.ErrorIs(t, err, ErrUnknownUser)
}
