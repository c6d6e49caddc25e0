package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nutriplan/api/internal/config"
	"nutriplan/api/internal/ids"
	"nutriplan/api/internal/kv"
	"nutriplan/api/internal/models"
	"nutriplan/api/internal/security"
)

var (
	ErrEmailTaken    = errors.New("this email is already registered")
	ErrUnknownUser   = errors.New("user does not exist")
	ErrWrongPassword = errors.New("incorrect password")
)

const (
	usersKey       = "users"
	sessionKey     = "current_user"
	sessionFlagKey = "session_active"

	sessionActive = "active"
)

// SessionService owns the authenticated-identity lifecycle: registration,
// login verification, session persistence and expiry enforcement. Sessions
// live in the ephemeral scope by default and in the persistent scope when the
// caller asks to be remembered; the two scopes are mutually exclusive.
type SessionService struct {
	persistent kv.Store
	ephemeral  kv.Store
	hasher     *security.PasswordHasher
	log        zerolog.Logger
	now        func() time.Time

	sessionTTL  time.Duration
	rememberTTL time.Duration

	// serializes read-modify-write cycles on the user directory within this
	// process; cross-process last-writer-wins races remain an accepted risk
	// of the storage medium.
	mu sync.Mutex
}

func NewSessionService(
	persistent kv.Store,
	ephemeral kv.Store,
	hasher *security.PasswordHasher,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *SessionService {
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	rememberTTL := cfg.RememberTTL
	if rememberTTL <= 0 {
		rememberTTL = 30 * 24 * time.Hour
	}

	return &SessionService{
		persistent:  persistent,
		ephemeral:   ephemeral,
		hasher:      hasher,
		log:         log,
		now:         time.Now,
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
	}
}

// WithClock substitutes the time source. Test hook.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      security.Role
}

// Register creates an account. The returned copy is redacted: digest and salt
// never leave the session store.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.TrimSpace(strings.ToLower(input.Email))

	users := s.loadUsers(ctx)
	if findByEmail(users, email) != -1 {
		return models.User{}, ErrEmailTaken
	}

	hash, err := s.hasher.CreatePasswordHash(input.Password)
	if err != nil {
		return models.User{}, err
	}
	if hash.Degraded {
		// fallback-hashed accounts verify normally but carry a weak digest;
		// see DESIGN.md for the forced-rehash decision
		s.log.Warn().Str("email", email).Msg("account registered with degraded password digest")
	}

	role := input.Role
	if role == "" {
		role = security.RoleUser
	}

	user := models.User{
		ID:             ids.New(),
		Email:          email,
		PasswordDigest: hash.Digest,
		PasswordSalt:   hash.Salt,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Role:           role,
		CreatedAt:      s.now(),
	}

	users = append(users, user)
	s.saveUsers(ctx, users)

	return user.Redacted(), nil
}

// Login verifies credentials and stamps lastLoginAt. The two failure modes
// stay distinguishable so callers can surface specific messages.
func (s *SessionService) Login(ctx context.Context, email, password string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(strings.ToLower(email))

	users := s.loadUsers(ctx)
	idx := findByEmail(users, email)
	if idx == -1 {
		return models.User{}, ErrUnknownUser
	}

	user := users[idx]
	if !s.hasher.VerifyPassword(password, user.PasswordDigest, user.PasswordSalt) {
		return models.User{}, ErrWrongPassword
	}

	loginTime := s.now()
	user.LastLoginAt = &loginTime
	users[idx] = user
	s.saveUsers(ctx, users)

	return user.Redacted(), nil
}

// SaveCurrentUser writes the session record: into the persistent scope with a
// 30-day expiry when remember is set, into the ephemeral scope with a 24-hour
// expiry otherwise. The other scope is cleared so at most one record exists.
func (s *SessionService) SaveCurrentUser(ctx context.Context, user models.User, remember bool) {
	now := s.now()
	record := models.SessionRecord{
		User:      user.Redacted(),
		LoginTime: now,
	}

	target, other := s.ephemeral, s.persistent
	if remember {
		target, other = s.persistent, s.ephemeral
		record.ExpiresAt = now.Add(s.rememberTTL)
	} else {
		record.ExpiresAt = now.Add(s.sessionTTL)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal session record")
		return
	}

	if err := target.Set(ctx, sessionKey, raw); err != nil {
		s.log.Error().Err(err).Msg("save session record")
		return
	}
	if err := target.Set(ctx, sessionFlagKey, []byte(sessionActive)); err != nil {
		s.log.Error().Err(err).Msg("save session flag")
	}

	s.clearScope(ctx, other)
}

// GetCurrentUser returns the logged-in user, checking the ephemeral scope
// before the persistent one. Finding an expired record destroys it on the
// spot and reports no user.
func (s *SessionService) GetCurrentUser(ctx context.Context) *models.User {
	for _, scope := range []kv.Store{s.ephemeral, s.persistent} {
		record, ok := s.readSession(ctx, scope)
		if !ok {
			continue
		}

		if record.Expired(s.now()) {
			s.Logout(ctx)
			return nil
		}

		user := record.User
		return &user
	}
	return nil
}

func (s *SessionService) IsLoggedIn(ctx context.Context) bool {
	return s.GetCurrentUser(ctx) != nil
}

// Logout clears the session record and flag from both scopes. Idempotent.
func (s *SessionService) Logout(ctx context.Context) {
	s.clearScope(ctx, s.ephemeral)
	s.clearScope(ctx, s.persistent)
}

// SweepExpired eagerly destroys expired session records. Lazy expiry in
// GetCurrentUser keeps sessions correct without it; the scheduler calls this
// to avoid stale records lingering in storage.
func (s *SessionService) SweepExpired(ctx context.Context) {
	now := s.now()
	for _, scope := range []kv.Store{s.ephemeral, s.persistent} {
		if record, ok := s.readSession(ctx, scope); ok && record.Expired(now) {
			s.clearScope(ctx, scope)
			s.log.Debug().Time("expired_at", record.ExpiresAt).Msg("swept expired session")
		}
	}
}

// UserStats summarizes the user directory.
type UserStats struct {
	TotalUsers       int                   `json:"totalUsers"`
	RoleDistribution map[security.Role]int `json:"roleDistribution"`
}

func (s *SessionService) Stats(ctx context.Context) UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.loadUsers(ctx)
	stats := UserStats{
		TotalUsers:       len(users),
		RoleDistribution: make(map[security.Role]int),
	}
	for _, user := range users {
		stats.RoleDistribution[user.Role]++
	}
	return stats
}

// ClearAllData wipes the user directory and both session scopes. Development
// aid, not reachable from any route.
func (s *SessionService) ClearAllData(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistent.Delete(ctx, usersKey); err != nil {
		s.log.Error().Err(err).Msg("clear user directory")
	}
	s.clearScope(ctx, s.ephemeral)
	s.clearScope(ctx, s.persistent)
}

func (s *SessionService) readSession(ctx context.Context, scope kv.Store) (models.SessionRecord, bool) {
	flag, err := scope.Get(ctx, sessionFlagKey)
	if err != nil || string(flag) != sessionActive {
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			s.log.Error().Err(err).Msg("read session flag")
		}
		return models.SessionRecord{}, false
	}

	raw, err := scope.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Error().Err(err).Msg("read session record")
		}
		return models.SessionRecord{}, false
	}

	var record models.SessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		s.log.Error().Err(err).Msg("corrupt session record")
		s.clearScope(ctx, scope)
		return models.SessionRecord{}, false
	}
	return record, true
}

func (s *SessionService) clearScope(ctx context.Context, scope kv.Store) {
	if err := scope.Delete(ctx, sessionKey); err != nil {
		s.log.Error().Err(err).Msg("clear session record")
	}
	if err := scope.Delete(ctx, sessionFlagKey); err != nil {
		s.log.Error().Err(err).Msg("clear session flag")
	}
}

// loadUsers reads the whole directory; storage faults degrade to an empty
// directory after logging.
func (s *SessionService) loadUsers(ctx context.Context) []models.User {
	raw, err := s.persistent.Get(ctx, usersKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Error().Err(err).Msg("load user directory")
		}
		return nil
	}

	var users []models.User
	if err := json.Unmarshal(raw, &users); err != nil {
		s.log.Error().Err(err).Msg("corrupt user directory")
		return nil
	}
	return users
}

// saveUsers writes the whole directory back. Best effort.
func (s *SessionService) saveUsers(ctx context.Context, users []models.User) {
	raw, err := json.Marshal(users)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal user directory")
		return
	}
	if err := s.persistent.Set(ctx, usersKey, raw); err != nil {
		s.log.Error().Err(err).Msg("save user directory")
	}
}

func findByEmail(users []models.User, email string) int {
	for i, user := range users {
		if user.Email == email {
			return i
		}
	}
	return -1
}
