package devstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meowecho-tech/vote/internal/config"
	"github.com/meowecho-tech/vote/internal/ids"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/security"
)

// CreateUser stores a user with an argon2id password hash. Self-registration
// always gets the voter role; seeded users may carry any role.
func (s *Store) CreateUser(email, password, fullName string, role models.Role) (models.User, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	key := normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[key]; exists {
		return models.User{}, ErrEmailTaken
	}
	user := &models.User{
		ID:           ids.New(),
		Email:        strings.TrimSpace(email),
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return *user, nil
}

func (s *Store) UserByID(id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return *user, nil
}

func (s *Store) userByEmail(email string) (*models.User, bool) {
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, false
	}
	return s.users[id], true
}

// StartLogin checks the password and issues a one-time code, replacing any
// earlier code for the user.
func (s *Store) StartLogin(email, password string) (string, error) {
	s.mu.RLock()
	user, ok := s.userByEmail(email)
	var hash []byte
	var userID string
	if ok {
		hash = user.PasswordHash
		userID = user.ID
	}
	s.mu.RUnlock()
	if !ok {
		return "", ErrInvalidCredentials
	}

	valid, err := security.VerifyPassword(password, hash)
	if err != nil || !valid {
		return "", ErrInvalidCredentials
	}

	code, err := security.GenerateOTP(6)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.otps[userID] = &otpCode{code: code, expiresAt: s.now().Add(otpTTL)}
	s.mu.Unlock()
	return code, nil
}

// VerifyOTP consumes the latest code. Wrong codes count against a small
// attempt budget.
func (s *Store) VerifyOTP(email, code string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.userByEmail(email)
	if !ok {
		return models.User{}, ErrInvalidOTP
	}
	otp, ok := s.otps[user.ID]
	if !ok || otp.consumed || s.now().After(otp.expiresAt) || otp.attempts >= otpMaxAttempts {
		return models.User{}, ErrInvalidOTP
	}
	if otp.code != strings.TrimSpace(code) {
		otp.attempts++
		return models.User{}, ErrInvalidOTP
	}
	otp.consumed = true
	return *user, nil
}

func (s *Store) IssueRefreshToken(userID string, ttl time.Duration) (string, error) {
	token, hash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.refresh[hex.EncodeToString(hash)] = &refreshRecord{userID: userID, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return token, nil
}

// RotateRefreshToken revokes the presented token and issues its successor.
// A revoked token is never accepted again.
func (s *Store) RotateRefreshToken(token string, ttl time.Duration) (models.User, string, error) {
	key := hex.EncodeToString(security.HashRefreshToken(token))

	s.mu.Lock()
	record, ok := s.refresh[key]
	if !ok || record.revoked || s.now().After(record.expiresAt) {
		s.mu.Unlock()
		return models.User{}, "", ErrInvalidRefresh
	}
	record.revoked = true
	user, ok := s.users[record.userID]
	s.mu.Unlock()
	if !ok {
		return models.User{}, "", ErrInvalidRefresh
	}

	next, err := s.IssueRefreshToken(user.ID, ttl)
	if err != nil {
		return models.User{}, "", err
	}
	return *user, next, nil
}

// Resolve looks up a user by id, then by case-insensitive email.
func (s *Store) Resolve(_ context.Context, identifier string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[identifier]; ok {
		return user.ID, true, nil
	}
	if user, ok := s.userByEmail(identifier); ok {
		return user.ID, true, nil
	}
	return "", false, nil
}

// Seed creates the configured users. Unknown roles fall back to voter and
// already registered emails are skipped.
func (s *Store) Seed(users []config.SeedUser) error {
	for _, seed := range users {
		role, ok := models.ParseRole(seed.Role)
		if !ok {
			role = models.RoleVoter
		}
		user, err := s.CreateUser(seed.Email, seed.Password, seed.FullName, role)
		if errors.Is(err, ErrEmailTaken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.Email, err)
		}
		s.log.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("seeded user")
	}
	return nil
}
