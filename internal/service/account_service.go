// Package service holds the account lifecycle logic: registration,
// authentication, session establishment, profile mutation and the cache key
// lifecycle for user projections.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"accountd/internal/models"
	"accountd/internal/utils"
)

// Session keys written by this service.
const (
	sessionKeyUserID   = "user_id"
	sessionKeyUsername = "username"
)

// UserStore is the durable account store. Implementations must enforce
// email/username uniqueness at the storage layer; the pre-checks in this
// service are advisory only.
type UserStore interface {
	Create(ctx context.Context, email, username, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsernameOrEmailExcluding(ctx context.Context, value, excludeID string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id string) (time.Time, error)
}

// ProjectionCache is the short-lived read cache for user projections.
// Implementations are best-effort: failures degrade to misses.
type ProjectionCache interface {
	Get(ctx context.Context, key string) (*models.UserView, bool)
	Set(ctx context.Context, key string, view *models.UserView)
	Delete(ctx context.Context, key string)
}

// Session is the caller's opaque key-value state, owned by the transport
// layer.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Clear()
	SetPersistent(persistent bool)
}

// Outcome is the uniform result of a user-facing account flow. Err is nil on
// success and otherwise one of the models error sentinels; Message is safe to
// show to the user.
type Outcome struct {
	OK      bool
	Message string
	Err     error
}

func success(message string) Outcome {
	return Outcome{OK: true, Message: message}
}

func failure(err error, message string) Outcome {
	return Outcome{Message: message, Err: err}
}

type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

type LoginInput struct {
	Email    string
	Password string
	Remember bool
}

type UpdateProfileInput struct {
	Username           string
	Email              string
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

// AccountService orchestrates account flows against the store, the
// projection cache and the caller's session. It holds no mutable state of
// its own and is safe for concurrent use.
type AccountService struct {
	store UserStore
	cache ProjectionCache
	log   zerolog.Logger
}

func NewAccountService(store UserStore, cache ProjectionCache, log zerolog.Logger) *AccountService {
	return &AccountService{store: store, cache: cache, log: log}
}

func userCacheKey(id string) string {
	return "user:" + id
}

// Register creates a new account. It does not log the user in.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) Outcome {
	if in.Email == "" || in.Username == "" || in.Password == "" || in.ConfirmPassword == "" {
		return failure(models.ErrValidation, "all fields are required")
	}
	if in.Password != in.ConfirmPassword {
		return failure(models.ErrPasswordMismatch, "passwords do not match")
	}

	// Advisory pre-check; the store's unique constraint is the final
	// arbiter for concurrent registrations.
	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return failure(models.ErrDuplicateEmail, "this email is already registered")
	}

	if _, err := s.store.Create(ctx, in.Email, in.Username, in.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateEmail):
			return failure(models.ErrDuplicateEmail, "this email is already registered")
		case errors.Is(err, models.ErrDuplicateUsername):
			return failure(models.ErrDuplicateUsername, "this username is already taken")
		default:
			s.log.Error().Err(err).Msg("registration write failed")
			return failure(models.ErrPersistence, fmt.Sprintf("registration failed: %v", err))
		}
	}

	return success("registration successful, please log in")
}

// Login verifies credentials and establishes the caller's session. Unknown
// email and wrong password are deliberately indistinguishable.
func (s *AccountService) Login(ctx context.Context, sess Session, in LoginInput) Outcome {
	if in.Email == "" || in.Password == "" {
		return failure(models.ErrValidation, "email and password are required")
	}

	user, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil || !utils.CheckPassword(in.Password, user.PasswordHash) {
		return failure(models.ErrInvalidCredentials, "invalid email or password")
	}

	ts, err := s.store.TouchLastLogin(ctx, user.ID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("last login update failed")
		return failure(models.ErrPersistence, fmt.Sprintf("login failed: %v", err))
	}
	user.LastLoginAt = &ts

	sess.Set(sessionKeyUserID, user.ID)
	sess.Set(sessionKeyUsername, user.Username)
	sess.SetPersistent(in.Remember)

	s.cache.Set(ctx, userCacheKey(user.ID), user.View())

	return success("login successful")
}

// Logout invalidates the caller's cache entry and clears the session.
// Calling it without an active session still succeeds.
func (s *AccountService) Logout(ctx context.Context, sess Session) Outcome {
	if id, ok := sess.Get(sessionKeyUserID); ok && id != "" {
		s.cache.Delete(ctx, userCacheKey(id))
	}
	sess.Clear()
	return success("logout successful")
}

// CurrentUser resolves the session's user projection, cache-aside: the cache
// is consulted first, the store on a miss (repopulating the cache). Returns
// nil when the caller has no session identity or the account no longer
// exists; in the latter case the stale session is cleared so subsequent
// calls stop hitting the store.
func (s *AccountService) CurrentUser(ctx context.Context, sess Session) *models.UserView {
	id, ok := sess.Get(sessionKeyUserID)
	if !ok || id == "" {
		return nil
	}

	if view, ok := s.cache.Get(ctx, userCacheKey(id)); ok {
		return view
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			sess.Clear()
		}
		return nil
	}

	view := user.View()
	s.cache.Set(ctx, userCacheKey(id), view)
	return view
}

// UpdateProfile applies username/email and optional password changes for the
// session's user. The current password must verify even when only
// non-password fields change. All field changes persist atomically; on any
// failure nothing is applied and the cache entry is left untouched.
func (s *AccountService) UpdateProfile(ctx context.Context, sess Session, in UpdateProfileInput) Outcome {
	id, ok := sess.Get(sessionKeyUserID)
	if !ok || id == "" {
		return failure(models.ErrUnauthenticated, "you must be logged in to update your profile")
	}
	if in.Username == "" || in.Email == "" || in.CurrentPassword == "" {
		return failure(models.ErrValidation, "username, email and current password are required")
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return failure(models.ErrUserNotFound, "user not found")
		}
		s.log.Error().Err(err).Str("user_id", id).Msg("profile lookup failed")
		return failure(models.ErrPersistence, fmt.Sprintf("profile update failed: %v", err))
	}

	if !utils.CheckPassword(in.CurrentPassword, user.PasswordHash) {
		return failure(models.ErrInvalidCredentials, "current password is incorrect")
	}

	if in.Email != user.Email {
		if out := s.checkTaken(ctx, in.Email, id, models.ErrDuplicateEmail,
			"this email is already used by another account"); out != nil {
			return *out
		}
	}
	if in.Username != user.Username {
		if out := s.checkTaken(ctx, in.Username, id, models.ErrDuplicateUsername,
			"this username is already used by another account"); out != nil {
			return *out
		}
	}

	if in.NewPassword != "" {
		if in.NewPassword != in.ConfirmNewPassword {
			return failure(models.ErrPasswordMismatch, "new passwords do not match")
		}
		hash, err := utils.HashPassword(in.NewPassword)
		if err != nil {
			return failure(models.ErrPersistence, fmt.Sprintf("profile update failed: %v", err))
		}
		user.PasswordHash = hash
	}

	user.Username = in.Username
	user.Email = in.Email

	if err := s.store.Save(ctx, user); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateEmail):
			return failure(models.ErrDuplicateEmail, "this email is already used by another account")
		case errors.Is(err, models.ErrDuplicateUsername):
			return failure(models.ErrDuplicateUsername, "this username is already used by another account")
		case errors.Is(err, models.ErrUserNotFound):
			return failure(models.ErrUserNotFound, "user not found")
		default:
			s.log.Error().Err(err).Str("user_id", id).Msg("profile write failed")
			return failure(models.ErrPersistence, fmt.Sprintf("profile update failed: %v", err))
		}
	}

	sess.Set(sessionKeyUsername, user.Username)

	key := userCacheKey(user.ID)
	s.cache.Delete(ctx, key)
	s.cache.Set(ctx, key, user.View())

	return success("profile updated successfully")
}

// checkTaken reports whether value (email or username) already belongs to a
// different user. Returns nil when the value is free.
func (s *AccountService) checkTaken(ctx context.Context, value, excludeID string, dup error, message string) *Outcome {
	_, err := s.store.FindByUsernameOrEmailExcluding(ctx, value, excludeID)
	if err == nil {
		out := failure(dup, message)
		return &out
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		s.log.Error().Err(err).Msg("uniqueness check failed")
		out := failure(models.ErrPersistence, fmt.Sprintf("profile update failed: %v", err))
		return &out
	}
	return nil
}
