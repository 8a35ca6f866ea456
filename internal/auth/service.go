// Package auth implements admin login and password management.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/briangreenhill/xui-console/internal/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidOldPassword = errors.New("invalid old password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUsernameRequired   = errors.New("username is required")
)

// invalidCredentialsMessage is the only failure text a login attempt reveals.
const invalidCredentialsMessage = "Invalid username or password"

const minPasswordLen = 8

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`
	User    *UserInfo `json:"user,omitempty"`
}

type UserInfo struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Status is the body of the auth check endpoint.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	User          *UserInfo `json:"user,omitempty"`
}

// Store is the subset of db.Queries the service needs.
type Store interface {
	GetActiveAdminByUsername(ctx context.Context, username string) (db.AdminUser, error)
	GetAdmin(ctx context.Context, id uuid.UUID) (db.AdminUser, error)
	CreateAdmin(ctx context.Context, arg db.CreateAdminParams) (db.AdminUser, error)
	UpdateAdminPassword(ctx context.Context, arg db.UpdateAdminPasswordParams) error
	CountAdmins(ctx context.Context) (int64, error)
}

// LoginRecorder persists a successful login out of band.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, adminID uuid.UUID, at time.Time) error
}

type Service struct {
	store    Store
	recorder LoginRecorder // optional
	cost     int
	now      func() time.Time
}

func NewService(store Store, recorder LoginRecorder) *Service {
	return &Service{
		store:    store,
		recorder: recorder,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// WithCost returns a copy of s hashing with the given bcrypt cost. Tests use
// bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	cp := *s
	cp.cost = cost
	return &cp
}

// Login checks credentials. Bad credentials are reported in the response,
// not as an error; errors are reserved for storage failures.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.store.GetActiveAdminByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &LoginResponse{Success: false, Message: invalidCredentialsMessage}, nil
		}
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return &LoginResponse{Success: false, Message: invalidCredentialsMessage}, nil
	}

	if s.recorder != nil {
		if err := s.recorder.RecordLogin(ctx, user.ID, s.now()); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("admin_id", user.ID.String()).Msg("record login failed")
		}
	}

	return &LoginResponse{
		Success: true,
		User:    &UserInfo{ID: user.ID, Username: user.Username},
	}, nil
}

// GetUser returns the admin with the given id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*UserInfo, error) {
	user, err := s.store.GetAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, db.ErrNotFound
	}
	return &UserInfo{ID: user.ID, Username: user.Username}, nil
}

func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*UserInfo, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateAdmin(ctx, db.CreateAdminParams{
		Username:     username,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return &UserInfo{ID: user.ID, Username: user.Username}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.store.GetAdmin(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidOldPassword
	}
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}

	return s.store.UpdateAdminPassword(ctx, db.UpdateAdminPasswordParams{
		ID:           user.ID,
		PasswordHash: string(hash),
	})
}

// HasAdmin reports whether any admin account exists.
func (s *Service) HasAdmin(ctx context.Context) (bool, error) {
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetPassword sets a new password for username without the old one. It is
// meant for operator tooling, never for the HTTP API.
func (s *Service) ResetPassword(ctx context.Context, username, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	user, err := s.store.GetActiveAdminByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	return s.store.UpdateAdminPassword(ctx, db.UpdateAdminPasswordParams{
		ID:           user.ID,
		PasswordHash: string(hash),
	})
}
