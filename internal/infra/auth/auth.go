// Package auth issues and validates admin bearer tokens. The core trusts
// whatever passes the token check; it performs no per-operation permission
// model beyond "is an admin".
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/KeaPin/kami/internal/domain"
	"github.com/KeaPin/kami/internal/infra/sqlite"
)

// Config holds token and bootstrap settings.
type Config struct {
	Secret   string
	TokenTTL time.Duration

	// Default admin credentials, used once to bootstrap the very first
	// account when the admins table is empty.
	DefaultUsername string
	DefaultPassword string
}

// Service authenticates admins and mints JWT bearer tokens.
type Service struct {
	db        *sqlite.DB
	tokenAuth *jwtauth.JWTAuth
	cfg       Config
}

// New creates the auth service. HS256 over the configured secret.
func New(db *sqlite.DB, cfg Config) *Service {
	return &Service{
		db:        db,
		tokenAuth: jwtauth.New("HS256", []byte(cfg.Secret), nil),
		cfg:       cfg,
	}
}

// TokenAuth exposes the verifier for route middleware.
func (s *Service) TokenAuth() *jwtauth.JWTAuth {
	return s.tokenAuth
}

// Session is a freshly issued admin session.
type Session struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Login verifies credentials and returns a bearer token. When no admin
// account exists yet and the default credentials are presented, the first
// account is created on the spot.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	admin, err := s.db.GetAdminByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("look up admin: %w", err)
	}

	if admin == nil {
		admin, err = s.maybeBootstrap(ctx, username, password)
		if err != nil {
			return nil, err
		}
	} else if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrBadCredentials
	}

	return s.issueSession(admin)
}

// maybeBootstrap creates the first admin when the table is empty and the
// presented credentials match the configured defaults.
func (s *Service) maybeBootstrap(ctx context.Context, username, password string) (*domain.Admin, error) {
	count, err := s.db.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("count admins: %w", err)
	}
	if count > 0 || username != s.cfg.DefaultUsername || password != s.cfg.DefaultPassword {
		return nil, domain.ErrBadCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := domain.Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.db.CreateAdmin(ctx, admin); err != nil {
		return nil, fmt.Errorf("create default admin: %w", err)
	}
	log.WithField("username", username).Info("bootstrapped default admin account")
	return &admin, nil
}

func (s *Service) issueSession(admin *domain.Admin) (*Session, error) {
	now := time.Now()
	expires := now.Add(s.cfg.TokenTTL)
	_, token, err := s.tokenAuth.Encode(map[string]interface{}{
		"admin_id": admin.ID,
		"username": admin.Username,
		"iat":      now.Unix(),
		"exp":      expires.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	return &Session{
		Token:     token,
		Username:  admin.Username,
		ExpiresIn: int64(s.cfg.TokenTTL.Seconds()),
	}, nil
}
