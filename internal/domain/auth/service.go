package auth

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	Store    *Store
	Secret   string
	TokenTTL time.Duration
}

func NewService(store *Store, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Service{Store: store, Secret: secret, TokenTTL: tokenTTL}
}

// Login verifies the password and issues a signed access token. Lookup and
// compare failures are collapsed into one error so callers cannot probe for
// registered emails.
func (s *Service) Login(ctx context.Context, email, password string) (string, AuthUser, error) {
	user, err := s.Store.FindActiveUserByEmail(ctx, email)
	if err != nil {
		return "", AuthUser{}, ErrInvalidCredentials
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return "", AuthUser{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.Secret, Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		RoleID:   user.RoleID,
		RoleName: user.RoleName,
	}, s.TokenTTL)
	if err != nil {
		return "", AuthUser{}, err
	}
	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		return "", AuthUser{}, err
	}
	return token, user, nil
}

func (s *Service) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	return s.Store.HasPermission(ctx, roleID, permission)
}
