package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserService maintains the user directory and issues identity tokens for it.
type UserService struct {
	users     repository.UserRepository
	directory *auth.Directory
	tokenMgr  *auth.TokenManager
}

// NewUserService builds the service. directory may be nil when no name cache is in use.
func NewUserService(users repository.UserRepository, directory *auth.Directory, tokenMgr *auth.TokenManager) *UserService {
	return &UserService{users: users, directory: directory, tokenMgr: tokenMgr}
}

// AddUser creates or updates a directory record.
func (s *UserService) AddUser(ctx context.Context, userName, displayName, email string, roles []domain.UserRole) (*domain.User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, errorutil.NewValidationError("user name is required", map[string]any{"userName": "required"})
	}
	for _, role := range roles {
		if !role.Valid() {
			return nil, errorutil.NewValidationError(fmt.Sprintf("unknown role %q", role), map[string]any{"roles": string(role)})
		}
	}
	user := &domain.User{
		UserName:    userName,
		DisplayName: strings.TrimSpace(displayName),
		Email:       strings.TrimSpace(email),
		Roles:       roles,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	if s.directory != nil {
		s.directory.Forget(userName)
	}
	return user, nil
}

// IssueToken signs a token carrying the user's directory roles.
func (s *UserService) IssueToken(ctx context.Context, userName string) (string, time.Time, error) {
	user, err := s.users.GetByUserName(ctx, userName)
	if errors.Is(err, repository.ErrNotFound) {
		return "", time.Time{}, errorutil.NewNotFound("user", map[string]any{"userName": userName})
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if !domain.HasValidRole(user.Roles) {
		return "", time.Time{}, errorutil.NewValidationError("user has no help-desk role", map[string]any{"userName": userName})
	}
	return s.tokenMgr.GenerateToken(user.UserName, user.Roles)
}
