package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestUserServiceAddUserRefreshesDirectory(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUsers(domain.User{UserName: "carol", DisplayName: "Carol", Roles: []domain.UserRole{domain.RoleHelpDesk}})
	directory := auth.NewDirectory(users, time.Minute, zap.NewNop())
	svc := NewUserService(users, directory, auth.NewTokenManager("secret", 5))

	assert.Equal(t, "Carol", directory.DisplayName("carol"))
	_, err := svc.AddUser(ctx, "carol", "Carol King", "carol@corp.test", []domain.UserRole{domain.RoleHelpDesk})
	require.NoError(t, err)
	assert.Equal(t, "Carol King", directory.DisplayName("carol"))

	_, err = svc.AddUser(ctx, " ", "", "", nil)
	assert.Equal(t, "VALIDATION_FAILED", errorutil.ToDomainError(err).Code)
	_, err = svc.AddUser(ctx, "dave", "", "", []domain.UserRole{"JANITOR"})
	assert.Equal(t, "VALIDATION_FAILED", errorutil.ToDomainError(err).Code)
}

func TestUserServiceIssueToken(t *testing.T) {
	ctx := context.Background()
	tokens := auth.NewTokenManager("secret", 5)
	users := repository.NewMemoryUsers(
		domain.User{UserName: "bob", Roles: []domain.UserRole{domain.RoleHelpDesk}},
		domain.User{UserName: "ghost"},
	)
	svc := NewUserService(users, nil, tokens)

	token, exp, err := svc.IssueToken(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.Equal(t, []domain.UserRole{domain.RoleHelpDesk}, claims.Roles)

	_, _, err = svc.IssueToken(ctx, "nobody")
	assert.Equal(t, "NOT_FOUND", errorutil.ToDomainError(err).Code)
	_, _, err = svc.IssueToken(ctx, "ghost")
	assert.Equal(t, "VALIDATION_FAILED", errorutil.ToDomainError(err).Code)
}
