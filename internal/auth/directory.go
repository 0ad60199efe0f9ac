package auth

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/repository"
)

const directoryLookupTimeout = 2 * time.Second

// Directory resolves display names from the user repository, caching hits and misses.
type Directory struct {
	users  repository.UserRepository
	cache  *cache.Cache
	logger *zap.Logger
}

// NewDirectory constructs a cached directory.
func NewDirectory(users repository.UserRepository, ttl time.Duration, logger *zap.Logger) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		users:  users,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// DisplayName returns the user's display name or the user name when none is recorded.
func (d *Directory) DisplayName(userName string) string {
	if userName == "" {
		return ""
	}
	if cached, ok := d.cache.Get(userName); ok {
		return cached.(string)
	}

	ctx, cancel := context.WithTimeout(context.Background(), directoryLookupTimeout)
	defer cancel()

	name := userName
	user, err := d.users.GetByUserName(ctx, userName)
	switch {
	case err == nil:
		if user.DisplayName != "" {
			name = user.DisplayName
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		// lookup failures are not cached so the next request retries
		d.logger.Warn("display name lookup failed", zap.String("user", userName), zap.Error(err))
		return name
	}
	d.cache.Set(userName, name, cache.DefaultExpiration)
	return name
}

// Forget drops a cached entry after the directory record changed.
func (d *Directory) Forget(userName string) {
	d.cache.Delete(userName)
}
