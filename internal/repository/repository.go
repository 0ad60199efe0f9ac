package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("repository: not found")

// TicketStore is the subset of ticket persistence that participates in a transaction.
//
// CreateTicket and UpdateTicket report false when the write lost a race: a stale
// version, or a pending attachment that was purged or claimed in the meantime. Both
// assign identifiers and the new version back onto the ticket they are given.
type TicketStore interface {
	GetTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	CreateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error)
	UpdateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error)
	GetTicketChanges(ctx context.Context, ticket *domain.Ticket) (map[string]string, error)
	ClearTags(ctx context.Context, ticket *domain.Ticket) error
	RemoveAttachment(ctx context.Context, attachment domain.TicketAttachment) error
}

// TicketRepository encapsulates ticket, attachment and tag persistence.
type TicketRepository interface {
	TicketStore

	// InTx runs fn against a transactional view. A non-nil error from fn rolls back.
	InTx(ctx context.Context, fn func(store TicketStore) error) error
	ListTickets(ctx context.Context, query TicketQuery) (TicketPage, error)
	AddPendingAttachment(ctx context.Context, attachment *domain.TicketAttachment) (string, error)
	GetPendingAttachment(ctx context.Context, fileID string) (*domain.TicketAttachment, error)
	CleanUpDerelictAttachments(ctx context.Context, hoursOld int) (bool, error)
	GetDistinctTagsStartingWith(ctx context.Context, prefix string, max int) ([]string, error)
}

// UserRepository reads and maintains the user directory.
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	GetByUserName(ctx context.Context, userName string) (*domain.User, error)
}
