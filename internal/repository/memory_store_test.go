package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func newTicket(title string) *domain.Ticket {
	t := &domain.Ticket{
		Title:          title,
		Details:        "details of " + title,
		Category:       "General",
		Type:           "Request",
		CurrentStatus:  domain.TicketStatusActive,
		Owner:          "alice",
		CreatedBy:      "alice",
		LastUpdateDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Comments:       []domain.TicketComment{{CommentedBy: "alice", CommentEvent: "created the ticket"}},
	}
	t.SetTagList("printer,floor3")
	return t
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pending := &domain.TicketAttachment{FileName: "shot.png"}
	fileID, err := store.AddPendingAttachment(ctx, pending)
	require.NoError(t, err)
	require.NotEmpty(t, fileID)

	ticket := newTicket("Printer jam")
	ticket.Attachments = []domain.TicketAttachment{*pending}
	ok, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), ticket.ID)
	assert.Equal(t, int64(1), ticket.Version)
	assert.Equal(t, int64(1), ticket.Comments[0].ID)

	got, err := store.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Printer jam", got.Title)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, ticket.ID, got.Comments[0].TicketID)
	require.Len(t, got.Attachments, 1)
	assert.False(t, got.Attachments[0].IsPending)
	assert.Equal(t, []domain.Tag{{TicketID: 1, TagName: "floor3"}, {TicketID: 1, TagName: "printer"}}, got.Tags)

	_, err = store.GetPendingAttachment(ctx, fileID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetTicket(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreOptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := newTicket("VPN")
	_, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)

	first, _ := store.GetTicket(ctx, ticket.ID)
	second, _ := store.GetTicket(ctx, ticket.ID)

	first.CurrentStatus = domain.TicketStatusResolved
	first.Comments = append(first.Comments, domain.TicketComment{CommentEvent: "resolved the ticket"})
	ok, err := store.UpdateTicket(ctx, first)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), first.Version)
	assert.Equal(t, int64(2), first.Comments[1].ID)

	second.Title = "stale"
	ok, err = store.UpdateTicket(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := store.GetTicket(ctx, ticket.ID)
	assert.Equal(t, "VPN", got.Title)
	assert.Len(t, got.Comments, 2)
}

func TestMemoryStoreInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := newTicket("Laptop")
	_, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.InTx(ctx, func(tx TicketStore) error {
		current, err := tx.GetTicket(ctx, ticket.ID)
		require.NoError(t, err)
		require.NoError(t, tx.ClearTags(ctx, current))
		current.SetTagList("other")
		current.Comments = append(current.Comments, domain.TicketComment{CommentEvent: "edited"})
		ok, err := tx.UpdateTicket(ctx, current)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Len(t, got.Comments, 1)
	assert.Len(t, got.Tags, 2)
}

func TestMemoryStoreClearTagsReplacesSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := newTicket("Tags")
	ticket.SetTagList("a,b")
	_, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)

	current, _ := store.GetTicket(ctx, ticket.ID)
	require.NoError(t, store.ClearTags(ctx, current))
	current.SetTagList("a,c")
	ok, err := store.UpdateTicket(ctx, current)
	require.NoError(t, err)
	require.True(t, ok)

	tags, err := store.GetDistinctTagsStartingWith(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, tags)
}

func TestMemoryStoreGetTicketChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ticket := newTicket("Mouse")
	_, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)

	proposed, _ := store.GetTicket(ctx, ticket.ID)
	proposed.Priority = domain.TicketPriorityHigh
	proposed.CurrentStatus = domain.TicketStatusClosed
	changes, err := store.GetTicketChanges(ctx, proposed)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		domain.FieldPriority:      "",
		domain.FieldCurrentStatus: "ACTIVE",
	}, changes)
}

func TestMemoryStoreRejectsClaimedAttachment(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pending := &domain.TicketAttachment{FileName: "log.txt"}
	_, err := store.AddPendingAttachment(ctx, pending)
	require.NoError(t, err)

	first := newTicket("one")
	first.Attachments = []domain.TicketAttachment{*pending}
	ok, err := store.CreateTicket(ctx, first)
	require.NoError(t, err)
	require.True(t, ok)

	second := newTicket("two")
	second.Attachments = []domain.TicketAttachment{*pending}
	ok, err = store.CreateTicket(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreCleanUpDerelictAttachments(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.SetClock(func() time.Time { return now })

	old := &domain.TicketAttachment{FileName: "old", UploadedDate: now.Add(-30 * time.Hour)}
	fresh := &domain.TicketAttachment{FileName: "fresh"}
	_, _ = store.AddPendingAttachment(ctx, old)
	_, _ = store.AddPendingAttachment(ctx, fresh)

	removed, err := store.CleanUpDerelictAttachments(ctx, 24)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = store.GetPendingAttachment(ctx, old.FileID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetPendingAttachment(ctx, fresh.FileID)
	assert.NoError(t, err)

	removed, err = store.CleanUpDerelictAttachments(ctx, 24)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryStoreListTickets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bob := "bob"
	for i, title := range []string{"Alpha printer", "Beta laptop", "Gamma printer"} {
		ticket := newTicket(title)
		ticket.LastUpdateDate = ticket.LastUpdateDate.Add(time.Duration(i) * time.Hour)
		if i == 1 {
			ticket.AssignedTo = &bob
		}
		_, err := store.CreateTicket(ctx, ticket)
		require.NoError(t, err)
	}

	page, err := store.ListTickets(ctx, TicketQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "Gamma printer", page.Tickets[0].Title)

	page, err = store.ListTickets(ctx, TicketQuery{Sort: "title", PageSize: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Tickets, 1)
	assert.Equal(t, "Gamma printer", page.Tickets[0].Title)

	page, err = store.ListTickets(ctx, TicketQuery{Filter: TicketFilter{Search: "PRINTER", Unassigned: true}})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = store.ListTickets(ctx, TicketQuery{Filter: TicketFilter{AssignedTo: "bob", Tag: "Printer"}})
	require.NoError(t, err)
	require.Len(t, page.Tickets, 1)
	assert.Equal(t, "Beta laptop", page.Tickets[0].Title)
	assert.Empty(t, page.Tickets[0].Comments)
}

func TestTicketQueryNormalize(t *testing.T) {
	page, size, key, desc := TicketQuery{Page: -1, PageSize: 1000, Sort: "-title"}.normalize()
	assert.Equal(t, 1, page)
	assert.Equal(t, maxPageSize, size)
	assert.Equal(t, "title", key)
	assert.True(t, desc)

	_, size, key, desc = TicketQuery{Sort: "password"}.normalize()
	assert.Equal(t, defaultPageSize, size)
	assert.Equal(t, "lastUpdateDate", key)
	assert.True(t, desc)
	assert.Equal(t, `50\%\_off`, escapeLike("50%_off"))
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUsers(domain.User{UserName: "alice", DisplayName: "Alice", Roles: []domain.UserRole{domain.RoleInternalUser}})

	got, err := users.GetByUserName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = users.GetByUserName(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
