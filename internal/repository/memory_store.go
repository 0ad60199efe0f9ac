package repository

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MemoryStore is an in-process TicketRepository. Tickets and comments live in arenas
// indexed by identifier minus one; a ticket row refers to its comments by arena index.
type MemoryStore struct {
	mu          sync.Mutex
	tickets     []ticketRow
	comments    []domain.TicketComment
	attachments map[string]domain.TicketAttachment
	tags        map[int64]map[string]struct{}
	now         func() time.Time
}

type ticketRow struct {
	ticket     domain.Ticket
	commentIdx []int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attachments: make(map[string]domain.TicketAttachment),
		tags:        make(map[int64]map[string]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for upload stamps and purge cutoffs.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// memoryTx runs store operations while the caller already holds the lock.
type memoryTx struct {
	s *MemoryStore
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(store TicketStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(memoryTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemoryStore) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getTicket(id)
}

func (s *MemoryStore) CreateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTicket(ticket), nil
}

func (s *MemoryStore) UpdateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateTicket(ticket)
}

func (s *MemoryStore) GetTicketChanges(ctx context.Context, ticket *domain.Ticket) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticketChanges(ticket)
}

func (s *MemoryStore) ClearTags(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, ticket.ID)
	return nil
}

func (s *MemoryStore) RemoveAttachment(ctx context.Context, attachment domain.TicketAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attachments, attachment.FileID)
	return nil
}

func (tx memoryTx) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return tx.s.getTicket(id)
}

func (tx memoryTx) CreateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	return tx.s.createTicket(ticket), nil
}

func (tx memoryTx) UpdateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	return tx.s.updateTicket(ticket)
}

func (tx memoryTx) GetTicketChanges(ctx context.Context, ticket *domain.Ticket) (map[string]string, error) {
	return tx.s.ticketChanges(ticket)
}

func (tx memoryTx) ClearTags(ctx context.Context, ticket *domain.Ticket) error {
	delete(tx.s.tags, ticket.ID)
	return nil
}

func (tx memoryTx) RemoveAttachment(ctx context.Context, attachment domain.TicketAttachment) error {
	delete(tx.s.attachments, attachment.FileID)
	return nil
}

func (s *MemoryStore) ListTickets(ctx context.Context, query TicketQuery) (TicketPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := query.Filter
	search := strings.ToLower(strings.TrimSpace(f.Search))
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	var matched []domain.Ticket
	for _, row := range s.tickets {
		t := row.ticket
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.CurrentStatus) {
			continue
		}
		if f.Owner != "" && t.Owner != f.Owner {
			continue
		}
		if f.Unassigned && t.IsAssigned() {
			continue
		}
		if !f.Unassigned && f.AssignedTo != "" && t.Assignee() != f.AssignedTo {
			continue
		}
		if tag != "" {
			if _, ok := s.tags[t.ID][tag]; !ok {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Details), search) {
			continue
		}
		matched = append(matched, *t.Clone())
	}

	_, size, key, desc := query.normalize()
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareTickets(&matched[i], &matched[j], key)
		if c == 0 {
			c = cmp.Compare(matched[i].ID, matched[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	page := TicketPage{Total: len(matched)}
	start := query.offset()
	if start >= len(matched) {
		return page, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	page.Tickets = matched[start:end]
	return page, nil
}

func (s *MemoryStore) AddPendingAttachment(ctx context.Context, attachment *domain.TicketAttachment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attachment.FileID == "" {
		attachment.FileID = uuid.NewString()
	}
	attachment.TicketID = nil
	attachment.IsPending = true
	if attachment.UploadedDate.IsZero() {
		attachment.UploadedDate = s.now()
	}
	s.attachments[attachment.FileID] = *attachment
	return attachment.FileID, nil
}

func (s *MemoryStore) GetPendingAttachment(ctx context.Context, fileID string) (*domain.TicketAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	att, ok := s.attachments[fileID]
	if !ok || !att.IsPending {
		return nil, ErrNotFound
	}
	return &att, nil
}

func (s *MemoryStore) CleanUpDerelictAttachments(ctx context.Context, hoursOld int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := false
	for id, att := range s.attachments {
		if att.IsDerelict(now, hoursOld) {
			delete(s.attachments, id)
			removed = true
		}
	}
	return removed, nil
}

func (s *MemoryStore) GetDistinctTagsStartingWith(ctx context.Context, prefix string, max int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max <= 0 {
		max = 10
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	seen := make(map[string]struct{})
	var names []string
	for _, tags := range s.tags {
		for name := range tags {
			if _, dup := seen[name]; dup || !strings.HasPrefix(name, prefix) {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > max {
		names = names[:max]
	}
	return names, nil
}

func (s *MemoryStore) getTicket(id int64) (*domain.Ticket, error) {
	row, ok := s.row(id)
	if !ok {
		return nil, ErrNotFound
	}
	t := row.ticket.Clone()
	for _, idx := range row.commentIdx {
		c := s.comments[idx]
		c.Recipients = append([]string(nil), c.Recipients...)
		t.Comments = append(t.Comments, c)
	}
	var attachments []domain.TicketAttachment
	for _, att := range s.attachments {
		if !att.IsPending && att.TicketID != nil && *att.TicketID == id {
			a := att
			ticketID := *att.TicketID
			a.TicketID = &ticketID
			attachments = append(attachments, a)
		}
	}
	sort.Slice(attachments, func(i, j int) bool {
		if attachments[i].UploadedDate.Equal(attachments[j].UploadedDate) {
			return attachments[i].FileID < attachments[j].FileID
		}
		return attachments[i].UploadedDate.Before(attachments[j].UploadedDate)
	})
	t.Attachments = attachments
	var names []string
	for name := range s.tags[id] {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.Tags = append(t.Tags, domain.Tag{TicketID: id, TagName: name})
	}
	return t, nil
}

func (s *MemoryStore) createTicket(ticket *domain.Ticket) bool {
	if !s.attachmentsLinkable(0, ticket.Attachments) {
		return false
	}
	ticket.ID = int64(len(s.tickets) + 1)
	ticket.Version = 1
	s.tickets = append(s.tickets, ticketRow{})
	s.writeTicket(ticket)
	return true
}

func (s *MemoryStore) updateTicket(ticket *domain.Ticket) (bool, error) {
	row, ok := s.row(ticket.ID)
	if !ok {
		return false, ErrNotFound
	}
	if row.ticket.Version != ticket.Version || !s.attachmentsLinkable(ticket.ID, ticket.Attachments) {
		return false, nil
	}
	ticket.Version++
	s.writeTicket(ticket)
	return true, nil
}

// attachmentsLinkable reports whether every attachment is pending or already belongs to
// ticketID.
func (s *MemoryStore) attachmentsLinkable(ticketID int64, attachments []domain.TicketAttachment) bool {
	for _, att := range attachments {
		stored, ok := s.attachments[att.FileID]
		if !ok {
			return false
		}
		if stored.IsPending {
			continue
		}
		if ticketID == 0 || stored.TicketID == nil || *stored.TicketID != ticketID {
			return false
		}
	}
	return true
}

func (s *MemoryStore) writeTicket(ticket *domain.Ticket) {
	row := &s.tickets[ticket.ID-1]
	for i := range ticket.Comments {
		c := &ticket.Comments[i]
		if c.ID != 0 {
			continue
		}
		c.TicketID = ticket.ID
		s.comments = append(s.comments, *c)
		c.ID = int64(len(s.comments))
		s.comments[c.ID-1].ID = c.ID
		s.comments[c.ID-1].Recipients = append([]string(nil), c.Recipients...)
		row.commentIdx = append(row.commentIdx, int(c.ID-1))
	}

	if s.tags[ticket.ID] == nil {
		s.tags[ticket.ID] = make(map[string]struct{})
	}
	for i := range ticket.Tags {
		ticket.Tags[i].TicketID = ticket.ID
		s.tags[ticket.ID][ticket.Tags[i].TagName] = struct{}{}
	}

	for i := range ticket.Attachments {
		att := &ticket.Attachments[i]
		att.Commit(ticket.ID)
		stored := s.attachments[att.FileID]
		stored.Commit(ticket.ID)
		s.attachments[att.FileID] = stored
	}

	stripped := ticket.Clone()
	stripped.Comments = nil
	stripped.Attachments = nil
	stripped.Tags = nil
	row.ticket = *stripped
}

func (s *MemoryStore) ticketChanges(ticket *domain.Ticket) (map[string]string, error) {
	row, ok := s.row(ticket.ID)
	if !ok {
		return nil, ErrNotFound
	}
	return domain.DiffTicket(&row.ticket, ticket), nil
}

func (s *MemoryStore) row(id int64) (*ticketRow, bool) {
	if id < 1 || id > int64(len(s.tickets)) {
		return nil, false
	}
	return &s.tickets[id-1], true
}

type memorySnapshot struct {
	tickets     []ticketRow
	comments    []domain.TicketComment
	attachments map[string]domain.TicketAttachment
	tags        map[int64]map[string]struct{}
}

func (s *MemoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		tickets:     make([]ticketRow, len(s.tickets)),
		comments:    append([]domain.TicketComment(nil), s.comments...),
		attachments: make(map[string]domain.TicketAttachment, len(s.attachments)),
		tags:        make(map[int64]map[string]struct{}, len(s.tags)),
	}
	for i, row := range s.tickets {
		snap.tickets[i] = ticketRow{ticket: *row.ticket.Clone(), commentIdx: append([]int(nil), row.commentIdx...)}
	}
	for id, att := range s.attachments {
		snap.attachments[id] = att
	}
	for id, names := range s.tags {
		copied := make(map[string]struct{}, len(names))
		for name := range names {
			copied[name] = struct{}{}
		}
		snap.tags[id] = copied
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.tickets = snap.tickets
	s.comments = snap.comments
	s.attachments = snap.attachments
	s.tags = snap.tags
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

func compareTickets(a, b *domain.Ticket, key string) int {
	switch key {
	case "id":
		return cmp.Compare(a.ID, b.ID)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "priority":
		return strings.Compare(string(a.Priority), string(b.Priority))
	case "status":
		return strings.Compare(string(a.CurrentStatus), string(b.CurrentStatus))
	case "owner":
		return strings.Compare(a.Owner, b.Owner)
	case "assignedTo":
		return strings.Compare(a.Assignee(), b.Assignee())
	case "createdDate":
		return a.CreatedDate.Compare(b.CreatedDate)
	default:
		return a.LastUpdateDate.Compare(b.LastUpdateDate)
	}
}
