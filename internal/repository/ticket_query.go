package repository

import (
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// TicketFilter narrows ticket listings. Zero values do not filter.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Owner      string
	AssignedTo string
	Unassigned bool
	Tag        string
	Search     string
}

// TicketQuery describes one page of a ticket listing. Sort names a column, optionally
// prefixed with "-" for descending order.
type TicketQuery struct {
	Page     int
	PageSize int
	Sort     string
	Filter   TicketFilter
}

// TicketPage is one page of ticket summaries. Comments and attachments are not loaded.
type TicketPage struct {
	Tickets []domain.Ticket
	Total   int
}

var sortColumns = map[string]string{
	"id":             "id",
	"title":          "title",
	"priority":       "priority",
	"status":         "current_status",
	"owner":          "owner",
	"assignedTo":     "assigned_to",
	"createdDate":    "created_date",
	"lastUpdateDate": "last_update_date",
}

// normalize clamps paging and resolves the sort key. Unknown keys fall back to the most
// recently updated tickets first.
func (q TicketQuery) normalize() (page, size int, sortKey string, desc bool) {
	page = q.Page
	if page < 1 {
		page = 1
	}
	size = q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	key := strings.TrimSpace(q.Sort)
	desc = strings.HasPrefix(key, "-")
	key = strings.TrimPrefix(key, "-")
	if _, ok := sortColumns[key]; !ok {
		return page, size, "lastUpdateDate", true
	}
	return page, size, key, desc
}

func (q TicketQuery) offset() int {
	page, size, _, _ := q.normalize()
	return (page - 1) * size
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
