package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusActive   TicketStatus = "ACTIVE"
	TicketStatusMoreInfo TicketStatus = "MORE_INFO"
	TicketStatusResolved TicketStatus = "RESOLVED"
	TicketStatusClosed   TicketStatus = "CLOSED"
)

// Valid reports whether s is one of the four lifecycle states.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusActive, TicketStatusMoreInfo, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsOpen is true for tickets that are neither resolved nor closed.
func (s TicketStatus) IsOpen() bool {
	return s != TicketStatusResolved && s != TicketStatusClosed
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate root for help-desk requests.
type Ticket struct {
	ID                 int64
	Title              string
	Details            string
	Category           string
	Type               string
	Priority           TicketPriority
	TagList            string
	CurrentStatus      TicketStatus
	CurrentStatusDate  time.Time
	CurrentStatusSetBy string
	Owner              string
	AssignedTo         *string
	CreatedBy          string
	CreatedDate        time.Time
	LastUpdateBy       string
	LastUpdateDate     time.Time
	Version            int64
	Comments           []TicketComment
	Attachments        []TicketAttachment
	Tags               []Tag
}

// Tag associates a normalized tag name with a ticket.
type Tag struct {
	TicketID int64
	TagName  string
}

// IsAssigned reports whether the ticket has an assignee.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedTo != nil && *t.AssignedTo != ""
}

// Assignee returns the assignee user name or "" when unassigned.
func (t *Ticket) Assignee() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}

// SetStatus changes the lifecycle state and stamps who set it.
func (t *Ticket) SetStatus(status TicketStatus, by string, at time.Time) {
	t.CurrentStatus = status
	t.CurrentStatusSetBy = by
	t.CurrentStatusDate = at
}

// SetTagList normalizes the tag list and rebuilds the tag associations.
func (t *Ticket) SetTagList(tagList string) {
	names := ParseTagList(tagList)
	t.TagList = JoinTagList(names)
	t.Tags = make([]Tag, 0, len(names))
	for _, name := range names {
		t.Tags = append(t.Tags, Tag{TicketID: t.ID, TagName: name})
	}
}

// Attachment returns the attachment with the given file id.
func (t *Ticket) Attachment(fileID string) (TicketAttachment, bool) {
	for _, att := range t.Attachments {
		if att.FileID == fileID {
			return att, true
		}
	}
	return TicketAttachment{}, false
}

// Clone returns a deep copy so snapshots never share slices with the working aggregate.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		c.AssignedTo = &assignee
	}
	if t.Comments != nil {
		c.Comments = make([]TicketComment, len(t.Comments))
		for i, comment := range t.Comments {
			c.Comments[i] = comment
			c.Comments[i].Recipients = append([]string(nil), comment.Recipients...)
		}
	}
	if t.Attachments != nil {
		c.Attachments = make([]TicketAttachment, len(t.Attachments))
		for i, att := range t.Attachments {
			c.Attachments[i] = att.clone()
		}
	}
	if t.Tags != nil {
		c.Tags = make([]Tag, len(t.Tags))
		copy(c.Tags, t.Tags)
	}
	return &c
}
