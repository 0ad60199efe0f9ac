package domain

import "time"

// TicketComment is an immutable audit entry appended for every workflow activity.
type TicketComment struct {
	ID            int64
	TicketID      int64
	CommentedBy   string
	CommentedDate time.Time
	CommentEvent  string
	Comment       string
	IsHTML        bool
	Recipients    []string
}

// TicketAttachment stores metadata for an uploaded file.
type TicketAttachment struct {
	FileID          string
	TicketID        *int64
	FileName        string
	FileDescription string
	FileSize        int64
	ContentType     string
	IsPending       bool
	UploadedBy      string
	UploadedDate    time.Time
}

// IsDerelict reports whether a pending attachment is old enough to be purged.
func (a TicketAttachment) IsDerelict(now time.Time, hoursOld int) bool {
	if !a.IsPending {
		return false
	}
	return a.UploadedDate.Before(now.Add(-time.Duration(hoursOld) * time.Hour))
}

// Commit links the attachment to a ticket and clears the pending flag.
func (a *TicketAttachment) Commit(ticketID int64) {
	id := ticketID
	a.TicketID = &id
	a.IsPending = false
}

func (a TicketAttachment) clone() TicketAttachment {
	if a.TicketID != nil {
		id := *a.TicketID
		a.TicketID = &id
	}
	return a
}
