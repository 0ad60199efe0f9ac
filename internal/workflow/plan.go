package workflow

import "github.com/spec-kit/helpdesk/internal/domain"

// Effect is a side-effect intent the host executes after a successful plan.
type Effect interface {
	effect()
}

// ClearTagsEffect asks the host to drop every stored tag association of the ticket
// before the rebuilt set is persisted.
type ClearTagsEffect struct {
	Ticket *domain.Ticket
}

// RemoveAttachmentEffect asks the host to delete an attachment that left the ticket.
type RemoveAttachmentEffect struct {
	Attachment domain.TicketAttachment
}

// NotifyEffect asks the host to enqueue notifications for the new audit comment.
type NotifyEffect struct {
	Ticket           *domain.Ticket
	Comment          domain.TicketComment
	IsCreateOrGiveUp bool
	Recipients       []string
}

// PersistEffect asks the host to store the mutated aggregate.
type PersistEffect struct {
	Ticket *domain.Ticket
	Create bool
}

func (ClearTagsEffect) effect()        {}
func (RemoveAttachmentEffect) effect() {}
func (NotifyEffect) effect()           {}
func (PersistEffect) effect()          {}

// Plan is the outcome of one workflow operation. Ticket is a mutated copy of the input
// with the new audit comment appended last.
type Plan struct {
	Activity Activity
	Ticket   *domain.Ticket
	Comment  domain.TicketComment
	Effects  []Effect
}

// Notification returns the plan's notify intent.
func (p *Plan) Notification() (NotifyEffect, bool) {
	for _, e := range p.Effects {
		if n, ok := e.(NotifyEffect); ok {
			return n, true
		}
	}
	return NotifyEffect{}, false
}
