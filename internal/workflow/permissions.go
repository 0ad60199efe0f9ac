package workflow

import (
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// Facts are the boolean inputs of the authorization matrix.
type Facts struct {
	ValidRole    bool
	Staff        bool
	Assigned     bool
	AssignedToMe bool
	OwnedByMe    bool
	Open         bool
	MoreInfo     bool
	Resolved     bool
}

// FactsFor derives the matrix inputs from a ticket snapshot and the acting user. A nil
// ticket stands for a new, active, unassigned ticket.
func FactsFor(ticket *domain.Ticket, user auth.Identity) Facts {
	if ticket == nil {
		ticket = &domain.Ticket{CurrentStatus: domain.TicketStatusActive}
	}
	me := user.CurrentUserName()
	return Facts{
		ValidRole:    user.IsInValidRole(),
		Staff:        user.IsStaff(),
		Assigned:     ticket.IsAssigned(),
		AssignedToMe: ticket.IsAssigned() && ticket.Assignee() == me,
		OwnedByMe:    ticket.Owner != "" && ticket.Owner == me,
		Open:         ticket.CurrentStatus.IsOpen(),
		MoreInfo:     ticket.CurrentStatus == domain.TicketStatusMoreInfo,
		Resolved:     ticket.CurrentStatus == domain.TicketStatusResolved,
	}
}

type rule func(f Facts) bool

func always(Facts) bool { return true }

func takeOver(f Facts) bool {
	return (f.Open || f.Resolved) && !f.AssignedToMe && f.Staff
}

func assign(f Facts) bool {
	return (f.Open || f.Resolved) && f.Staff && !f.Assigned
}

func reAssign(f Facts) bool {
	return (f.Open || f.Resolved) && f.Staff && f.Assigned && !f.AssignedToMe
}

func pass(f Facts) bool {
	return (f.Open || f.Resolved) && f.Staff && f.AssignedToMe
}

// activityRules is the whole permission model. Anything absent is denied.
var activityRules = map[Activity]rule{
	ActivityNoChange:         always,
	ActivityGetTicketInfo:    always,
	ActivityCreate:           always,
	ActivityCreateOnBehalfOf: always,

	ActivityModifyAttachments: func(f Facts) bool { return f.Open },
	ActivityEditTicketInfo:    func(f Facts) bool { return f.Open && (f.Staff || f.OwnedByMe) },
	ActivityAddComment:        func(f Facts) bool { return f.Open && !f.MoreInfo },
	ActivitySupplyMoreInfo:    func(f Facts) bool { return f.MoreInfo },
	ActivityRequestMoreInfo:   func(f Facts) bool { return f.Open && !f.MoreInfo && f.AssignedToMe },
	ActivityResolve:           func(f Facts) bool { return f.Open && !f.MoreInfo && f.AssignedToMe },
	ActivityCancelMoreInfo:    func(f Facts) bool { return f.MoreInfo && f.AssignedToMe },
	ActivityClose:             func(f Facts) bool { return f.Resolved && f.OwnedByMe },
	ActivityReOpen:            func(f Facts) bool { return !f.Open },

	ActivityTakeOver:             takeOver,
	ActivityTakeOverWithPriority: takeOver,
	ActivityAssign:               assign,
	ActivityAssignWithPriority:   assign,
	ActivityReAssign:             reAssign,
	ActivityReAssignWithPriority: reAssign,
	ActivityPass:                 pass,
	ActivityPassWithPriority:     pass,

	ActivityGiveUp: func(f Facts) bool { return (f.Open || f.Resolved) && f.AssignedToMe },
	// An owner of a resolved ticket closes it normally rather than forcing it.
	ActivityForceClose: func(f Facts) bool {
		return (f.Open || f.Resolved) && (f.AssignedToMe || f.OwnedByMe) && !(f.Resolved && f.OwnedByMe)
	},
}

// Evaluate applies the matrix to precomputed facts.
func Evaluate(f Facts, activity Activity) bool {
	if !f.ValidRole {
		return false
	}
	allowed, ok := activityRules[activity]
	if !ok {
		return false
	}
	return allowed(f)
}

// IsAllowed reports whether user may perform activity on ticket.
func IsAllowed(ticket *domain.Ticket, activity Activity, user auth.Identity) bool {
	return Evaluate(FactsFor(ticket, user), activity)
}
