package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

const (
	commentRequiredMessage = "A comment is required for this activity"
	assignToRequired       = "A user to assign the ticket to is required"
	alreadyAssignedMessage = "The ticket is already assigned to this user"
	invalidPriorityMessage = "Priority must be one of LOW, MEDIUM, HIGH or CRITICAL"
)

// ErrNoTicket is returned when an operation on an existing ticket receives none.
var ErrNoTicket = errors.New("workflow: ticket is required")

// Engine plans workflow operations. It never performs I/O; callers execute the
// returned effects.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used to stamp tickets and comments.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine using the UTC wall clock unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// step describes one activity run through the common operation template.
type step struct {
	activity         Activity
	newTicket        bool
	comment          string
	commentRequired  bool
	narrative        string
	args             []string
	isCreateOrGiveUp bool
	validate         func(f Failures)
	mutate           func(t *domain.Ticket, now time.Time) []Effect
}

func (e *Engine) apply(user auth.Identity, current *domain.Ticket, s step) (*Plan, error) {
	if current == nil {
		return nil, ErrNoTicket
	}
	f := Failures{}
	subject := current
	if s.newTicket {
		subject = nil
	}
	if !IsAllowed(subject, s.activity, user) {
		f.Add(FailurePermission, permissionDeniedMessage)
	}
	if s.commentRequired && strings.TrimSpace(s.comment) == "" {
		f.Add(FailureComment, commentRequiredMessage)
	}
	if s.validate != nil {
		s.validate(f)
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	now := e.now()
	me := user.CurrentUserName()
	t := current.Clone()
	previousAssignee := t.Assignee()

	var effects []Effect
	if s.mutate != nil {
		effects = s.mutate(t, now)
	}
	t.LastUpdateBy = me
	t.LastUpdateDate = now

	body := strings.TrimSpace(s.comment)
	if s.narrative != "" {
		body = joinNonEmpty(s.narrative, body)
	}
	comment := domain.TicketComment{
		TicketID:      t.ID,
		CommentedBy:   me,
		CommentedDate: now,
		CommentEvent:  EventText(s.activity, CommentFlagFor(s.activity, s.comment), s.args...),
		Comment:       body,
		Recipients:    recipients(t, previousAssignee, me),
	}
	t.Comments = append(t.Comments, comment)

	effects = append(effects,
		NotifyEffect{Ticket: t, Comment: comment, IsCreateOrGiveUp: s.isCreateOrGiveUp, Recipients: comment.Recipients},
		PersistEffect{Ticket: t, Create: s.newTicket},
	)
	return &Plan{Activity: s.activity, Ticket: t, Comment: comment, Effects: effects}, nil
}

// Allowed reports whether user may perform activity on ticket.
func (e *Engine) Allowed(user auth.Identity, ticket *domain.Ticket, activity Activity) bool {
	return IsAllowed(ticket, activity, user)
}

// AvailableActivities lists every activity user may currently perform on ticket.
func (e *Engine) AvailableActivities(user auth.Identity, ticket *domain.Ticket) []Activity {
	facts := FactsFor(ticket, user)
	var out []Activity
	for _, a := range allActivities {
		if Evaluate(facts, a) {
			out = append(out, a)
		}
	}
	return out
}

// CreateTicket plans a new ticket. Owner defaults to the acting user; a different owner
// makes it CreateOnBehalfOf. Attachments must be pending uploads.
func (e *Engine) CreateTicket(user auth.Identity, proposed *domain.Ticket, attachments []domain.TicketAttachment) (*Plan, error) {
	me := user.CurrentUserName()

	draft := proposed.Clone()
	if draft == nil {
		draft = &domain.Ticket{}
	}
	draft.ID = 0
	draft.Version = 0
	draft.Owner = strings.TrimSpace(draft.Owner)
	if draft.Owner == "" {
		draft.Owner = me
	}
	draft.AssignedTo = nil
	draft.CreatedBy = me
	draft.Comments = nil
	draft.Attachments = nil

	activity := ActivityCreate
	var args []string
	if draft.Owner != me {
		activity = ActivityCreateOnBehalfOf
		args = []string{user.GetUserDisplayName(draft.Owner)}
	}
	unique := uniqueAttachments(attachments)

	return e.apply(user, draft, step{
		activity:         activity,
		newTicket:        true,
		args:             args,
		isCreateOrGiveUp: true,
		validate: func(f Failures) {
			requireText(f, FailureTitle, draft.Title, "Title is required")
			requireText(f, FailureDetails, draft.Details, "Details are required")
			requireText(f, FailureCategory, draft.Category, "Category is required")
			requireText(f, FailureType, draft.Type, "Type is required")
			validatePriority(f, draft.Priority)
			for _, att := range unique {
				if !att.IsPending {
					f.Add(FailureAttachments, fmt.Sprintf("Attachment '%s' is not a pending upload", att.FileName))
				}
			}
		},
		mutate: func(t *domain.Ticket, now time.Time) []Effect {
			t.CreatedDate = now
			t.SetStatus(domain.TicketStatusActive, me, now)
			t.SetTagList(t.TagList)
			for _, att := range unique {
				att.Commit(t.ID)
				t.Attachments = append(t.Attachments, att)
			}
			return nil
		},
	})
}

// AddComment appends free-text commentary without changing state.
func (e *Engine) AddComment(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.apply(user, t, step{
		activity:        ActivityAddComment,
		comment:         comment,
		commentRequired: true,
	})
}

// RequestMoreInfo moves the ticket to MORE_INFO pending the owner's answer.
func (e *Engine) RequestMoreInfo(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.transition(user, t, ActivityRequestMoreInfo, domain.TicketStatusMoreInfo, comment, true)
}

// SupplyMoreInfo answers a request for information and reactivates the ticket.
func (e *Engine) SupplyMoreInfo(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.transition(user, t, ActivitySupplyMoreInfo, domain.TicketStatusActive, comment, true)
}

// CancelMoreInfo withdraws a request for information.
func (e *Engine) CancelMoreInfo(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.transition(user, t, ActivityCancelMoreInfo, domain.TicketStatusActive, comment, false)
}

// Resolve marks the work done.
func (e *Engine) Resolve(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.transition(user, t, ActivityResolve, domain.TicketStatusResolved, comment, true)
}

// Close lets the owner accept a resolution.
func (e *Engine) Close(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.transition(user, t, ActivityClose, domain.TicketStatusClosed, comment, false)
}

// ForceClose closes a ticket without waiting for resolution.
func (e *Engine) ForceClose(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.transition(user, t, ActivityForceClose, domain.TicketStatusClosed, comment, true)
}

// ReOpen reactivates a resolved or closed ticket.
func (e *Engine) ReOpen(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.transition(user, t, ActivityReOpen, domain.TicketStatusActive, comment, false)
}

func (e *Engine) transition(user auth.Identity, t *domain.Ticket, activity Activity, to domain.TicketStatus, comment string, required bool) (*Plan, error) {
	me := user.CurrentUserName()
	return e.apply(user, t, step{
		activity:        activity,
		comment:         comment,
		commentRequired: required,
		mutate: func(t *domain.Ticket, now time.Time) []Effect {
			t.SetStatus(to, me, now)
			return nil
		},
	})
}

// GiveUp returns the ticket to the unassigned pool.
func (e *Engine) GiveUp(user auth.Identity, t *domain.Ticket, comment string) (*Plan, error) {
	return e.apply(user, t, step{
		activity:         ActivityGiveUp,
		comment:          comment,
		commentRequired:  true,
		isCreateOrGiveUp: true,
		mutate: func(t *domain.Ticket, _ time.Time) []Effect {
			t.AssignedTo = nil
			return nil
		},
	})
}

// TakeOver assigns the ticket to the acting staff member, optionally changing priority.
func (e *Engine) TakeOver(user auth.Identity, t *domain.Ticket, comment string, priority domain.TicketPriority) (*Plan, error) {
	me := user.CurrentUserName()
	activity := ActivityTakeOver
	withPriority := priorityChanges(t, priority)
	if withPriority {
		activity = activity.WithPriority()
	}
	return e.apply(user, t, step{
		activity: activity,
		comment:  comment,
		args:     []string{string(priority)},
		validate: func(f Failures) {
			validatePriority(f, priority)
		},
		mutate: func(t *domain.Ticket, _ time.Time) []Effect {
			assignee := me
			t.AssignedTo = &assignee
			if withPriority {
				t.Priority = priority
			}
			return nil
		},
	})
}

// InferAssignActivity picks Assign, Pass or ReAssign from the current assignment, using
// the priority variant when the priority would change.
func InferAssignActivity(t *domain.Ticket, user auth.Identity, priority domain.TicketPriority) Activity {
	var activity Activity
	switch {
	case t == nil || !t.IsAssigned():
		activity = ActivityAssign
	case t.Assignee() == user.CurrentUserName():
		activity = ActivityPass
	default:
		activity = ActivityReAssign
	}
	if priorityChanges(t, priority) {
		activity = activity.WithPriority()
	}
	return activity
}

// AssignTicket hands the ticket to assignTo. The concrete activity is inferred first and
// that activity is what gets authorized and recorded.
func (e *Engine) AssignTicket(user auth.Identity, t *domain.Ticket, assignTo, comment string, priority domain.TicketPriority) (*Plan, error) {
	assignTo = strings.TrimSpace(assignTo)
	activity := InferAssignActivity(t, user, priority)
	withPriority := priorityChanges(t, priority)
	return e.apply(user, t, step{
		activity: activity,
		comment:  comment,
		args:     []string{user.GetUserDisplayName(assignTo), string(priority)},
		validate: func(f Failures) {
			switch {
			case assignTo == "":
				f.Add(FailureAssignTo, assignToRequired)
			case t != nil && t.Assignee() == assignTo:
				f.Add(FailureAssignTo, alreadyAssignedMessage)
			}
			validatePriority(f, priority)
		},
		mutate: func(t *domain.Ticket, _ time.Time) []Effect {
			assignee := assignTo
			t.AssignedTo = &assignee
			if withPriority {
				t.Priority = priority
			}
			return nil
		},
	})
}

// ModifyAttachments replaces the ticket's attachment set with desired. New entries must
// be pending uploads and are committed to the ticket; dropped entries are removed.
func (e *Engine) ModifyAttachments(user auth.Identity, t *domain.Ticket, desired []domain.TicketAttachment, comment string) (*Plan, error) {
	desired = uniqueAttachments(desired)
	wanted := make(map[string]bool, len(desired))
	for _, att := range desired {
		wanted[att.FileID] = true
	}

	var added, removed []domain.TicketAttachment
	var lines []string
	if t != nil {
		for _, att := range t.Attachments {
			if !wanted[att.FileID] {
				removed = append(removed, att)
				lines = append(lines, fmt.Sprintf("Removed attachment '%s'", att.FileName))
			}
		}
		for _, att := range desired {
			if _, ok := t.Attachment(att.FileID); !ok {
				added = append(added, att)
				lines = append(lines, fmt.Sprintf("Added attachment '%s'", att.FileName))
			}
		}
	}

	return e.apply(user, t, step{
		activity:  ActivityModifyAttachments,
		comment:   comment,
		narrative: strings.Join(lines, "\n"),
		validate: func(f Failures) {
			if len(added) == 0 && len(removed) == 0 {
				f.Add(FailureChanges, noChangesMessage)
			}
			for _, att := range added {
				if !att.IsPending {
					f.Add(FailureAttachments, fmt.Sprintf("Attachment '%s' is not a pending upload", att.FileName))
				}
			}
		},
		mutate: func(t *domain.Ticket, _ time.Time) []Effect {
			var effects []Effect
			kept := t.Attachments[:0]
			for _, att := range t.Attachments {
				if wanted[att.FileID] {
					kept = append(kept, att)
					continue
				}
				effects = append(effects, RemoveAttachmentEffect{Attachment: att})
			}
			t.Attachments = kept
			for _, att := range added {
				att.Commit(t.ID)
				t.Attachments = append(t.Attachments, att)
			}
			return effects
		},
	})
}

// EditTicketInfo applies proposed descriptive values. changes maps each field that differs
// from the persisted snapshot to its previous value.
func (e *Engine) EditTicketInfo(user auth.Identity, t *domain.Ticket, proposed *domain.Ticket, changes map[string]string, comment string) (*Plan, error) {
	if t == nil {
		return nil, ErrNoTicket
	}
	if proposed == nil {
		proposed = t
	}
	_, tagsChanged := changes[domain.FieldTagList]
	return e.apply(user, t, step{
		activity:  ActivityEditTicketInfo,
		comment:   comment,
		narrative: DescribeChanges(changes, proposed, user),
		validate: func(f Failures) {
			ValidateChanges(changes, f)
			required := []struct{ field, key, value string }{
				{domain.FieldTitle, FailureTitle, proposed.Title},
				{domain.FieldDetails, FailureDetails, proposed.Details},
				{domain.FieldCategory, FailureCategory, proposed.Category},
				{domain.FieldType, FailureType, proposed.Type},
				{domain.FieldOwner, FailureOwner, proposed.Owner},
			}
			for _, r := range required {
				if _, changed := changes[r.field]; changed {
					requireText(f, r.key, r.value, r.field+" may not be empty")
				}
			}
			if _, changed := changes[domain.FieldPriority]; changed {
				validatePriority(f, proposed.Priority)
			}
		},
		mutate: func(t *domain.Ticket, _ time.Time) []Effect {
			t.Title = proposed.Title
			t.Details = proposed.Details
			t.Priority = proposed.Priority
			t.Type = proposed.Type
			t.Category = proposed.Category
			t.Owner = proposed.Owner
			if !tagsChanged {
				return nil
			}
			t.SetTagList(proposed.TagList)
			return []Effect{ClearTagsEffect{Ticket: t}}
		},
	})
}

// recipients are the owner, the assignee and a replaced assignee, excluding the actor.
func recipients(t *domain.Ticket, previousAssignee, actor string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range []string{t.Owner, t.Assignee(), previousAssignee} {
		if name == "" || name == actor {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func uniqueAttachments(in []domain.TicketAttachment) []domain.TicketAttachment {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.TicketAttachment, 0, len(in))
	for _, att := range in {
		if _, dup := seen[att.FileID]; dup {
			continue
		}
		seen[att.FileID] = struct{}{}
		out = append(out, att)
	}
	return out
}

func priorityChanges(t *domain.Ticket, priority domain.TicketPriority) bool {
	if priority == "" {
		return false
	}
	return t == nil || t.Priority != priority
}

func validatePriority(f Failures, p domain.TicketPriority) {
	if p != "" && !p.Valid() {
		f.Add(FailurePriority, invalidPriorityMessage)
	}
}

func requireText(f Failures, key, value, message string) {
	if strings.TrimSpace(value) == "" {
		f.Add(key, message)
	}
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
