package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/notification"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/workflow"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const maxTagSuggestions = 50

// errUnsaved aborts the transaction when a write lost an optimistic race.
var errUnsaved = errors.New("ticket write rejected")

// TicketService hosts the workflow engine: it loads tickets, executes the engine's
// effects inside a transaction and enqueues notifications after commit.
type TicketService struct {
	engine  *workflow.Engine
	tickets repository.TicketRepository
	queue   notification.Queue
	metrics *observability.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Engine     *workflow.Engine
	TicketRepo repository.TicketRepository
	Queue      notification.Queue
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Result is the outcome of a workflow operation. Saved is false when the ticket changed
// underneath the caller and nothing was written.
type Result struct {
	Ticket   *domain.Ticket
	Activity workflow.Activity
	Saved    bool
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title         string
	Details       string
	Category      string
	Type          string
	Priority      domain.TicketPriority
	Owner         string
	TagList       string
	AttachmentIDs []string
}

// TicketEditInput carries the fields a caller wants to change. Nil fields are left alone.
// AssignedTo and CurrentStatus are accepted so that attempts to change them are reported
// rather than silently dropped.
type TicketEditInput struct {
	Title         *string
	Details       *string
	Category      *string
	Type          *string
	Priority      *domain.TicketPriority
	Owner         *string
	TagList       *string
	AssignedTo    *string
	CurrentStatus *domain.TicketStatus
	Comment       string
}

// ActionInput parameterises the single-ticket activities.
type ActionInput struct {
	Comment  string
	AssignTo string
	Priority domain.TicketPriority
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	engine := deps.Engine
	if engine == nil {
		engine = workflow.NewEngine()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		engine:  engine,
		tickets: deps.TicketRepo,
		queue:   deps.Queue,
		metrics: deps.Metrics,
		logger:  logger,
		tracer:  otel.Tracer("github.com/spec-kit/helpdesk/internal/service"),
	}
}

// CreateTicket creates a ticket, linking the referenced pending uploads.
func (s *TicketService) CreateTicket(ctx context.Context, user auth.Identity, input TicketCreateInput) (*Result, error) {
	ctx, span := s.startSpan(ctx, "CreateTicket", user, 0)
	defer span.End()

	attachments, err := s.pendingAttachments(ctx, input.AttachmentIDs)
	if err != nil {
		return nil, s.fail(span, err)
	}
	proposed := &domain.Ticket{
		Title:    strings.TrimSpace(input.Title),
		Details:  strings.TrimSpace(input.Details),
		Category: strings.TrimSpace(input.Category),
		Type:     strings.TrimSpace(input.Type),
		Priority: input.Priority,
		Owner:    input.Owner,
		TagList:  input.TagList,
	}
	if proposed.Priority == "" {
		proposed.Priority = domain.TicketPriorityMedium
	}

	plan, err := s.engine.CreateTicket(user, proposed, attachments)
	return s.finish(ctx, span, user, workflow.ActivityCreate, plan, err)
}

// GetTicket loads a ticket for any user in a product role.
func (s *TicketService) GetTicket(ctx context.Context, user auth.Identity, id int64) (*domain.Ticket, error) {
	if err := requireValidRole(user); err != nil {
		return nil, err
	}
	return s.tickets.GetTicket(ctx, id)
}

// ListTickets returns one page of tickets.
func (s *TicketService) ListTickets(ctx context.Context, user auth.Identity, query repository.TicketQuery) (repository.TicketPage, error) {
	if err := requireValidRole(user); err != nil {
		return repository.TicketPage{}, err
	}
	return s.tickets.ListTickets(ctx, query)
}

// AvailableActivities lists what user may do with the ticket right now.
func (s *TicketService) AvailableActivities(ctx context.Context, user auth.Identity, id int64) ([]workflow.Activity, error) {
	ticket, err := s.GetTicket(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.engine.AvailableActivities(user, ticket), nil
}

// SuggestTags returns stored tag names beginning with prefix.
func (s *TicketService) SuggestTags(ctx context.Context, user auth.Identity, prefix string, max int) ([]string, error) {
	if err := requireValidRole(user); err != nil {
		return nil, err
	}
	if max <= 0 || max > maxTagSuggestions {
		max = maxTagSuggestions
	}
	return s.tickets.GetDistinctTagsStartingWith(ctx, strings.ToLower(strings.TrimSpace(prefix)), max)
}

// AddPendingAttachment records upload metadata for later linking.
func (s *TicketService) AddPendingAttachment(ctx context.Context, user auth.Identity, attachment domain.TicketAttachment) (*domain.TicketAttachment, error) {
	if err := requireValidRole(user); err != nil {
		return nil, err
	}
	if strings.TrimSpace(attachment.FileName) == "" {
		return nil, errorutil.NewValidationError("file name is required", map[string]any{"fileName": "required"})
	}
	attachment.UploadedBy = user.CurrentUserName()
	if _, err := s.tickets.AddPendingAttachment(ctx, &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// Perform runs one of the single-ticket activities.
func (s *TicketService) Perform(ctx context.Context, user auth.Identity, id int64, activity workflow.Activity, input ActionInput) (*Result, error) {
	ctx, span := s.startSpan(ctx, string(activity), user, id)
	defer span.End()

	ticket, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if input.Priority == "" {
		input.Priority = ticket.Priority
	}

	var plan *workflow.Plan
	switch activity {
	case workflow.ActivityAddComment:
		plan, err = s.engine.AddComment(user, ticket, input.Comment)
	case workflow.ActivityRequestMoreInfo:
		plan, err = s.engine.RequestMoreInfo(user, ticket, input.Comment)
	case workflow.ActivitySupplyMoreInfo:
		plan, err = s.engine.SupplyMoreInfo(user, ticket, input.Comment)
	case workflow.ActivityCancelMoreInfo:
		plan, err = s.engine.CancelMoreInfo(user, ticket, input.Comment)
	case workflow.ActivityResolve:
		plan, err = s.engine.Resolve(user, ticket, input.Comment)
	case workflow.ActivityClose:
		plan, err = s.engine.Close(user, ticket, input.Comment)
	case workflow.ActivityForceClose:
		plan, err = s.engine.ForceClose(user, ticket, input.Comment)
	case workflow.ActivityReOpen:
		plan, err = s.engine.ReOpen(user, ticket, input.Comment)
	case workflow.ActivityGiveUp:
		plan, err = s.engine.GiveUp(user, ticket, input.Comment)
	case workflow.ActivityTakeOver, workflow.ActivityTakeOverWithPriority:
		plan, err = s.engine.TakeOver(user, ticket, input.Comment, input.Priority)
	case workflow.ActivityAssign, workflow.ActivityAssignWithPriority,
		workflow.ActivityReAssign, workflow.ActivityReAssignWithPriority,
		workflow.ActivityPass, workflow.ActivityPassWithPriority:
		plan, err = s.engine.AssignTicket(user, ticket, input.AssignTo, input.Comment, input.Priority)
	default:
		err = errorutil.NewValidationError(fmt.Sprintf("activity %s cannot be performed directly", activity), nil)
	}
	return s.finish(ctx, span, user, activity, plan, err)
}

// EditTicketInfo applies descriptive field changes.
func (s *TicketService) EditTicketInfo(ctx context.Context, user auth.Identity, id int64, input TicketEditInput) (*Result, error) {
	ctx, span := s.startSpan(ctx, string(workflow.ActivityEditTicketInfo), user, id)
	defer span.End()

	ticket, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	proposed := ticket.Clone()
	applyEdit(proposed, input)

	changes, err := s.tickets.GetTicketChanges(ctx, proposed)
	if err != nil {
		return nil, s.fail(span, err)
	}
	plan, err := s.engine.EditTicketInfo(user, ticket, proposed, changes, input.Comment)
	return s.finish(ctx, span, user, workflow.ActivityEditTicketInfo, plan, err)
}

// ModifyAttachments replaces the ticket's attachment set with the given file IDs.
func (s *TicketService) ModifyAttachments(ctx context.Context, user auth.Identity, id int64, fileIDs []string, comment string) (*Result, error) {
	ctx, span := s.startSpan(ctx, string(workflow.ActivityModifyAttachments), user, id)
	defer span.End()

	ticket, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	desired := make([]domain.TicketAttachment, 0, len(fileIDs))
	var pendingIDs []string
	for _, fileID := range fileIDs {
		if att, ok := ticket.Attachment(fileID); ok {
			desired = append(desired, att)
			continue
		}
		pendingIDs = append(pendingIDs, fileID)
	}
	pending, err := s.pendingAttachments(ctx, pendingIDs)
	if err != nil {
		return nil, s.fail(span, err)
	}
	desired = append(desired, pending...)

	plan, err := s.engine.ModifyAttachments(user, ticket, desired, comment)
	return s.finish(ctx, span, user, workflow.ActivityModifyAttachments, plan, err)
}

// finish executes a successful plan and records the outcome.
func (s *TicketService) finish(ctx context.Context, span trace.Span, user auth.Identity, activity workflow.Activity, plan *workflow.Plan, err error) (*Result, error) {
	if err != nil {
		s.metrics.RecordActivity(string(activity), outcomeOf(err))
		return nil, s.fail(span, err)
	}
	activity = plan.Activity
	span.SetAttributes(attribute.String("helpdesk.activity", string(activity)))

	saved, err := s.execute(ctx, plan)
	if err != nil {
		s.metrics.RecordActivity(string(activity), "error")
		s.logger.Error("workflow activity failed",
			zap.String("activity", string(activity)),
			zap.Int64("ticket_id", plan.Ticket.ID),
			zap.String("user", user.CurrentUserName()),
			zap.Error(err))
		return nil, s.fail(span, err)
	}
	if !saved {
		s.metrics.RecordActivity(string(activity), "conflict")
		span.SetAttributes(attribute.Bool("helpdesk.saved", false))
		s.logger.Info("workflow activity lost a concurrent update",
			zap.String("activity", string(activity)),
			zap.Int64("ticket_id", plan.Ticket.ID),
			zap.String("user", user.CurrentUserName()))
		return &Result{Ticket: plan.Ticket, Activity: activity, Saved: false}, nil
	}

	s.metrics.RecordActivity(string(activity), "saved")
	span.SetAttributes(attribute.Int64("helpdesk.ticket_id", plan.Ticket.ID), attribute.Bool("helpdesk.saved", true))
	s.logger.Info("workflow activity saved",
		zap.String("activity", string(activity)),
		zap.Int64("ticket_id", plan.Ticket.ID),
		zap.String("user", user.CurrentUserName()))
	return &Result{Ticket: plan.Ticket, Activity: activity, Saved: true}, nil
}

// execute runs the plan's effects in one transaction. Notifications go out only after
// the commit, carrying the persisted comment.
func (s *TicketService) execute(ctx context.Context, plan *workflow.Plan) (bool, error) {
	var notify *workflow.NotifyEffect
	err := s.tickets.InTx(ctx, func(store repository.TicketStore) error {
		for _, effect := range plan.Effects {
			switch e := effect.(type) {
			case workflow.ClearTagsEffect:
				if err := store.ClearTags(ctx, e.Ticket); err != nil {
					return err
				}
			case workflow.RemoveAttachmentEffect:
				if err := store.RemoveAttachment(ctx, e.Attachment); err != nil {
					return err
				}
			case workflow.NotifyEffect:
				notify = &e
			case workflow.PersistEffect:
				var (
					ok  bool
					err error
				)
				if e.Create {
					ok, err = store.CreateTicket(ctx, e.Ticket)
				} else {
					ok, err = store.UpdateTicket(ctx, e.Ticket)
				}
				if err != nil {
					return err
				}
				if !ok {
					return errUnsaved
				}
			}
		}
		return nil
	})
	if errors.Is(err, errUnsaved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if notify != nil {
		s.enqueue(ctx, *notify)
	}
	return true, nil
}

func (s *TicketService) enqueue(ctx context.Context, n workflow.NotifyEffect) {
	if s.queue == nil {
		return
	}
	comment := n.Comment
	if t := n.Ticket; t != nil && len(t.Comments) > 0 {
		comment = t.Comments[len(t.Comments)-1]
	}
	if err := s.queue.EnqueueTicketEventNotifications(ctx, comment, n.IsCreateOrGiveUp, n.Recipients); err != nil {
		s.logger.Warn("notification enqueue failed", zap.Int64("ticket_id", comment.TicketID), zap.Error(err))
	}
}

func (s *TicketService) pendingAttachments(ctx context.Context, fileIDs []string) ([]domain.TicketAttachment, error) {
	out := make([]domain.TicketAttachment, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		att, err := s.tickets.GetPendingAttachment(ctx, fileID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorutil.NewNotFound("attachment", map[string]any{"fileId": fileID})
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *att)
	}
	return out, nil
}

func (s *TicketService) startSpan(ctx context.Context, name string, user auth.Identity, ticketID int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("helpdesk.user", user.CurrentUserName())}
	if ticketID != 0 {
		attrs = append(attrs, attribute.Int64("helpdesk.ticket_id", ticketID))
	}
	return s.tracer.Start(ctx, "TicketService."+name, trace.WithAttributes(attrs...))
}

func (s *TicketService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func applyEdit(t *domain.Ticket, input TicketEditInput) {
	if input.Title != nil {
		t.Title = strings.TrimSpace(*input.Title)
	}
	if input.Details != nil {
		t.Details = strings.TrimSpace(*input.Details)
	}
	if input.Category != nil {
		t.Category = strings.TrimSpace(*input.Category)
	}
	if input.Type != nil {
		t.Type = strings.TrimSpace(*input.Type)
	}
	if input.Priority != nil {
		t.Priority = *input.Priority
	}
	if input.Owner != nil {
		t.Owner = strings.TrimSpace(*input.Owner)
	}
	if input.TagList != nil {
		t.TagList = domain.JoinTagList(domain.ParseTagList(*input.TagList))
	}
	if input.AssignedTo != nil {
		assignee := strings.TrimSpace(*input.AssignedTo)
		t.AssignedTo = &assignee
		if assignee == "" {
			t.AssignedTo = nil
		}
	}
	if input.CurrentStatus != nil {
		t.CurrentStatus = *input.CurrentStatus
	}
}

func requireValidRole(user auth.Identity) error {
	if user == nil || !user.IsInValidRole() {
		return errorutil.NewDomainError("FORBIDDEN", "user is not in a help-desk role", http.StatusForbidden, nil)
	}
	return nil
}

func outcomeOf(err error) string {
	var failures *workflow.ValidationError
	if errors.As(err, &failures) {
		if failures.Denied() {
			return "denied"
		}
		return "rejected"
	}
	return "error"
}
