package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(WithClock(func() time.Time { return fixedNow }))
}

func staff(name string) *auth.Principal {
	return auth.NewPrincipal(name, []domain.UserRole{domain.RoleHelpDesk}, staticNames{
		"alice": "Alice Owner",
		"bob":   "Bob Agent",
		"carol": "Carol Agent",
	})
}

func requester(name string) *auth.Principal {
	return auth.NewPrincipal(name, []domain.UserRole{domain.RoleInternalUser}, nil)
}

func activeTicket(assignee string) *domain.Ticket {
	t := &domain.Ticket{
		ID:            7,
		Title:         "Printer jam",
		Details:       "Paper stuck in tray 2",
		Category:      "Hardware",
		Type:          "Incident",
		Priority:      domain.TicketPriorityMedium,
		CurrentStatus: domain.TicketStatusActive,
		Owner:         "alice",
		CreatedBy:     "alice",
		Version:       3,
		Comments: []domain.TicketComment{
			{ID: 1, TicketID: 7, CommentedBy: "alice", CommentEvent: "created the ticket"},
		},
	}
	if assignee != "" {
		t.AssignedTo = &assignee
	}
	return t
}

func requireFailures(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr
}

func persisted(t *testing.T, p *Plan) PersistEffect {
	t.Helper()
	last, ok := p.Effects[len(p.Effects)-1].(PersistEffect)
	require.True(t, ok, "last effect must persist")
	return last
}

func TestResolveNotAssignedToMeIsDenied(t *testing.T) {
	ticket := activeTicket("carol")
	before := ticket.Clone()

	plan, err := newTestEngine().Resolve(staff("bob"), ticket, "fixed it")
	require.Nil(t, plan)
	verr := requireFailures(t, err)
	assert.True(t, verr.Denied())
	assert.Equal(t, permissionDeniedMessage, verr.Failures[FailurePermission])
	assert.Equal(t, before, ticket)
}

func TestFailuresAreAggregated(t *testing.T) {
	_, err := newTestEngine().Resolve(staff("bob"), activeTicket("carol"), "  ")
	verr := requireFailures(t, err)
	assert.Len(t, verr.Failures, 2)
	assert.Contains(t, verr.Failures, FailurePermission)
	assert.Contains(t, verr.Failures, FailureComment)
}

func TestResolveAppendsOneCommentAndStamps(t *testing.T) {
	ticket := activeTicket("bob")
	plan, err := newTestEngine().Resolve(staff("bob"), ticket, "replaced the roller")
	require.NoError(t, err)

	got := plan.Ticket
	assert.Equal(t, domain.TicketStatusResolved, got.CurrentStatus)
	assert.Equal(t, "bob", got.CurrentStatusSetBy)
	assert.Equal(t, fixedNow, got.CurrentStatusDate)
	assert.Equal(t, "bob", got.LastUpdateBy)
	assert.Equal(t, fixedNow, got.LastUpdateDate)
	require.Len(t, got.Comments, len(ticket.Comments)+1)

	c := got.Comments[len(got.Comments)-1]
	assert.Equal(t, "resolved the ticket", c.CommentEvent)
	assert.Equal(t, "replaced the roller", c.Comment)
	assert.False(t, c.IsHTML)
	assert.Equal(t, []string{"alice"}, c.Recipients)
	assert.Equal(t, domain.TicketStatusActive, ticket.CurrentStatus, "input must not be mutated")

	require.Len(t, plan.Effects, 2)
	n, ok := plan.Notification()
	require.True(t, ok)
	assert.False(t, n.IsCreateOrGiveUp)
	assert.False(t, persisted(t, plan).Create)
}

func TestSameInputsProduceIdenticalText(t *testing.T) {
	e := newTestEngine()
	first, err := e.AssignTicket(staff("bob"), activeTicket(""), "carol", "", domain.TicketPriorityHigh)
	require.NoError(t, err)
	second, err := e.AssignTicket(staff("bob"), activeTicket(""), "carol", "", domain.TicketPriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, first.Comment.CommentEvent, second.Comment.CommentEvent)
	assert.Equal(t, "assigned the ticket to Carol Agent at HIGH priority without comment", first.Comment.CommentEvent)
}

func TestAssignTicketInfersActivityFromAssignment(t *testing.T) {
	tests := []struct {
		name     string
		assignee string
		priority domain.TicketPriority
		want     Activity
	}{
		{"unassigned", "", "", ActivityAssign},
		{"unassigned new priority", "", domain.TicketPriorityHigh, ActivityAssignWithPriority},
		{"assigned to me", "bob", "", ActivityPass},
		{"assigned to me new priority", "bob", domain.TicketPriorityCritical, ActivityPassWithPriority},
		{"assigned to someone else", "dave", "", ActivityReAssign},
		{"assigned elsewhere new priority", "dave", domain.TicketPriorityLow, ActivityReAssignWithPriority},
		{"same priority is not a change", "", domain.TicketPriorityMedium, ActivityAssign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := activeTicket(tt.assignee)
			user := staff("bob")
			require.Equal(t, tt.want, InferAssignActivity(ticket, user, tt.priority))
			require.True(t, IsAllowed(ticket, tt.want, user))

			plan, err := newTestEngine().AssignTicket(user, ticket, "carol", "please look", tt.priority)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.Activity)
			assert.Equal(t, "carol", plan.Ticket.Assignee())
			assert.Equal(t, domain.TicketStatusActive, plan.Ticket.CurrentStatus)
			if tt.priority != "" {
				assert.Equal(t, tt.priority, plan.Ticket.Priority)
			}
		})
	}
}

func TestAssignTicketValidation(t *testing.T) {
	_, err := newTestEngine().AssignTicket(staff("bob"), activeTicket("carol"), "carol", "", "URGENT")
	verr := requireFailures(t, err)
	assert.Equal(t, alreadyAssignedMessage, verr.Failures[FailureAssignTo])
	assert.Equal(t, invalidPriorityMessage, verr.Failures[FailurePriority])
	assert.False(t, verr.Denied())

	_, err = newTestEngine().AssignTicket(requester("alice"), activeTicket(""), "", "", "")
	verr = requireFailures(t, err)
	assert.True(t, verr.Denied())
	assert.Equal(t, assignToRequired, verr.Failures[FailureAssignTo])
}

func TestReAssignNotifiesPreviousAssignee(t *testing.T) {
	plan, err := newTestEngine().AssignTicket(staff("bob"), activeTicket("dave"), "carol", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol", "dave"}, plan.Comment.Recipients)
}

func TestGiveUpUnassigns(t *testing.T) {
	plan, err := newTestEngine().GiveUp(staff("bob"), activeTicket("bob"), "out of my depth")
	require.NoError(t, err)
	assert.False(t, plan.Ticket.IsAssigned())
	n, ok := plan.Notification()
	require.True(t, ok)
	assert.True(t, n.IsCreateOrGiveUp)
	assert.Equal(t, []string{"alice"}, n.Recipients)
}

func TestTakeOver(t *testing.T) {
	plan, err := newTestEngine().TakeOver(staff("bob"), activeTicket("carol"), "", domain.TicketPriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, ActivityTakeOverWithPriority, plan.Activity)
	assert.Equal(t, "bob", plan.Ticket.Assignee())
	assert.Equal(t, "took over the ticket at HIGH priority without comment", plan.Comment.CommentEvent)

	_, err = newTestEngine().TakeOver(requester("alice"), activeTicket(""), "", "")
	assert.True(t, requireFailures(t, err).Denied())
}

func TestMoreInfoRoundTrip(t *testing.T) {
	e := newTestEngine()
	plan, err := e.RequestMoreInfo(staff("bob"), activeTicket("bob"), "which printer?")
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusMoreInfo, plan.Ticket.CurrentStatus)

	_, err = e.AddComment(requester("alice"), plan.Ticket, "hello")
	assert.True(t, requireFailures(t, err).Denied())

	supplied, err := e.SupplyMoreInfo(requester("alice"), plan.Ticket, "the one on floor 3")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusActive, supplied.Ticket.CurrentStatus)
	assert.Equal(t, []string{"bob"}, supplied.Comment.Recipients)

	cancelled, err := e.CancelMoreInfo(staff("bob"), plan.Ticket, "")
	require.NoError(t, err)
	assert.Equal(t, "cancelled the request for more information without comment", cancelled.Comment.CommentEvent)
}

func TestCloseAndReOpen(t *testing.T) {
	e := newTestEngine()
	resolved := activeTicket("bob")
	resolved.CurrentStatus = domain.TicketStatusResolved

	closed, err := e.Close(requester("alice"), resolved, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Ticket.CurrentStatus)
	assert.Equal(t, "closed the ticket without comment", closed.Comment.CommentEvent)

	_, err = e.ForceClose(requester("alice"), resolved, "closing")
	assert.True(t, requireFailures(t, err).Denied())

	reopened, err := e.ReOpen(requester("alice"), closed.Ticket, "still broken")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusActive, reopened.Ticket.CurrentStatus)
	assert.Equal(t, "re-opened the ticket", reopened.Comment.CommentEvent)
}

func TestForceCloseByOwnerOfOpenTicket(t *testing.T) {
	plan, err := newTestEngine().ForceClose(requester("alice"), activeTicket("bob"), "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, plan.Ticket.CurrentStatus)
	assert.Equal(t, "closed the ticket by force", plan.Comment.CommentEvent)
}

func TestCreateTicket(t *testing.T) {
	pending := domain.TicketAttachment{FileID: "f1", FileName: "log.txt", IsPending: true}
	proposed := &domain.Ticket{
		Title:    "VPN down",
		Details:  "Cannot connect",
		Category: "Network",
		Type:     "Incident",
		TagList:  " VPN, remote ,vpn",
	}

	plan, err := newTestEngine().CreateTicket(requester("alice"), proposed, []domain.TicketAttachment{pending, pending})
	require.NoError(t, err)

	got := plan.Ticket
	assert.Equal(t, ActivityCreate, plan.Activity)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Equal(t, fixedNow, got.CreatedDate)
	assert.Equal(t, domain.TicketStatusActive, got.CurrentStatus)
	assert.Equal(t, "vpn,remote", got.TagList)
	assert.Len(t, got.Tags, 2)
	require.Len(t, got.Attachments, 1, "each attachment is added once")
	assert.False(t, got.Attachments[0].IsPending)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "created the ticket", got.Comments[0].CommentEvent)
	assert.Empty(t, got.Comments[0].Comment)
	assert.True(t, persisted(t, plan).Create)
	n, _ := plan.Notification()
	assert.True(t, n.IsCreateOrGiveUp)
	assert.Empty(t, n.Recipients)
}

func TestOneClockReadingPerActivity(t *testing.T) {
	tick := fixedNow
	engine := NewEngine(WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))

	created, err := engine.CreateTicket(requester("alice"), &domain.Ticket{
		Title:    "VPN down",
		Details:  "Cannot connect",
		Category: "Network",
		Type:     "Incident",
		Priority: domain.TicketPriorityMedium,
	}, nil)
	require.NoError(t, err)
	got := created.Ticket
	assert.Equal(t, got.CreatedDate, got.CurrentStatusDate)
	assert.Equal(t, got.CurrentStatusDate, got.LastUpdateDate)
	assert.Equal(t, got.LastUpdateDate, created.Comment.CommentedDate)

	resolved, err := engine.Resolve(staff("bob"), activeTicket("bob"), "fixed")
	require.NoError(t, err)
	got = resolved.Ticket
	assert.True(t, got.CurrentStatusDate.After(created.Ticket.LastUpdateDate))
	assert.Equal(t, got.CurrentStatusDate, got.LastUpdateDate)
	assert.Equal(t, got.LastUpdateDate, resolved.Comment.CommentedDate)
}

func TestCreateTicketOnBehalfOf(t *testing.T) {
	plan, err := newTestEngine().CreateTicket(staff("bob"), &domain.Ticket{
		Title: "t", Details: "d", Category: "c", Type: "x", Owner: "alice",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, ActivityCreateOnBehalfOf, plan.Activity)
	assert.Equal(t, "created the ticket on behalf of Alice Owner", plan.Comment.CommentEvent)
	assert.Equal(t, []string{"alice"}, plan.Comment.Recipients)
}

func TestCreateTicketValidation(t *testing.T) {
	committed := domain.TicketAttachment{FileID: "f1", FileName: "old.txt"}
	_, err := newTestEngine().CreateTicket(requester("alice"), &domain.Ticket{Priority: "SOON"}, []domain.TicketAttachment{committed})
	verr := requireFailures(t, err)
	for _, key := range []string{FailureTitle, FailureDetails, FailureCategory, FailureType, FailurePriority, FailureAttachments} {
		assert.Contains(t, verr.Failures, key)
	}
	assert.False(t, verr.Denied())
}

func TestModifyAttachmentsWithoutChanges(t *testing.T) {
	ticket := activeTicket("bob")
	ticket.Attachments = []domain.TicketAttachment{{FileID: "f1", FileName: "a.png"}}
	before := ticket.Clone()

	_, err := newTestEngine().ModifyAttachments(requester("alice"), ticket, ticket.Attachments, "")
	verr := requireFailures(t, err)
	assert.Equal(t, Failures{FailureChanges: noChangesMessage}, Failures(verr.Failures))
	assert.Equal(t, before, ticket)
}

func TestModifyAttachments(t *testing.T) {
	ticket := activeTicket("bob")
	ticket.Attachments = []domain.TicketAttachment{
		{FileID: "f1", FileName: "a.png"},
		{FileID: "f2", FileName: "b.png"},
	}
	added := domain.TicketAttachment{FileID: "f3", FileName: "c.png", IsPending: true}

	plan, err := newTestEngine().ModifyAttachments(requester("alice"), ticket,
		[]domain.TicketAttachment{ticket.Attachments[0], added, added}, "see new shot")
	require.NoError(t, err)

	require.Len(t, plan.Ticket.Attachments, 2)
	assert.Equal(t, "f1", plan.Ticket.Attachments[0].FileID)
	assert.Equal(t, "f3", plan.Ticket.Attachments[1].FileID)
	assert.False(t, plan.Ticket.Attachments[1].IsPending)
	require.NotNil(t, plan.Ticket.Attachments[1].TicketID)
	assert.Equal(t, int64(7), *plan.Ticket.Attachments[1].TicketID)

	require.Len(t, plan.Effects, 3)
	removed, ok := plan.Effects[0].(RemoveAttachmentEffect)
	require.True(t, ok)
	assert.Equal(t, "f2", removed.Attachment.FileID)
	assert.Equal(t, "modified the attachments", plan.Comment.CommentEvent)
	assert.Equal(t, "Removed attachment 'b.png'\nAdded attachment 'c.png'\n\nsee new shot", plan.Comment.Comment)
	assert.Len(t, ticket.Attachments, 2, "input must not be mutated")
}

func TestModifyAttachmentsRejectsCommittedFile(t *testing.T) {
	_, err := newTestEngine().ModifyAttachments(requester("alice"), activeTicket(""),
		[]domain.TicketAttachment{{FileID: "f9", FileName: "x.pdf"}}, "")
	assert.Contains(t, requireFailures(t, err).Failures, FailureAttachments)
}

func TestEditTicketInfoReplacesTags(t *testing.T) {
	ticket := activeTicket("bob")
	ticket.SetTagList("a,b")
	proposed := ticket.Clone()
	proposed.TagList = "a,c"

	plan, err := newTestEngine().EditTicketInfo(requester("alice"), ticket, proposed,
		domain.DiffTicket(ticket, proposed), "")
	require.NoError(t, err)

	names := make([]string, 0, len(plan.Ticket.Tags))
	for _, tag := range plan.Ticket.Tags {
		names = append(names, tag.TagName)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, names)
	assert.Equal(t, "Tags changed", plan.Comment.Comment)
	assert.Equal(t, "edited the ticket information without comment", plan.Comment.CommentEvent)
	require.Len(t, plan.Effects, 3)
	_, ok := plan.Effects[0].(ClearTagsEffect)
	assert.True(t, ok)
}

func TestEditTicketInfoRejectsDisallowedField(t *testing.T) {
	ticket := activeTicket("bob")
	proposed := ticket.Clone()
	proposed.CurrentStatus = domain.TicketStatusClosed

	plan, err := newTestEngine().EditTicketInfo(staff("carol"), ticket, proposed,
		domain.DiffTicket(ticket, proposed), "")
	require.Nil(t, plan)
	verr := requireFailures(t, err)
	assert.Contains(t, verr.Failures[domain.FieldCurrentStatus], "not allowed")
	assert.False(t, verr.Denied())
}

func TestEditTicketInfo(t *testing.T) {
	ticket := activeTicket("bob")
	proposed := ticket.Clone()
	proposed.Priority = domain.TicketPriorityCritical
	proposed.Title = ""

	_, err := newTestEngine().EditTicketInfo(staff("carol"), ticket, proposed, domain.DiffTicket(ticket, proposed), "")
	assert.Contains(t, requireFailures(t, err).Failures, FailureTitle)

	_, err = newTestEngine().EditTicketInfo(staff("carol"), ticket, ticket.Clone(), map[string]string{}, "")
	assert.Equal(t, noChangesMessage, requireFailures(t, err).Failures[FailureChanges])

	proposed.Title = ticket.Title
	plan, err := newTestEngine().EditTicketInfo(staff("carol"), ticket, proposed, domain.DiffTicket(ticket, proposed), "bumped")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityCritical, plan.Ticket.Priority)
	assert.Equal(t, "Priority changed from 'MEDIUM' to 'CRITICAL'\n\nbumped", plan.Comment.Comment)
	assert.Equal(t, "edited the ticket information", plan.Comment.CommentEvent)
	assert.Len(t, plan.Effects, 2)
}

func TestAvailableActivities(t *testing.T) {
	got := newTestEngine().AvailableActivities(requester("alice"), activeTicket("bob"))
	assert.ElementsMatch(t, []Activity{
		ActivityNoChange, ActivityGetTicketInfo, ActivityCreate, ActivityCreateOnBehalfOf,
		ActivityModifyAttachments, ActivityEditTicketInfo, ActivityAddComment, ActivityForceClose,
	}, got)
}

func TestOperationsRequireTicket(t *testing.T) {
	_, err := newTestEngine().AddComment(staff("bob"), nil, "hi")
	assert.ErrorIs(t, err, ErrNoTicket)
}
