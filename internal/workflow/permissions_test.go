package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// expectedAllowed restates the permission table as a switch so the map-driven
// implementation is checked against an independent encoding.
func expectedAllowed(f Facts, a Activity) bool {
	if !f.ValidRole {
		return false
	}
	live := f.Open || f.Resolved
	switch a {
	case ActivityNoChange, ActivityGetTicketInfo, ActivityCreate, ActivityCreateOnBehalfOf:
		return true
	case ActivityModifyAttachments:
		return f.Open
	case ActivityEditTicketInfo:
		return f.Open && (f.Staff || f.OwnedByMe)
	case ActivityAddComment:
		return f.Open && !f.MoreInfo
	case ActivitySupplyMoreInfo:
		return f.MoreInfo
	case ActivityRequestMoreInfo, ActivityResolve:
		return f.Open && !f.MoreInfo && f.AssignedToMe
	case ActivityCancelMoreInfo:
		return f.MoreInfo && f.AssignedToMe
	case ActivityClose:
		return f.Resolved && f.OwnedByMe
	case ActivityReOpen:
		return !f.Open
	case ActivityTakeOver, ActivityTakeOverWithPriority:
		return live && !f.AssignedToMe && f.Staff
	case ActivityAssign, ActivityAssignWithPriority:
		return live && f.Staff && !f.Assigned
	case ActivityReAssign, ActivityReAssignWithPriority:
		return live && f.Staff && f.Assigned && !f.AssignedToMe
	case ActivityPass, ActivityPassWithPriority:
		return live && f.Staff && f.AssignedToMe
	case ActivityGiveUp:
		return live && f.AssignedToMe
	case ActivityForceClose:
		return live && (f.AssignedToMe || f.OwnedByMe) && !(f.Resolved && f.OwnedByMe)
	}
	return false
}

func factsFromBits(bits int) Facts {
	return Facts{
		ValidRole:    bits&1 != 0,
		Staff:        bits&2 != 0,
		Assigned:     bits&4 != 0,
		AssignedToMe: bits&8 != 0,
		OwnedByMe:    bits&16 != 0,
		Open:         bits&32 != 0,
		MoreInfo:     bits&64 != 0,
		Resolved:     bits&128 != 0,
	}
}

func TestEvaluateMatchesTableForEveryFactCombination(t *testing.T) {
	for bits := 0; bits < 256; bits++ {
		f := factsFromBits(bits)
		for _, a := range Activities() {
			assert.Equal(t, expectedAllowed(f, a), Evaluate(f, a), "facts=%+v activity=%s", f, a)
		}
	}
}

func TestEvaluateDeniesUnknownActivity(t *testing.T) {
	for bits := 0; bits < 256; bits++ {
		assert.False(t, Evaluate(factsFromBits(bits), Activity("Escalate")))
	}
}

func TestInvalidRoleDeniesEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := factsFromBits(rapid.IntRange(0, 255).Draw(t, "bits"))
		f.ValidRole = false
		a := rapid.SampledFrom(Activities()).Draw(t, "activity")
		if Evaluate(f, a) {
			t.Fatalf("activity %s allowed without a valid role: %+v", a, f)
		}
	})
}

func TestEditTicketInfoDeniedOnClosedTicket(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		roles := rapid.SliceOf(rapid.SampledFrom([]domain.UserRole{
			domain.RoleAdministrator, domain.RoleHelpDesk, domain.RoleInternalUser,
		})).Draw(t, "roles")
		me := "alice"
		ticket := &domain.Ticket{
			CurrentStatus: domain.TicketStatusClosed,
			Owner:         rapid.SampledFrom([]string{me, "bob"}).Draw(t, "owner"),
		}
		if rapid.Bool().Draw(t, "assigned") {
			assignee := rapid.SampledFrom([]string{me, "carol"}).Draw(t, "assignee")
			ticket.AssignedTo = &assignee
		}
		if IsAllowed(ticket, ActivityEditTicketInfo, auth.NewPrincipal(me, roles, nil)) {
			t.Fatalf("edit allowed on closed ticket for roles %v", roles)
		}
	})
}

func TestFactsFor(t *testing.T) {
	bob := "bob"
	ticket := &domain.Ticket{
		CurrentStatus: domain.TicketStatusMoreInfo,
		Owner:         "alice",
		AssignedTo:    &bob,
	}

	f := FactsFor(ticket, auth.NewPrincipal("bob", []domain.UserRole{domain.RoleHelpDesk}, nil))
	require.Equal(t, Facts{
		ValidRole:    true,
		Staff:        true,
		Assigned:     true,
		AssignedToMe: true,
		Open:         true,
		MoreInfo:     true,
	}, f)

	f = FactsFor(ticket, auth.NewPrincipal("alice", []domain.UserRole{domain.RoleInternalUser}, nil))
	assert.True(t, f.OwnedByMe)
	assert.False(t, f.AssignedToMe)
	assert.False(t, f.Staff)
}

func TestFactsForNilTicketIsActiveAndUnassigned(t *testing.T) {
	f := FactsFor(nil, auth.NewPrincipal("alice", []domain.UserRole{domain.RoleInternalUser}, nil))
	assert.True(t, f.Open)
	assert.False(t, f.Assigned)
	assert.False(t, f.OwnedByMe)
	assert.True(t, IsAllowed(nil, ActivityCreate, auth.NewPrincipal("alice", []domain.UserRole{domain.RoleInternalUser}, nil)))
	assert.False(t, IsAllowed(nil, ActivityCreate, auth.NewPrincipal("alice", nil, nil)))
}
