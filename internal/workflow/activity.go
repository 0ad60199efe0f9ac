// Package workflow implements the ticket lifecycle: the activity catalog, the
// authorization matrix, audit text generation, field-change validation and the engine
// that plans every transition as a list of side effects for the host to execute.
package workflow

// Activity names a workflow action a user attempts against a ticket.
type Activity string

const (
	ActivityNoChange             Activity = "NoChange"
	ActivityGetTicketInfo        Activity = "GetTicketInfo"
	ActivityCreate               Activity = "Create"
	ActivityCreateOnBehalfOf     Activity = "CreateOnBehalfOf"
	ActivityAddComment           Activity = "AddComment"
	ActivityRequestMoreInfo      Activity = "RequestMoreInfo"
	ActivitySupplyMoreInfo       Activity = "SupplyMoreInfo"
	ActivityCancelMoreInfo       Activity = "CancelMoreInfo"
	ActivityResolve              Activity = "Resolve"
	ActivityClose                Activity = "Close"
	ActivityForceClose           Activity = "ForceClose"
	ActivityGiveUp               Activity = "GiveUp"
	ActivityReOpen               Activity = "ReOpen"
	ActivityTakeOver             Activity = "TakeOver"
	ActivityTakeOverWithPriority Activity = "TakeOverWithPriority"
	ActivityAssign               Activity = "Assign"
	ActivityAssignWithPriority   Activity = "AssignWithPriority"
	ActivityReAssign             Activity = "ReAssign"
	ActivityReAssignWithPriority Activity = "ReAssignWithPriority"
	ActivityPass                 Activity = "Pass"
	ActivityPassWithPriority     Activity = "PassWithPriority"
	ActivityModifyAttachments    Activity = "ModifyAttachments"
	ActivityEditTicketInfo       Activity = "EditTicketInfo"
)

var allActivities = []Activity{
	ActivityNoChange,
	ActivityGetTicketInfo,
	ActivityCreate,
	ActivityCreateOnBehalfOf,
	ActivityAddComment,
	ActivityRequestMoreInfo,
	ActivitySupplyMoreInfo,
	ActivityCancelMoreInfo,
	ActivityResolve,
	ActivityClose,
	ActivityForceClose,
	ActivityGiveUp,
	ActivityReOpen,
	ActivityTakeOver,
	ActivityTakeOverWithPriority,
	ActivityAssign,
	ActivityAssignWithPriority,
	ActivityReAssign,
	ActivityReAssignWithPriority,
	ActivityPass,
	ActivityPassWithPriority,
	ActivityModifyAttachments,
	ActivityEditTicketInfo,
}

// Activities returns every catalogued activity.
func Activities() []Activity {
	return append([]Activity(nil), allActivities...)
}

// ParseActivity looks up an activity by name.
func ParseActivity(name string) (Activity, bool) {
	for _, a := range allActivities {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// WithPriority returns the priority-setting variant of an assignment activity.
func (a Activity) WithPriority() Activity {
	switch a {
	case ActivityTakeOver:
		return ActivityTakeOverWithPriority
	case ActivityAssign:
		return ActivityAssignWithPriority
	case ActivityReAssign:
		return ActivityReAssignWithPriority
	case ActivityPass:
		return ActivityPassWithPriority
	}
	return a
}

// CommentFlag records whether free-text commentary accompanied an activity.
type CommentFlag int

const (
	CommentNotApplicable CommentFlag = iota
	CommentSupplied
	CommentNotSupplied
)

func (f CommentFlag) String() string {
	switch f {
	case CommentSupplied:
		return "Supplied"
	case CommentNotSupplied:
		return "NotSupplied"
	default:
		return "NotApplicable"
	}
}
