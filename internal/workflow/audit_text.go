package workflow

import (
	"fmt"
	"strings"
)

type eventKey struct {
	activity Activity
	flag     CommentFlag
}

// eventTemplates holds the permanent audit sentences. Entries are never reworded once
// released because stored comments are not regenerated.
var eventTemplates = map[eventKey]string{
	{ActivityCreate, CommentNotApplicable}:           "created the ticket",
	{ActivityCreateOnBehalfOf, CommentNotApplicable}: "created the ticket on behalf of %s",
	{ActivityAddComment, CommentNotApplicable}:       "added a comment",
	{ActivityRequestMoreInfo, CommentNotApplicable}:  "has requested more information",
	{ActivitySupplyMoreInfo, CommentNotApplicable}:   "has provided more information",
	{ActivityResolve, CommentNotApplicable}:          "resolved the ticket",
	{ActivityForceClose, CommentNotApplicable}:       "closed the ticket by force",
	{ActivityGiveUp, CommentNotApplicable}:           "has given up on the ticket",

	{ActivityCancelMoreInfo, CommentSupplied}:    "cancelled the request for more information",
	{ActivityCancelMoreInfo, CommentNotSupplied}: "cancelled the request for more information without comment",
	{ActivityClose, CommentSupplied}:             "closed the ticket",
	{ActivityClose, CommentNotSupplied}:          "closed the ticket without comment",
	{ActivityReOpen, CommentSupplied}:            "re-opened the ticket",
	{ActivityReOpen, CommentNotSupplied}:         "re-opened the ticket without comment",

	{ActivityTakeOver, CommentSupplied}:                 "took over the ticket",
	{ActivityTakeOver, CommentNotSupplied}:              "took over the ticket without comment",
	{ActivityTakeOverWithPriority, CommentSupplied}:     "took over the ticket at %s priority",
	{ActivityTakeOverWithPriority, CommentNotSupplied}:  "took over the ticket at %s priority without comment",
	{ActivityAssign, CommentSupplied}:                   "assigned the ticket to %s",
	{ActivityAssign, CommentNotSupplied}:                "assigned the ticket to %s without comment",
	{ActivityAssignWithPriority, CommentSupplied}:       "assigned the ticket to %s at %s priority",
	{ActivityAssignWithPriority, CommentNotSupplied}:    "assigned the ticket to %s at %s priority without comment",
	{ActivityReAssign, CommentSupplied}:                 "reassigned the ticket to %s",
	{ActivityReAssign, CommentNotSupplied}:              "reassigned the ticket to %s without comment",
	{ActivityReAssignWithPriority, CommentSupplied}:     "reassigned the ticket to %s at %s priority",
	{ActivityReAssignWithPriority, CommentNotSupplied}:  "reassigned the ticket to %s at %s priority without comment",
	{ActivityPass, CommentSupplied}:                     "passed the ticket to %s",
	{ActivityPass, CommentNotSupplied}:                  "passed the ticket to %s without comment",
	{ActivityPassWithPriority, CommentSupplied}:         "passed the ticket to %s at %s priority",
	{ActivityPassWithPriority, CommentNotSupplied}:      "passed the ticket to %s at %s priority without comment",
	{ActivityModifyAttachments, CommentSupplied}:        "modified the attachments",
	{ActivityModifyAttachments, CommentNotSupplied}:     "modified the attachments without comment",
	{ActivityEditTicketInfo, CommentSupplied}:           "edited the ticket information",
	{ActivityEditTicketInfo, CommentNotSupplied}:        "edited the ticket information without comment",
}

// optionalCommentActivities choose between the Supplied and NotSupplied templates.
var optionalCommentActivities = map[Activity]bool{
	ActivityCancelMoreInfo:       true,
	ActivityClose:                true,
	ActivityReOpen:               true,
	ActivityTakeOver:             true,
	ActivityTakeOverWithPriority: true,
	ActivityAssign:               true,
	ActivityAssignWithPriority:   true,
	ActivityReAssign:             true,
	ActivityReAssignWithPriority: true,
	ActivityPass:                 true,
	ActivityPassWithPriority:     true,
	ActivityModifyAttachments:    true,
	ActivityEditTicketInfo:       true,
}

// CommentFlagFor picks the flag an activity's audit sentence is keyed by.
func CommentFlagFor(activity Activity, comment string) CommentFlag {
	if !optionalCommentActivities[activity] {
		return CommentNotApplicable
	}
	if strings.TrimSpace(comment) == "" {
		return CommentNotSupplied
	}
	return CommentSupplied
}

// EventText renders the audit sentence for an activity. Arguments fill the template's
// placeholders in order; surplus arguments are ignored and missing ones render empty.
func EventText(activity Activity, flag CommentFlag, args ...string) string {
	template, ok := eventTemplates[eventKey{activity, flag}]
	if !ok {
		return fmt.Sprintf("performed the %s activity", activity)
	}
	want := strings.Count(template, "%s")
	values := make([]any, want)
	for i := range values {
		if i < len(args) {
			values[i] = args[i]
		} else {
			values[i] = ""
		}
	}
	return fmt.Sprintf(template, values...)
}
