package workflow

import (
	"sort"
	"strings"
)

// Failure keys reported to callers.
const (
	FailurePermission  = "permission"
	FailureComment     = "comment"
	FailureAssignTo    = "assignTo"
	FailurePriority    = "priority"
	FailureTitle       = "title"
	FailureDetails     = "details"
	FailureCategory    = "category"
	FailureType        = "type"
	FailureOwner       = "owner"
	FailureAttachments = "attachments"
	FailureChanges     = "changes"
)

const (
	permissionDeniedMessage = "User does not have permission to perform this activity"
	noChangesMessage        = "No changes found"
)

// Failures collects every problem found while validating one operation.
type Failures map[string]string

// Add records a failure. The first message for a key wins.
func (f Failures) Add(key, message string) {
	if _, exists := f[key]; exists {
		return
	}
	f[key] = message
}

// Err returns a *ValidationError carrying a copy of the set, or nil when empty.
func (f Failures) Err() error {
	if len(f) == 0 {
		return nil
	}
	copied := make(map[string]string, len(f))
	for k, v := range f {
		copied[k] = v
	}
	return &ValidationError{Failures: copied}
}

// ValidationError reports an aborted operation with all of its failures.
type ValidationError struct {
	Failures map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for k := range e.Failures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Failures[k])
	}
	return "workflow validation failed: " + strings.Join(parts, "; ")
}

// Denied reports whether the set contains the authorization failure.
func (e *ValidationError) Denied() bool {
	_, ok := e.Failures[FailurePermission]
	return ok
}

// FailureDetails exposes the failure set to error renderers.
func (e *ValidationError) FailureDetails() map[string]string {
	return e.Failures
}
