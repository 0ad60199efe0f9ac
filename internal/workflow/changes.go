package workflow

import (
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

var editableFields = map[string]bool{
	domain.FieldTitle:    true,
	domain.FieldDetails:  true,
	domain.FieldPriority: true,
	domain.FieldType:     true,
	domain.FieldCategory: true,
	domain.FieldOwner:    true,
	domain.FieldTagList:  true,
}

// Long free-text fields only report that they changed.
var summaryOnlyFields = map[string]bool{
	domain.FieldTitle:   true,
	domain.FieldDetails: true,
	domain.FieldTagList: true,
}

var fieldLabels = map[string]string{
	domain.FieldTagList: "Tags",
}

// IsEditableField reports whether the edit-details path may change the field.
func IsEditableField(name string) bool {
	return editableFields[name]
}

// ValidateChanges rejects changes outside the allow-list and empty change sets.
func ValidateChanges(changes map[string]string, f Failures) {
	if len(changes) == 0 {
		f.Add(FailureChanges, noChangesMessage)
		return
	}
	for _, field := range domain.TicketFields() {
		if _, changed := changes[field.Name]; changed && !editableFields[field.Name] {
			f.Add(field.Name, fmt.Sprintf("Changing the %s field is not allowed", field.Name))
		}
	}
}

// DescribeChanges renders one line per changed editable field in registry order.
func DescribeChanges(changes map[string]string, proposed *domain.Ticket, user auth.Identity) string {
	var lines []string
	for _, field := range domain.TicketFields() {
		oldValue, changed := changes[field.Name]
		if !changed || !editableFields[field.Name] {
			continue
		}
		label := field.Name
		if l, ok := fieldLabels[field.Name]; ok {
			label = l
		}
		if summaryOnlyFields[field.Name] {
			lines = append(lines, label+" changed")
			continue
		}
		newValue := field.Value(proposed)
		if field.Name == domain.FieldOwner {
			oldValue = user.GetUserDisplayName(oldValue)
			newValue = user.GetUserDisplayName(newValue)
		}
		lines = append(lines, fmt.Sprintf("%s changed from %s to %s", label, quoted(oldValue), quoted(newValue)))
	}
	return strings.Join(lines, "\n")
}

func quoted(v string) string {
	if v == "" {
		return "(none)"
	}
	return "'" + v + "'"
}
