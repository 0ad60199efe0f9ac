package domain

// Ticket field names as they appear in change sets and audit narratives.
const (
	FieldTitle              = "Title"
	FieldDetails            = "Details"
	FieldPriority           = "Priority"
	FieldType               = "Type"
	FieldCategory           = "Category"
	FieldOwner              = "Owner"
	FieldTagList            = "TagList"
	FieldAssignedTo         = "AssignedTo"
	FieldCurrentStatus      = "CurrentStatus"
	FieldCurrentStatusSetBy = "CurrentStatusSetBy"
	FieldCreatedBy          = "CreatedBy"
)

// TicketField pairs a field name with its accessor.
type TicketField struct {
	Name  string
	Value func(*Ticket) string
}

var ticketFields = []TicketField{
	{Name: FieldTitle, Value: func(t *Ticket) string { return t.Title }},
	{Name: FieldDetails, Value: func(t *Ticket) string { return t.Details }},
	{Name: FieldPriority, Value: func(t *Ticket) string { return string(t.Priority) }},
	{Name: FieldType, Value: func(t *Ticket) string { return t.Type }},
	{Name: FieldCategory, Value: func(t *Ticket) string { return t.Category }},
	{Name: FieldOwner, Value: func(t *Ticket) string { return t.Owner }},
	{Name: FieldTagList, Value: func(t *Ticket) string { return t.TagList }},
	{Name: FieldAssignedTo, Value: func(t *Ticket) string { return t.Assignee() }},
	{Name: FieldCurrentStatus, Value: func(t *Ticket) string { return string(t.CurrentStatus) }},
	{Name: FieldCurrentStatusSetBy, Value: func(t *Ticket) string { return t.CurrentStatusSetBy }},
	{Name: FieldCreatedBy, Value: func(t *Ticket) string { return t.CreatedBy }},
}

// TicketFields returns the comparable fields in their canonical order.
func TicketFields() []TicketField {
	return ticketFields
}

// DiffTicket maps every field whose value differs between the persisted snapshot and the
// proposed ticket to its previous value.
func DiffTicket(previous, proposed *Ticket) map[string]string {
	changes := make(map[string]string)
	if previous == nil || proposed == nil {
		return changes
	}
	for _, field := range ticketFields {
		oldValue := field.Value(previous)
		if oldValue != field.Value(proposed) {
			changes[field.Name] = oldValue
		}
	}
	return changes
}
