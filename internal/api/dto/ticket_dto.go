package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title         string                `json:"title"`
	Details       string                `json:"details"`
	Category      string                `json:"category"`
	Type          string                `json:"type"`
	Priority      domain.TicketPriority `json:"priority"`
	Owner         string                `json:"owner"`
	Tags          string                `json:"tags"`
	AttachmentIDs []string              `json:"attachment_ids"`
}

// EditTicketRequest payload. Omitted fields are left unchanged.
type EditTicketRequest struct {
	Title         *string                `json:"title"`
	Details       *string                `json:"details"`
	Category      *string                `json:"category"`
	Type          *string                `json:"type"`
	Priority      *domain.TicketPriority `json:"priority"`
	Owner         *string                `json:"owner"`
	Tags          *string                `json:"tags"`
	AssignedTo    *string                `json:"assigned_to"`
	CurrentStatus *domain.TicketStatus   `json:"current_status"`
	Comment       string                 `json:"comment"`
}

// ModifyAttachmentsRequest lists the complete desired attachment set.
type ModifyAttachmentsRequest struct {
	FileIDs []string `json:"file_ids"`
	Comment string   `json:"comment"`
}

// ActionRequest parameterises a workflow action.
type ActionRequest struct {
	Comment  string                `json:"comment"`
	AssignTo string                `json:"assign_to"`
	Priority domain.TicketPriority `json:"priority"`
}

// PendingAttachmentRequest describes an uploaded file awaiting a ticket.
type PendingAttachmentRequest struct {
	FileName        string `json:"file_name"`
	FileDescription string `json:"file_description"`
	FileSize        int64  `json:"file_size"`
	ContentType     string `json:"content_type"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             int64                 `json:"id"`
	Title          string                `json:"title"`
	Category       string                `json:"category"`
	Type           string                `json:"type"`
	Priority       domain.TicketPriority `json:"priority"`
	Status         domain.TicketStatus   `json:"status"`
	Owner          string                `json:"owner"`
	AssignedTo     *string               `json:"assigned_to"`
	Tags           []string              `json:"tags"`
	CreatedDate    time.Time             `json:"created_date"`
	LastUpdateDate time.Time             `json:"last_update_date"`
	Version        int64                 `json:"version"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Details          string               `json:"details"`
	CreatedBy        string               `json:"created_by"`
	LastUpdateBy     string               `json:"last_update_by"`
	StatusDate       time.Time            `json:"status_date"`
	StatusSetBy      string               `json:"status_set_by"`
	Comments         []CommentResponse    `json:"comments"`
	Attachments      []AttachmentResponse `json:"attachments"`
	AvailableActions []string             `json:"available_actions,omitempty"`
}

// CommentResponse is one audit entry.
type CommentResponse struct {
	ID            int64     `json:"id"`
	CommentedBy   string    `json:"commented_by"`
	CommentedDate time.Time `json:"commented_date"`
	Event         string    `json:"event"`
	Comment       string    `json:"comment,omitempty"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	FileID       string    `json:"file_id"`
	FileName     string    `json:"file_name"`
	Description  string    `json:"description,omitempty"`
	ContentType  string    `json:"content_type"`
	FileSize     int64     `json:"file_size"`
	IsPending    bool      `json:"is_pending"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedDate time.Time `json:"uploaded_date"`
}

// ActionResponse reports a workflow outcome.
type ActionResponse struct {
	Activity string               `json:"activity"`
	Saved    bool                 `json:"saved"`
	Ticket   TicketDetailResponse `json:"ticket"`
}

// TicketPageResponse is one page of a ticket listing.
type TicketPageResponse struct {
	Items    []TicketSummary `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}
