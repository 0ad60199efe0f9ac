package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AttachmentsHandler records upload metadata ahead of ticket creation or modification.
type AttachmentsHandler struct {
	service *service.TicketService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(ticketService *service.TicketService) *AttachmentsHandler {
	return &AttachmentsHandler{service: ticketService}
}

// AddPending POST /attachments.
func (h *AttachmentsHandler) AddPending(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.PendingAttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	att, err := h.service.AddPendingAttachment(c.UserContext(), principal, domain.TicketAttachment{
		FileName:        req.FileName,
		FileDescription: req.FileDescription,
		FileSize:        req.FileSize,
		ContentType:     req.ContentType,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(*att)})
}
