package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/workflow"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// actionRoutes maps the action path segment to the requested activity. Assignment and
// take-over variants are refined by the engine.
var actionRoutes = map[string]workflow.Activity{
	"comment":           workflow.ActivityAddComment,
	"request-more-info": workflow.ActivityRequestMoreInfo,
	"supply-more-info":  workflow.ActivitySupplyMoreInfo,
	"cancel-more-info":  workflow.ActivityCancelMoreInfo,
	"take-over":         workflow.ActivityTakeOver,
	"assign":            workflow.ActivityAssign,
	"give-up":           workflow.ActivityGiveUp,
	"resolve":           workflow.ActivityResolve,
	"close":             workflow.ActivityClose,
	"force-close":       workflow.ActivityForceClose,
	"re-open":           workflow.ActivityReOpen,
}

// TicketsHandler exposes the ticket workflow.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.service.CreateTicket(c.UserContext(), principal, service.TicketCreateInput{
		Title:         req.Title,
		Details:       req.Details,
		Category:      req.Category,
		Type:          req.Type,
		Priority:      req.Priority,
		Owner:         req.Owner,
		TagList:       req.Tags,
		AttachmentIDs: req.AttachmentIDs,
	})
	if err != nil {
		return err
	}
	return respondResult(c, http.StatusCreated, res)
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	query := parseTicketQuery(c)
	page, err := h.service.ListTickets(c.UserContext(), principal, query)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(page.Tickets))
	for i := range page.Tickets {
		items = append(items, ticketSummary(&page.Tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketPageResponse{
		Items:    items,
		Total:    page.Total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	activities, err := h.service.AvailableActivities(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	detail := ticketDetail(ticket)
	detail.AvailableActions = activityNames(activities)
	return c.JSON(fiber.Map{"data": detail})
}

// Activities GET /tickets/:id/activities.
func (h *TicketsHandler) Activities(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	activities, err := h.service.AvailableActivities(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": activityNames(activities)})
}

// EditTicket PUT /tickets/:id.
func (h *TicketsHandler) EditTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.EditTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.service.EditTicketInfo(c.UserContext(), principal, id, service.TicketEditInput{
		Title:         req.Title,
		Details:       req.Details,
		Category:      req.Category,
		Type:          req.Type,
		Priority:      req.Priority,
		Owner:         req.Owner,
		TagList:       req.Tags,
		AssignedTo:    req.AssignedTo,
		CurrentStatus: req.CurrentStatus,
		Comment:       req.Comment,
	})
	if err != nil {
		return err
	}
	return respondResult(c, http.StatusOK, res)
}

// ModifyAttachments PUT /tickets/:id/attachments.
func (h *TicketsHandler) ModifyAttachments(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ModifyAttachmentsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.service.ModifyAttachments(c.UserContext(), principal, id, req.FileIDs, req.Comment)
	if err != nil {
		return err
	}
	return respondResult(c, http.StatusOK, res)
}

// PerformAction POST /tickets/:id/actions/:activity.
func (h *TicketsHandler) PerformAction(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	activity, ok := actionRoutes[c.Params("activity")]
	if !ok {
		return apperrors.NewNotFound("action", map[string]any{"action": c.Params("activity")})
	}
	var req dto.ActionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	res, err := h.service.Perform(c.UserContext(), principal, id, activity, service.ActionInput{
		Comment:  req.Comment,
		AssignTo: req.AssignTo,
		Priority: req.Priority,
	})
	if err != nil {
		return err
	}
	return respondResult(c, http.StatusOK, res)
}

// SuggestTags GET /tags?prefix=&max=.
func (h *TicketsHandler) SuggestTags(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tags, err := h.service.SuggestTags(c.UserContext(), principal, c.Query("prefix"), parseInt(c.Query("max"), 0))
	if err != nil {
		return err
	}
	if tags == nil {
		tags = []string{}
	}
	return c.JSON(fiber.Map{"data": tags})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal, nil
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

// respondResult renders a workflow outcome. A lost optimistic race is a conflict.
func respondResult(c *fiber.Ctx, status int, res *service.Result) error {
	if !res.Saved {
		return apperrors.NewConflict("ticket was modified by someone else; reload and retry",
			map[string]any{"activity": string(res.Activity)})
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.ActionResponse{
		Activity: string(res.Activity),
		Saved:    res.Saved,
		Ticket:   ticketDetail(res.Ticket),
	}})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketQuery {
	query := repository.TicketQuery{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 20),
		Sort:     c.Query("sort"),
		Filter: repository.TicketFilter{
			Owner:      c.Query("owner"),
			AssignedTo: c.Query("assigned_to"),
			Unassigned: c.QueryBool("unassigned"),
			Tag:        c.Query("tag"),
			Search:     c.Query("q"),
		},
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			query.Filter.Statuses = append(query.Filter.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	return query
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func activityNames(activities []workflow.Activity) []string {
	names := make([]string, 0, len(activities))
	for _, a := range activities {
		names = append(names, string(a))
	}
	return names
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	tags := make([]string, 0, len(ticket.Tags))
	for _, tag := range ticket.Tags {
		tags = append(tags, tag.TagName)
	}
	return dto.TicketSummary{
		ID:             ticket.ID,
		Title:          ticket.Title,
		Category:       ticket.Category,
		Type:           ticket.Type,
		Priority:       ticket.Priority,
		Status:         ticket.CurrentStatus,
		Owner:          ticket.Owner,
		AssignedTo:     ticket.AssignedTo,
		Tags:           tags,
		CreatedDate:    ticket.CreatedDate,
		LastUpdateDate: ticket.LastUpdateDate,
		Version:        ticket.Version,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	comments := make([]dto.CommentResponse, 0, len(ticket.Comments))
	for _, c := range ticket.Comments {
		comments = append(comments, dto.CommentResponse{
			ID:            c.ID,
			CommentedBy:   c.CommentedBy,
			CommentedDate: c.CommentedDate,
			Event:         c.CommentEvent,
			Comment:       c.Comment,
		})
	}
	attachments := make([]dto.AttachmentResponse, 0, len(ticket.Attachments))
	for _, att := range ticket.Attachments {
		attachments = append(attachments, attachmentResponse(att))
	}
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Details:       ticket.Details,
		CreatedBy:     ticket.CreatedBy,
		LastUpdateBy:  ticket.LastUpdateBy,
		StatusDate:    ticket.CurrentStatusDate,
		StatusSetBy:   ticket.CurrentStatusSetBy,
		Comments:      comments,
		Attachments:   attachments,
	}
}

func attachmentResponse(att domain.TicketAttachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		FileID:       att.FileID,
		FileName:     att.FileName,
		Description:  att.FileDescription,
		ContentType:  att.ContentType,
		FileSize:     att.FileSize,
		IsPending:    att.IsPending,
		UploadedBy:   att.UploadedBy,
		UploadedDate: att.UploadedDate,
	}
}
