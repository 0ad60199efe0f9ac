package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ticketRepository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool, q: pool}
}

const ticketColumns = `id, title, details, category, type, priority, tag_list, current_status,
       current_status_date, current_status_set_by, owner, assigned_to, created_by, created_date,
       last_update_by, last_update_date, version`

func (r *ticketRepository) InTx(ctx context.Context, fn func(store TicketStore) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&ticketRepository{pool: r.pool, q: tx})
	})
}

func (r *ticketRepository) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := r.getTicketRow(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Comments, err = r.listComments(ctx, id); err != nil {
		return nil, err
	}
	if ticket.Attachments, err = r.listAttachments(ctx, id); err != nil {
		return nil, err
	}
	if ticket.Tags, err = r.listTags(ctx, id); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) getTicketRow(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return ticket, nil
}

func (r *ticketRepository) CreateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	const query = `
        INSERT INTO tickets (title, details, category, type, priority, tag_list, current_status,
            current_status_date, current_status_set_by, owner, assigned_to, created_by, created_date,
            last_update_by, last_update_date, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1)
        RETURNING id, version`
	var w ticketWrite
	if err := r.q.QueryRow(ctx, query,
		ticket.Title,
		ticket.Details,
		ticket.Category,
		ticket.Type,
		ticket.Priority,
		ticket.TagList,
		ticket.CurrentStatus,
		ticket.CurrentStatusDate,
		ticket.CurrentStatusSetBy,
		ticket.Owner,
		ticket.AssignedTo,
		ticket.CreatedBy,
		ticket.CreatedDate,
		ticket.LastUpdateBy,
		ticket.LastUpdateDate,
	).Scan(&w.id, &w.version); err != nil {
		return false, fmt.Errorf("insert ticket: %w", err)
	}
	return r.writeChildren(ctx, ticket, w)
}

func (r *ticketRepository) UpdateTicket(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	const query = `
        UPDATE tickets SET title=$1, details=$2, category=$3, type=$4, priority=$5, tag_list=$6,
            current_status=$7, current_status_date=$8, current_status_set_by=$9, owner=$10,
            assigned_to=$11, last_update_by=$12, last_update_date=$13, version=version+1
        WHERE id=$14 AND version=$15`
	cmd, err := r.q.Exec(ctx, query,
		ticket.Title,
		ticket.Details,
		ticket.Category,
		ticket.Type,
		ticket.Priority,
		ticket.TagList,
		ticket.CurrentStatus,
		ticket.CurrentStatusDate,
		ticket.CurrentStatusSetBy,
		ticket.Owner,
		ticket.AssignedTo,
		ticket.LastUpdateBy,
		ticket.LastUpdateDate,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return false, fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	return r.writeChildren(ctx, ticket, ticketWrite{id: ticket.ID, version: ticket.Version + 1})
}

// ticketWrite collects the identifiers produced by a write. They reach the caller's
// ticket only after every statement succeeded.
type ticketWrite struct {
	id         int64
	version    int64
	commentIDs map[int]int64
}

func (w ticketWrite) applyTo(ticket *domain.Ticket) {
	ticket.ID = w.id
	ticket.Version = w.version
	for i, id := range w.commentIDs {
		ticket.Comments[i].ID = id
		ticket.Comments[i].TicketID = w.id
	}
	for i := range ticket.Tags {
		ticket.Tags[i].TicketID = w.id
	}
	for i := range ticket.Attachments {
		ticket.Attachments[i].Commit(w.id)
	}
}

// writeChildren inserts new comments and tags and links the ticket's attachments.
func (r *ticketRepository) writeChildren(ctx context.Context, ticket *domain.Ticket, w ticketWrite) (bool, error) {
	const insertComment = `
        INSERT INTO ticket_comments (ticket_id, commented_by, commented_date, comment_event, comment, is_html, recipients)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	w.commentIDs = make(map[int]int64)
	for i, c := range ticket.Comments {
		if c.ID != 0 {
			continue
		}
		recipients := c.Recipients
		if recipients == nil {
			recipients = []string{}
		}
		var id int64
		if err := r.q.QueryRow(ctx, insertComment,
			w.id, c.CommentedBy, c.CommentedDate, c.CommentEvent, c.Comment, c.IsHTML, recipients,
		).Scan(&id); err != nil {
			return false, fmt.Errorf("insert comment: %w", err)
		}
		w.commentIDs[i] = id
	}

	const insertTag = `INSERT INTO ticket_tags (ticket_id, tag_name) VALUES ($1,$2) ON CONFLICT DO NOTHING`
	for _, tag := range ticket.Tags {
		if _, err := r.q.Exec(ctx, insertTag, w.id, tag.TagName); err != nil {
			return false, fmt.Errorf("insert tag: %w", err)
		}
	}

	const linkAttachment = `
        UPDATE ticket_attachments SET ticket_id=$1, is_pending=FALSE
        WHERE file_id=$2 AND (is_pending OR ticket_id=$1)`
	for _, att := range ticket.Attachments {
		cmd, err := r.q.Exec(ctx, linkAttachment, w.id, att.FileID)
		if err != nil {
			return false, fmt.Errorf("link attachment %s: %w", att.FileID, err)
		}
		if cmd.RowsAffected() == 0 {
			return false, nil
		}
	}

	w.applyTo(ticket)
	return true, nil
}

func (r *ticketRepository) GetTicketChanges(ctx context.Context, ticket *domain.Ticket) (map[string]string, error) {
	previous, err := r.getTicketRow(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return domain.DiffTicket(previous, ticket), nil
}

func (r *ticketRepository) ClearTags(ctx context.Context, ticket *domain.Ticket) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM ticket_tags WHERE ticket_id=$1`, ticket.ID); err != nil {
		return fmt.Errorf("clear tags of ticket %d: %w", ticket.ID, err)
	}
	return nil
}

func (r *ticketRepository) ListTickets(ctx context.Context, query TicketQuery) (TicketPage, error) {
	clauses := []string{"1=1"}
	args := []any{}
	f := query.Filter

	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, status := range f.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("current_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if f.Owner != "" {
		args = append(args, f.Owner)
		clauses = append(clauses, fmt.Sprintf("owner=$%d", len(args)))
	}
	if f.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	} else if f.AssignedTo != "" {
		args = append(args, f.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		args = append(args, tag)
		clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM ticket_tags tt WHERE tt.ticket_id=tickets.id AND tt.tag_name=$%d)", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+strings.ToLower(escapeLike(search))+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(details) LIKE %s)", placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return TicketPage{}, fmt.Errorf("count tickets: %w", err)
	}

	_, size, key, desc := query.normalize()
	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	sql := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s %s, id %s LIMIT %d OFFSET %d`,
		ticketColumns, where, sortColumns[key], direction, direction, size, query.offset())

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return TicketPage{}, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	page := TicketPage{Total: total}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return TicketPage{}, err
		}
		page.Tickets = append(page.Tickets, *ticket)
	}
	return page, rows.Err()
}

func (r *ticketRepository) GetDistinctTagsStartingWith(ctx context.Context, prefix string, max int) ([]string, error) {
	if max <= 0 {
		max = 10
	}
	const query = `
        SELECT DISTINCT tag_name FROM ticket_tags
        WHERE tag_name LIKE $1
        ORDER BY tag_name LIMIT $2`
	rows, err := r.q.Query(ctx, query, escapeLike(strings.ToLower(strings.TrimSpace(prefix)))+"%", max)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *ticketRepository) listComments(ctx context.Context, ticketID int64) ([]domain.TicketComment, error) {
	const query = `
        SELECT id, ticket_id, commented_by, commented_date, comment_event, comment, is_html, recipients
        FROM ticket_comments WHERE ticket_id=$1 ORDER BY id`
	rows, err := r.q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		var c domain.TicketComment
		if err := rows.Scan(
			&c.ID,
			&c.TicketID,
			&c.CommentedBy,
			&c.CommentedDate,
			&c.CommentEvent,
			&c.Comment,
			&c.IsHTML,
			&c.Recipients,
		); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *ticketRepository) listTags(ctx context.Context, ticketID int64) ([]domain.Tag, error) {
	rows, err := r.q.Query(ctx, `SELECT ticket_id, tag_name FROM ticket_tags WHERE ticket_id=$1 ORDER BY tag_name`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var result []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.TicketID, &tag.TagName); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Details,
		&ticket.Category,
		&ticket.Type,
		&ticket.Priority,
		&ticket.TagList,
		&ticket.CurrentStatus,
		&ticket.CurrentStatusDate,
		&ticket.CurrentStatusSetBy,
		&ticket.Owner,
		&ticket.AssignedTo,
		&ticket.CreatedBy,
		&ticket.CreatedDate,
		&ticket.LastUpdateBy,
		&ticket.LastUpdateDate,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
