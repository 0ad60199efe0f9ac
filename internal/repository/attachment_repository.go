package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const attachmentColumns = `file_id, ticket_id, file_name, file_description, file_size, content_type,
       is_pending, uploaded_by, uploaded_date`

// AddPendingAttachment stores upload metadata that is not yet linked to a ticket.
func (r *ticketRepository) AddPendingAttachment(ctx context.Context, attachment *domain.TicketAttachment) (string, error) {
	if attachment.FileID == "" {
		attachment.FileID = uuid.NewString()
	}
	attachment.TicketID = nil
	attachment.IsPending = true
	if attachment.UploadedDate.IsZero() {
		attachment.UploadedDate = time.Now().UTC()
	}

	const query = `
        INSERT INTO ticket_attachments (file_id, ticket_id, file_name, file_description, file_size,
            content_type, is_pending, uploaded_by, uploaded_date)
        VALUES ($1,NULL,$2,$3,$4,$5,TRUE,$6,$7)`
	if _, err := r.q.Exec(ctx, query,
		attachment.FileID,
		attachment.FileName,
		attachment.FileDescription,
		attachment.FileSize,
		attachment.ContentType,
		attachment.UploadedBy,
		attachment.UploadedDate,
	); err != nil {
		return "", fmt.Errorf("insert attachment: %w", err)
	}
	return attachment.FileID, nil
}

func (r *ticketRepository) GetPendingAttachment(ctx context.Context, fileID string) (*domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments WHERE file_id=$1 AND is_pending`
	att, err := scanAttachment(r.q.QueryRow(ctx, query, fileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment %s: %w", fileID, err)
	}
	return att, nil
}

func (r *ticketRepository) RemoveAttachment(ctx context.Context, attachment domain.TicketAttachment) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM ticket_attachments WHERE file_id=$1`, attachment.FileID); err != nil {
		return fmt.Errorf("remove attachment %s: %w", attachment.FileID, err)
	}
	return nil
}

// CleanUpDerelictAttachments purges pending uploads older than hoursOld and reports
// whether anything was removed.
func (r *ticketRepository) CleanUpDerelictAttachments(ctx context.Context, hoursOld int) (bool, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursOld) * time.Hour)
	cmd, err := r.q.Exec(ctx, `DELETE FROM ticket_attachments WHERE is_pending AND uploaded_date < $1`, cutoff)
	if err != nil {
		return false, fmt.Errorf("purge attachments: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) listAttachments(ctx context.Context, ticketID int64) ([]domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments
        WHERE ticket_id=$1 AND NOT is_pending ORDER BY uploaded_date, file_id`
	rows, err := r.q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var result []domain.TicketAttachment
	for rows.Next() {
		att, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *att)
	}
	return result, rows.Err()
}

func scanAttachment(row pgx.Row) (*domain.TicketAttachment, error) {
	var att domain.TicketAttachment
	if err := row.Scan(
		&att.FileID,
		&att.TicketID,
		&att.FileName,
		&att.FileDescription,
		&att.FileSize,
		&att.ContentType,
		&att.IsPending,
		&att.UploadedBy,
		&att.UploadedDate,
	); err != nil {
		return nil, err
	}
	return &att, nil
}
