package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/control-eventos/apiserver/types"
	"github.com/lib/pq"
)

// ComplaintRepository handles persistence for complaints and suggestions.
type ComplaintRepository struct {
	db *sql.DB
}

func NewComplaintRepository(db *sql.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

const complaintColumns = `id, user_email, user_name, type, subject, message, status,
	admin_response, admin_email, images, resolved_at, created_at, updated_at`

func scanComplaint(row interface{ Scan(...any) error }) (types.Complaint, error) {
	var complaint types.Complaint
	var resolvedAt sql.NullTime
	err := row.Scan(
		&complaint.ID,
		&complaint.UserEmail,
		&complaint.UserName,
		&complaint.Type,
		&complaint.Subject,
		&complaint.Message,
		&complaint.Status,
		&complaint.AdminResponse,
		&complaint.AdminEmail,
		pq.Array(&complaint.Images),
		&resolvedAt,
		&complaint.CreatedAt,
		&complaint.UpdatedAt,
	)
	if err != nil {
		return types.Complaint{}, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		complaint.ResolvedAt = &t
	}
	if complaint.Images == nil {
		complaint.Images = []string{}
	}
	return complaint, nil
}

func (r *ComplaintRepository) Create(ctx context.Context, complaint types.Complaint) (types.Complaint, error) {
	now := time.Now()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	if complaint.Images == nil {
		complaint.Images = []string{}
	}

	const query = `
		INSERT INTO complaints_suggestions (user_email, user_name, type, subject, message, status,
			images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		complaint.UserEmail,
		complaint.UserName,
		complaint.Type,
		complaint.Subject,
		complaint.Message,
		complaint.Status,
		pq.Array(complaint.Images),
		complaint.CreatedAt,
		complaint.UpdatedAt,
	).Scan(&complaint.ID); err != nil {
		return types.Complaint{}, err
	}
	return complaint, nil
}

func (r *ComplaintRepository) Get(ctx context.Context, id int) (types.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints_suggestions WHERE id = $1`
	complaint, err := scanComplaint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Complaint{}, ErrNotFound
		}
		return types.Complaint{}, err
	}
	return complaint, nil
}

// ListByUser returns the complaints a user sent, newest first.
func (r *ComplaintRepository) ListByUser(ctx context.Context, email string) ([]types.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints_suggestions
		WHERE user_email = $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, email)
}

// List returns all complaints newest first, optionally filtered by status.
func (r *ComplaintRepository) List(ctx context.Context, status types.ComplaintStatus) ([]types.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints_suggestions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, string(status))
}

func (r *ComplaintRepository) list(ctx context.Context, query string, arg any) ([]types.Complaint, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints := make([]types.Complaint, 0)
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		complaints = append(complaints, complaint)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return complaints, nil
}

// UpdateStatus applies an admin review. An empty AdminResponse keeps the
// stored response; resolvedAt is written only when non-nil.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, id int, update types.ComplaintStatusUpdate, resolvedAt *time.Time) (types.Complaint, error) {
	var resolved sql.NullTime
	if resolvedAt != nil {
		resolved = sql.NullTime{Time: *resolvedAt, Valid: true}
	}

	query := `
		UPDATE complaints_suggestions
		SET status = $1,
			admin_email = $2,
			admin_response = CASE WHEN $3 = '' THEN admin_response ELSE $3 END,
			resolved_at = COALESCE($4, resolved_at),
			updated_at = $5
		WHERE id = $6
		RETURNING ` + complaintColumns
	complaint, err := scanComplaint(r.db.QueryRowContext(
		ctx,
		query,
		update.Status,
		update.AdminEmail,
		update.AdminResponse,
		resolved,
		time.Now(),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Complaint{}, ErrNotFound
		}
		return types.Complaint{}, err
	}
	return complaint, nil
}
