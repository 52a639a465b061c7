package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/control-eventos/apiserver/internal/db"
	"github.com/control-eventos/apiserver/types"
	"github.com/lib/pq"
)

// EventRepository handles persistence for events and their attendee lists.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventSelect = `
	SELECT e.id, e.title, e.date, e.location, e.description, e.qr_code, e.confirmation_code,
		e.created_by, e.suspended, e.image_url, e.created_at, e.updated_at,
		COALESCE(array_agg(a.user_email ORDER BY a.registered_at) FILTER (WHERE a.user_email IS NOT NULL), '{}')
	FROM events e
	LEFT JOIN event_attendees a ON a.event_id = e.id`

func scanEvent(row interface{ Scan(...any) error }) (types.Event, error) {
	var event types.Event
	var createdBy sql.NullInt64
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Date,
		&event.Location,
		&event.Description,
		&event.QRCode,
		&event.ConfirmationCode,
		&createdBy,
		&event.Suspended,
		&event.ImageURL,
		&event.CreatedAt,
		&event.UpdatedAt,
		pq.Array(&event.Attendees),
	)
	if err != nil {
		return types.Event{}, err
	}
	event.CreatedBy = int(createdBy.Int64)
	return event, nil
}

// List returns events newest first. Suspended events are skipped unless
// includeSuspended is set.
func (r *EventRepository) List(ctx context.Context, includeSuspended bool) ([]types.Event, error) {
	query := eventSelect + `
		WHERE ($1 OR e.suspended = FALSE)
		GROUP BY e.id
		ORDER BY e.created_at DESC, e.id DESC`
	rows, err := r.db.QueryContext(ctx, query, includeSuspended)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]types.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) Get(ctx context.Context, id int) (types.Event, error) {
	query := eventSelect + ` WHERE e.id = $1 GROUP BY e.id`
	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

// GetByCode looks an event up by its confirmation code, case-insensitively.
func (r *EventRepository) GetByCode(ctx context.Context, code string) (types.Event, error) {
	query := eventSelect + ` WHERE e.confirmation_code = $1 GROUP BY e.id`
	event, err := scanEvent(r.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

// Create inserts an event. A colliding confirmation code yields ErrConflict.
func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	var createdBy sql.NullInt64
	if event.CreatedBy > 0 {
		createdBy = sql.NullInt64{Int64: int64(event.CreatedBy), Valid: true}
	}

	const query = `
		INSERT INTO events (title, date, location, description, qr_code, confirmation_code,
			created_by, suspended, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.Title,
		event.Date,
		event.Location,
		event.Description,
		event.QRCode,
		event.ConfirmationCode,
		createdBy,
		event.Suspended,
		event.ImageURL,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID); err != nil {
		if db.IsUniqueViolation(err, "events_confirmation_code_key") {
			return types.Event{}, ErrConflict
		}
		return types.Event{}, err
	}
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	return event, nil
}

func (r *EventRepository) SetSuspended(ctx context.Context, id int, suspended bool) error {
	const query = `UPDATE events SET suspended = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, suspended, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventRepository) CountAttendees(ctx context.Context, id int) (int, error) {
	const query = `SELECT COUNT(1) FROM event_attendees WHERE event_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EventRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
