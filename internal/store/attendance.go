package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/control-eventos/apiserver/internal/db"
	"github.com/control-eventos/apiserver/types"
)

// AttendanceRepository handles the event_attendees join table and the
// denormalized event_attendance_history table.
type AttendanceRepository struct {
	db *sql.DB
}

func NewAttendanceRepository(db *sql.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) AttendeeExists(ctx context.Context, eventID int, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM event_attendees WHERE event_id = $1 AND user_email = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, eventID, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// InsertAttendee records that email attended eventID. A second insert for the
// same pair returns ErrConflict.
func (r *AttendanceRepository) InsertAttendee(ctx context.Context, eventID int, email string) (types.Attendee, error) {
	attendee := types.Attendee{
		EventID:      eventID,
		UserEmail:    email,
		RegisteredAt: time.Now(),
	}

	const query = `
		INSERT INTO event_attendees (event_id, user_email, registered_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, attendee.EventID, attendee.UserEmail, attendee.RegisteredAt).
		Scan(&attendee.ID); err != nil {
		if db.IsUniqueViolation(err, "") {
			return types.Attendee{}, ErrConflict
		}
		return types.Attendee{}, err
	}
	return attendee, nil
}

// InsertHistory stores a history row. It is a no-op when a row for the same
// (event, user) already exists; inserted reports which case happened.
func (r *AttendanceRepository) InsertHistory(ctx context.Context, record types.AttendanceRecord) (inserted bool, err error) {
	if record.AttendedAt.IsZero() {
		record.AttendedAt = time.Now()
	}

	const query = `
		INSERT INTO event_attendance_history (
			event_id, event_title, event_date, event_location, confirmation_code,
			user_email, user_name, referente, telefono, correo_electronico,
			municipio, seccion, edad, sexo, attended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (event_id, user_email) DO NOTHING`
	result, err := r.db.ExecContext(
		ctx,
		query,
		record.EventID,
		record.EventTitle,
		record.EventDate,
		record.EventLocation,
		record.ConfirmationCode,
		record.UserEmail,
		record.UserName,
		record.Referente,
		record.Telefono,
		record.CorreoElectronico,
		record.Municipio,
		record.Seccion,
		record.Edad,
		record.Sexo,
		record.AttendedAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const historyColumns = `id, event_id, event_title, event_date, event_location, confirmation_code,
	user_email, user_name, referente, telefono, correo_electronico,
	municipio, seccion, edad, sexo, attended_at`

// HistoryByUser returns a user's history, most recent first.
func (r *AttendanceRepository) HistoryByUser(ctx context.Context, email string) ([]types.AttendanceRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM event_attendance_history
		WHERE user_email = $1
		ORDER BY attended_at DESC, id DESC`
	return r.queryHistory(ctx, query, email)
}

// HistoryByEvent returns the detailed attendee list of an event, most recent first.
func (r *AttendanceRepository) HistoryByEvent(ctx context.Context, eventID int) ([]types.AttendanceRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM event_attendance_history
		WHERE event_id = $1
		ORDER BY attended_at DESC, id DESC`
	return r.queryHistory(ctx, query, eventID)
}

func (r *AttendanceRepository) queryHistory(ctx context.Context, query string, arg any) ([]types.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]types.AttendanceRecord, 0)
	for rows.Next() {
		var rec types.AttendanceRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.EventTitle,
			&rec.EventDate,
			&rec.EventLocation,
			&rec.ConfirmationCode,
			&rec.UserEmail,
			&rec.UserName,
			&rec.Referente,
			&rec.Telefono,
			&rec.CorreoElectronico,
			&rec.Municipio,
			&rec.Seccion,
			&rec.Edad,
			&rec.Sexo,
			&rec.AttendedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
