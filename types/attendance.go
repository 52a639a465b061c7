package types

import "time"

// Attendee joins a user (by email) to an event. The pair is unique.
type Attendee struct {
	ID           int       `json:"id" db:"id"`
	EventID      int       `json:"event_id" db:"event_id"`
	UserEmail    string    `json:"user_email" db:"user_email"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// AttendanceRecord is a history row. It copies the event and card fields
// as they were at check-in time so reports survive later edits.
type AttendanceRecord struct {
	ID                int       `json:"id" db:"id"`
	EventID           int       `json:"event_id" db:"event_id"`
	EventTitle        string    `json:"event_title" db:"event_title"`
	EventDate         string    `json:"event_date" db:"event_date"`
	EventLocation     string    `json:"event_location" db:"event_location"`
	ConfirmationCode  string    `json:"confirmation_code" db:"confirmation_code"`
	UserEmail         string    `json:"user_email" db:"user_email"`
	UserName          string    `json:"user_name" db:"user_name"`
	Referente         string    `json:"referente" db:"referente"`
	Telefono          string    `json:"telefono" db:"telefono"`
	CorreoElectronico string    `json:"correo_electronico" db:"correo_electronico"`
	Municipio         string    `json:"municipio" db:"municipio"`
	Seccion           string    `json:"seccion" db:"seccion"`
	Edad              int       `json:"edad" db:"edad"`
	Sexo              string    `json:"sexo" db:"sexo"`
	AttendedAt        time.Time `json:"attended_at" db:"attended_at"`
}

// NewAttendanceRecord snapshots an event and a card into a history row.
func NewAttendanceRecord(event Event, card Card) AttendanceRecord {
	return AttendanceRecord{
		EventID:           event.ID,
		EventTitle:        event.Title,
		EventDate:         event.Date,
		EventLocation:     event.Location,
		ConfirmationCode:  event.ConfirmationCode,
		UserEmail:         card.UserEmail,
		UserName:          card.Nombre,
		Referente:         card.Referente,
		Telefono:          card.Telefono,
		CorreoElectronico: card.CorreoElectronico,
		Municipio:         card.Municipio,
		Seccion:           card.Seccion,
		Edad:              card.Edad,
		Sexo:              card.Sexo,
	}
}

// AttendanceStats summarises a user's attendance history.
type AttendanceStats struct {
	TotalEvents      int        `json:"total_events"`
	UniqueEvents     int        `json:"unique_events"`
	EventsLast30Days int        `json:"events_last_30_days"`
	EventsLast7Days  int        `json:"events_last_7_days"`
	FirstEvent       *time.Time `json:"first_event"`
	LastEvent        *time.Time `json:"last_event"`
}

// AttendanceMessage is published after a successful check-in.
type AttendanceMessage struct {
	EventID   int       `json:"event_id"`
	UserEmail string    `json:"user_email"`
	At        time.Time `json:"at"`
}
