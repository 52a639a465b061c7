package types

import "time"

type ComplaintType string

const (
	ComplaintTypeQueja      ComplaintType = "queja"
	ComplaintTypeSugerencia ComplaintType = "sugerencia"
)

func (t ComplaintType) Valid() bool {
	return t == ComplaintTypeQueja || t == ComplaintTypeSugerencia
}

type ComplaintStatus string

const (
	ComplaintPendiente  ComplaintStatus = "pendiente"
	ComplaintEnRevision ComplaintStatus = "en_revision"
	ComplaintResuelto   ComplaintStatus = "resuelto"
	ComplaintCerrado    ComplaintStatus = "cerrado"
)

func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintPendiente, ComplaintEnRevision, ComplaintResuelto, ComplaintCerrado:
		return true
	}
	return false
}

// Complaint is a complaint (queja) or suggestion (sugerencia) sent by a user.
type Complaint struct {
	ID            int             `json:"id" db:"id"`
	UserEmail     string          `json:"user_email" db:"user_email"`
	UserName      string          `json:"user_name" db:"user_name"`
	Type          ComplaintType   `json:"type" db:"type"`
	Subject       string          `json:"subject" db:"subject"`
	Message       string          `json:"message" db:"message"`
	Status        ComplaintStatus `json:"status" db:"status"`
	AdminResponse string          `json:"admin_response,omitempty" db:"admin_response"`
	AdminEmail    string          `json:"admin_email,omitempty" db:"admin_email"`
	Images        []string        `json:"images" db:"images"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// ComplaintStatusUpdate is an admin's review of a complaint.
type ComplaintStatusUpdate struct {
	Status        ComplaintStatus
	AdminResponse string
	AdminEmail    string
}
