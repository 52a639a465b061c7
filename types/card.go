package types

import "time"

// Card is the personal-identity record collected from a registrant.
// A user has at most one card, keyed by the owning user's email.
type Card struct {
	ID                int       `json:"id" db:"id"`
	UserEmail         string    `json:"user_email" db:"user_email"`
	Referente         string    `json:"referente" db:"referente"`
	Nombre            string    `json:"name" db:"nombre"`
	ApellidoPaterno   string    `json:"apellido_paterno" db:"apellido_paterno"`
	ApellidoMaterno   string    `json:"apellido_materno" db:"apellido_materno"`
	Telefono          string    `json:"telefono" db:"telefono"`
	CorreoElectronico string    `json:"correo_electronico" db:"correo_electronico"`
	CalleNumero       string    `json:"calle_numero" db:"calle_numero"`
	Colonia           string    `json:"colonia" db:"colonia"`
	Municipio         string    `json:"municipio" db:"municipio"`
	Estado            string    `json:"estado" db:"estado"`
	Edad              int       `json:"edad" db:"edad"`
	Sexo              string    `json:"sexo" db:"sexo"`
	Seccion           string    `json:"seccion" db:"seccion"`
	Necesidad         string    `json:"necesidad" db:"necesidad"`
	Buzon             string    `json:"buzon" db:"buzon"`
	SeguimientoBuzon  string    `json:"seguimiento_buzon" db:"seguimiento_buzon"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// CardSummary is the admin listing shape: owner email and name with the card.
type CardSummary struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Card  Card   `json:"card"`
}
