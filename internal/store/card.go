package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/control-eventos/apiserver/types"
)

// CardRepository handles persistence for identity cards.
type CardRepository struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id, user_email, referente, nombre, apellido_paterno, apellido_materno,
	telefono, correo_electronico, calle_numero, colonia, municipio, estado,
	edad, sexo, seccion, necesidad, buzon, seguimiento_buzon, created_at, updated_at`

func scanCard(row interface{ Scan(...any) error }) (types.Card, error) {
	var card types.Card
	err := row.Scan(
		&card.ID,
		&card.UserEmail,
		&card.Referente,
		&card.Nombre,
		&card.ApellidoPaterno,
		&card.ApellidoMaterno,
		&card.Telefono,
		&card.CorreoElectronico,
		&card.CalleNumero,
		&card.Colonia,
		&card.Municipio,
		&card.Estado,
		&card.Edad,
		&card.Sexo,
		&card.Seccion,
		&card.Necesidad,
		&card.Buzon,
		&card.SeguimientoBuzon,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	return card, err
}

func (r *CardRepository) GetByEmail(ctx context.Context, email string) (types.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE user_email = $1`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Card{}, ErrNotFound
		}
		return types.Card{}, err
	}
	return card, nil
}

// List returns every card together with the owning user's name when the
// owner has an account; otherwise the card's own name is used.
func (r *CardRepository) List(ctx context.Context) ([]types.CardSummary, error) {
	const query = `
		SELECT c.id, c.user_email, c.referente, c.nombre, c.apellido_paterno, c.apellido_materno,
			c.telefono, c.correo_electronico, c.calle_numero, c.colonia, c.municipio, c.estado,
			c.edad, c.sexo, c.seccion, c.necesidad, c.buzon, c.seguimiento_buzon, c.created_at, c.updated_at,
			COALESCE(NULLIF(u.name, ''), c.nombre)
		FROM cards c
		LEFT JOIN users u ON u.email = c.user_email
		ORDER BY c.created_at DESC, c.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]types.CardSummary, 0)
	for rows.Next() {
		var summary types.CardSummary
		card := &summary.Card
		if err := rows.Scan(
			&card.ID,
			&card.UserEmail,
			&card.Referente,
			&card.Nombre,
			&card.ApellidoPaterno,
			&card.ApellidoMaterno,
			&card.Telefono,
			&card.CorreoElectronico,
			&card.CalleNumero,
			&card.Colonia,
			&card.Municipio,
			&card.Estado,
			&card.Edad,
			&card.Sexo,
			&card.Seccion,
			&card.Necesidad,
			&card.Buzon,
			&card.SeguimientoBuzon,
			&card.CreatedAt,
			&card.UpdatedAt,
			&summary.Name,
		); err != nil {
			return nil, err
		}
		summary.Email = card.UserEmail
		cards = append(cards, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

// Upsert creates the card for card.UserEmail or replaces its fields.
func (r *CardRepository) Upsert(ctx context.Context, card types.Card) (types.Card, error) {
	now := time.Now()
	card.UpdatedAt = now

	const query = `
		INSERT INTO cards (
			user_email, referente, nombre, apellido_paterno, apellido_materno,
			telefono, correo_electronico, calle_numero, colonia, municipio, estado,
			edad, sexo, seccion, necesidad, buzon, seguimiento_buzon, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		ON CONFLICT (user_email) DO UPDATE SET
			referente = EXCLUDED.referente,
			nombre = EXCLUDED.nombre,
			apellido_paterno = EXCLUDED.apellido_paterno,
			apellido_materno = EXCLUDED.apellido_materno,
			telefono = EXCLUDED.telefono,
			correo_electronico = EXCLUDED.correo_electronico,
			calle_numero = EXCLUDED.calle_numero,
			colonia = EXCLUDED.colonia,
			municipio = EXCLUDED.municipio,
			estado = EXCLUDED.estado,
			edad = EXCLUDED.edad,
			sexo = EXCLUDED.sexo,
			seccion = EXCLUDED.seccion,
			necesidad = EXCLUDED.necesidad,
			buzon = EXCLUDED.buzon,
			seguimiento_buzon = EXCLUDED.seguimiento_buzon,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		card.UserEmail,
		card.Referente,
		card.Nombre,
		card.ApellidoPaterno,
		card.ApellidoMaterno,
		card.Telefono,
		card.CorreoElectronico,
		card.CalleNumero,
		card.Colonia,
		card.Municipio,
		card.Estado,
		card.Edad,
		card.Sexo,
		card.Seccion,
		card.Necesidad,
		card.Buzon,
		card.SeguimientoBuzon,
		now,
	).Scan(&card.ID, &card.CreatedAt); err != nil {
		return types.Card{}, err
	}
	return card, nil
}

// Update replaces the fields of an existing card. It does not create one.
func (r *CardRepository) Update(ctx context.Context, card types.Card) (types.Card, error) {
	card.UpdatedAt = time.Now()

	const query = `
		UPDATE cards
		SET referente = $1,
			nombre = $2,
			apellido_paterno = $3,
			apellido_materno = $4,
			telefono = $5,
			correo_electronico = $6,
			calle_numero = $7,
			colonia = $8,
			municipio = $9,
			estado = $10,
			edad = $11,
			sexo = $12,
			seccion = $13,
			necesidad = $14,
			buzon = $15,
			seguimiento_buzon = $16,
			updated_at = $17
		WHERE user_email = $18
		RETURNING id, created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		card.Referente,
		card.Nombre,
		card.ApellidoPaterno,
		card.ApellidoMaterno,
		card.Telefono,
		card.CorreoElectronico,
		card.CalleNumero,
		card.Colonia,
		card.Municipio,
		card.Estado,
		card.Edad,
		card.Sexo,
		card.Seccion,
		card.Necesidad,
		card.Buzon,
		card.SeguimientoBuzon,
		card.UpdatedAt,
		card.UserEmail,
	).Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Card{}, ErrNotFound
		}
		return types.Card{}, err
	}
	return card, nil
}
