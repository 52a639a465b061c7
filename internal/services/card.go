package services

import (
	"context"
	"strings"

	"github.com/control-eventos/apiserver/types"
)

// CardRepository defines persistence operations for identity cards.
type CardRepository interface {
	GetByEmail(ctx context.Context, email string) (types.Card, error)
	List(ctx context.Context) ([]types.CardSummary, error)
	Upsert(ctx context.Context, card types.Card) (types.Card, error)
	Update(ctx context.Context, card types.Card) (types.Card, error)
}

// CardService encapsulates card registration and lookup.
type CardService struct {
	repo CardRepository
}

func NewCardService(repo CardRepository) *CardService {
	return &CardService{repo: repo}
}

// Mine returns the card owned by email.
func (s *CardService) Mine(ctx context.Context, email string) (types.Card, error) {
	return s.repo.GetByEmail(ctx, types.NormalizeEmail(email))
}

// Get returns the card for email if actor owns it or is an admin.
func (s *CardService) Get(ctx context.Context, actor types.User, email string) (types.Card, error) {
	email = types.NormalizeEmail(email)
	if email != actor.Email && !actor.Role.IsAdmin() {
		return types.Card{}, ErrForbidden
	}
	return s.repo.GetByEmail(ctx, email)
}

func (s *CardService) List(ctx context.Context) ([]types.CardSummary, error) {
	return s.repo.List(ctx)
}

// Register creates or replaces the card owned by email.
func (s *CardService) Register(ctx context.Context, email string, card types.Card) (types.Card, error) {
	card.UserEmail = types.NormalizeEmail(email)
	return s.repo.Upsert(ctx, normalizeCard(card))
}

// Update edits an existing card; store.ErrNotFound when none is registered.
func (s *CardService) Update(ctx context.Context, email string, card types.Card) (types.Card, error) {
	card.UserEmail = types.NormalizeEmail(email)
	return s.repo.Update(ctx, normalizeCard(card))
}

// UpsertFor lets an admin create or replace the card of any email.
func (s *CardService) UpsertFor(ctx context.Context, actor types.User, email string, card types.Card) (types.Card, error) {
	if !actor.Role.IsAdmin() {
		return types.Card{}, ErrForbidden
	}
	return s.Register(ctx, email, card)
}

func normalizeCard(card types.Card) types.Card {
	fields := []*string{
		&card.Referente, &card.Nombre, &card.ApellidoPaterno, &card.ApellidoMaterno,
		&card.Telefono, &card.CalleNumero, &card.Colonia, &card.Municipio,
		&card.Estado, &card.Sexo, &card.Seccion, &card.Necesidad, &card.Buzon,
		&card.SeguimientoBuzon,
	}
	for _, field := range fields {
		*field = strings.TrimSpace(*field)
	}
	card.CorreoElectronico = types.NormalizeEmail(card.CorreoElectronico)
	if card.Edad < 0 {
		card.Edad = 0
	}
	return card
}
