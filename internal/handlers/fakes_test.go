package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
)

type memoryUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[int]types.User{}}
}

func (m *memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) List(_ context.Context, role types.Role) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.User, 0, len(m.byID))
	for _, u := range m.byID {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	return user, nil
}

func (m *memoryUsers) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.byID[user.ID] = user
	return user, nil
}

func (m *memoryUsers) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memoryCards struct {
	mu    sync.Mutex
	cards map[string]types.Card
}

func newMemoryCards() *memoryCards {
	return &memoryCards{cards: map[string]types.Card{}}
}

func (m *memoryCards) GetByEmail(_ context.Context, email string) (types.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[email]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memoryCards) List(_ context.Context) ([]types.CardSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.CardSummary, 0, len(m.cards))
	for email, c := range m.cards {
		out = append(out, types.CardSummary{Email: email, Name: c.Nombre, Card: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memoryCards) Upsert(_ context.Context, card types.Card) (types.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.cards[card.UserEmail]; ok {
		card.ID = existing.ID
	} else {
		card.ID = len(m.cards) + 1
	}
	m.cards[card.UserEmail] = card
	return card, nil
}

func (m *memoryCards) Update(_ context.Context, card types.Card) (types.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.cards[card.UserEmail]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}
	card.ID = existing.ID
	m.cards[card.UserEmail] = card
	return card, nil
}

type attendeeKey struct {
	eventID int
	email   string
}

// memoryEvents backs both the event and attendance repositories so
// attendee counts stay consistent with check-ins.
type memoryEvents struct {
	mu        sync.Mutex
	nextID    int
	events    map[int]types.Event
	attendees map[attendeeKey]types.Attendee
	history   []types.AttendanceRecord
}

func newMemoryEvents() *memoryEvents {
	return &memoryEvents{
		events:    map[int]types.Event{},
		attendees: map[attendeeKey]types.Attendee{},
	}
}

func (m *memoryEvents) List(_ context.Context, includeSuspended bool) ([]types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Event, 0, len(m.events))
	for _, e := range m.events {
		if e.Suspended && !includeSuspended {
			continue
		}
		out = append(out, m.withAttendees(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryEvents) Get(_ context.Context, id int) (types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	return m.withAttendees(e), nil
}

func (m *memoryEvents) GetByCode(_ context.Context, code string) (types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ConfirmationCode == code {
			return m.withAttendees(e), nil
		}
	}
	return types.Event{}, store.ErrNotFound
}

func (m *memoryEvents) withAttendees(e types.Event) types.Event {
	e.Attendees = []string{}
	for key := range m.attendees {
		if key.eventID == e.ID {
			e.Attendees = append(e.Attendees, key.email)
		}
	}
	sort.Strings(e.Attendees)
	return e
}

func (m *memoryEvents) Create(_ context.Context, event types.Event) (types.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ConfirmationCode == event.ConfirmationCode {
			return types.Event{}, store.ErrConflict
		}
	}
	m.nextID++
	event.ID = m.nextID
	event.CreatedAt = time.Now()
	m.events[event.ID] = event
	return event, nil
}

func (m *memoryEvents) SetSuspended(_ context.Context, id int, suspended bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Suspended = suspended
	m.events[id] = e
	return nil
}

func (m *memoryEvents) CountAttendees(_ context.Context, id int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.attendees {
		if key.eventID == id {
			count++
		}
	}
	return count, nil
}

func (m *memoryEvents) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memoryEvents) AttendeeExists(_ context.Context, eventID int, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.attendees[attendeeKey{eventID, email}]
	return ok, nil
}

func (m *memoryEvents) InsertAttendee(_ context.Context, eventID int, email string) (types.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attendeeKey{eventID, email}
	if _, ok := m.attendees[key]; ok {
		return types.Attendee{}, store.ErrConflict
	}
	a := types.Attendee{ID: len(m.attendees) + 1, EventID: eventID, UserEmail: email, RegisteredAt: time.Now()}
	m.attendees[key] = a
	return a, nil
}

func (m *memoryEvents) InsertHistory(_ context.Context, record types.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.history {
		if existing.EventID == record.EventID && existing.UserEmail == record.UserEmail {
			return false, nil
		}
	}
	record.ID = len(m.history) + 1
	m.history = append(m.history, record)
	return true, nil
}

func (m *memoryEvents) HistoryByUser(_ context.Context, email string) ([]types.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AttendanceRecord, 0)
	for _, rec := range m.history {
		if rec.UserEmail == email {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryEvents) HistoryByEvent(_ context.Context, eventID int) ([]types.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.AttendanceRecord, 0)
	for _, rec := range m.history {
		if rec.EventID == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memoryComplaints struct {
	mu         sync.Mutex
	complaints map[int]types.Complaint
}

func newMemoryComplaints() *memoryComplaints {
	return &memoryComplaints{complaints: map[int]types.Complaint{}}
}

func (m *memoryComplaints) Create(_ context.Context, c types.Complaint) (types.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = len(m.complaints) + 1
	m.complaints[c.ID] = c
	return c, nil
}

func (m *memoryComplaints) Get(_ context.Context, id int) (types.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[id]
	if !ok {
		return types.Complaint{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memoryComplaints) ListByUser(_ context.Context, email string) ([]types.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Complaint, 0)
	for _, c := range m.complaints {
		if c.UserEmail == email {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryComplaints) List(_ context.Context, status types.ComplaintStatus) ([]types.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Complaint, 0)
	for _, c := range m.complaints {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryComplaints) UpdateStatus(_ context.Context, id int, update types.ComplaintStatusUpdate, resolvedAt *time.Time) (types.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[id]
	if !ok {
		return types.Complaint{}, store.ErrNotFound
	}
	c.Status = update.Status
	c.AdminResponse = update.AdminResponse
	c.AdminEmail = update.AdminEmail
	c.ResolvedAt = resolvedAt
	m.complaints[id] = c
	return c, nil
}

// countingLimiter allows the first limit calls per scope.
type countingLimiter struct {
	mu    sync.Mutex
	limit int64
	seen  map[string]int64
}

func newCountingLimiter(limit int64) *countingLimiter {
	return &countingLimiter{limit: limit, seen: map[string]int64{}}
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, _ int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[scope]++
	return c.seen[scope] <= c.limit, c.seen[scope], nil
}
