package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{byID: map[int]types.User{}}
	for _, u := range users {
		f.nextID++
		if u.ID == 0 {
			u.ID = f.nextID
		}
		f.byID[u.ID] = u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) List(_ context.Context, role types.Role) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]types.User, 0, len(f.byID))
	for _, u := range f.byID {
		if role == "" || u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUsers) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeCards struct {
	mu     sync.Mutex
	cards  map[string]types.Card
	getErr error
}

func newFakeCards(cards ...types.Card) *fakeCards {
	f := &fakeCards{cards: map[string]types.Card{}}
	for i, c := range cards {
		c.ID = i + 1
		f.cards[c.UserEmail] = c
	}
	return f
}

func (f *fakeCards) GetByEmail(_ context.Context, email string) (types.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return types.Card{}, f.getErr
	}
	c, ok := f.cards[email]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCards) List(_ context.Context) ([]types.CardSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.CardSummary, 0, len(f.cards))
	for email, c := range f.cards {
		out = append(out, types.CardSummary{Email: email, Name: c.Nombre, Card: c})
	}
	return out, nil
}

func (f *fakeCards) Upsert(_ context.Context, card types.Card) (types.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.cards[card.UserEmail]; ok {
		card.ID = existing.ID
	} else {
		card.ID = len(f.cards) + 1
	}
	f.cards[card.UserEmail] = card
	return card, nil
}

func (f *fakeCards) Update(_ context.Context, card types.Card) (types.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.cards[card.UserEmail]
	if !ok {
		return types.Card{}, store.ErrNotFound
	}
	card.ID = existing.ID
	f.cards[card.UserEmail] = card
	return card, nil
}

type fakeEvents struct {
	mu        sync.Mutex
	nextID    int
	events    map[int]types.Event
	attendees map[int]int
	createErr []error
}

func newFakeEvents(events ...types.Event) *fakeEvents {
	f := &fakeEvents{events: map[int]types.Event{}, attendees: map[int]int{}}
	for _, e := range events {
		f.nextID++
		if e.ID == 0 {
			e.ID = f.nextID
		}
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeEvents) List(_ context.Context, includeSuspended bool) ([]types.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Event, 0, len(f.events))
	for _, e := range f.events {
		if e.Suspended && !includeSuspended {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEvents) Get(_ context.Context, id int) (types.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	return e, nil
}

func (f *fakeEvents) GetByCode(_ context.Context, code string) (types.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ConfirmationCode == code {
			return e, nil
		}
	}
	return types.Event{}, store.ErrNotFound
}

func (f *fakeEvents) Create(_ context.Context, event types.Event) (types.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			return types.Event{}, err
		}
	}
	for _, e := range f.events {
		if e.ConfirmationCode == event.ConfirmationCode {
			return types.Event{}, store.ErrConflict
		}
	}
	f.nextID++
	event.ID = f.nextID
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeEvents) SetSuspended(_ context.Context, id int, suspended bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Suspended = suspended
	f.events[id] = e
	return nil
}

func (f *fakeEvents) CountAttendees(_ context.Context, id int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attendees[id], nil
}

func (f *fakeEvents) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

type attendeeKey struct {
	eventID int
	email   string
}

type fakeAttendance struct {
	mu         sync.Mutex
	attendees  map[attendeeKey]types.Attendee
	history    map[attendeeKey]types.AttendanceRecord
	historyErr error

	// raceOnInsert makes the unique constraint fire as if a concurrent
	// request inserted between AttendeeExists and InsertAttendee.
	raceOnInsert bool
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{
		attendees: map[attendeeKey]types.Attendee{},
		history:   map[attendeeKey]types.AttendanceRecord{},
	}
}

func (f *fakeAttendance) AttendeeExists(_ context.Context, eventID int, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.attendees[attendeeKey{eventID, email}]
	return ok, nil
}

func (f *fakeAttendance) InsertAttendee(_ context.Context, eventID int, email string) (types.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attendeeKey{eventID, email}
	if _, ok := f.attendees[key]; ok || f.raceOnInsert {
		return types.Attendee{}, store.ErrConflict
	}
	a := types.Attendee{ID: len(f.attendees) + 1, EventID: eventID, UserEmail: email, RegisteredAt: time.Now()}
	f.attendees[key] = a
	return a, nil
}

func (f *fakeAttendance) InsertHistory(_ context.Context, record types.AttendanceRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return false, f.historyErr
	}
	key := attendeeKey{record.EventID, record.UserEmail}
	if _, ok := f.history[key]; ok {
		return false, nil
	}
	record.ID = len(f.history) + 1
	f.history[key] = record
	return true, nil
}

func (f *fakeAttendance) HistoryByUser(_ context.Context, email string) ([]types.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.AttendanceRecord, 0)
	for key, rec := range f.history {
		if key.email == email {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttendedAt.After(out[j].AttendedAt) })
	return out, nil
}

func (f *fakeAttendance) HistoryByEvent(_ context.Context, eventID int) ([]types.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.AttendanceRecord, 0)
	for key, rec := range f.history {
		if key.eventID == eventID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []types.AttendanceMessage
	err      error
}

func (f *fakeNotifier) PublishAttendance(_ context.Context, msg types.AttendanceMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

type fakeImages struct {
	mu      sync.Mutex
	uploads map[string][]byte
	failOn  map[string]bool
	deleted []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{uploads: map[string][]byte{}, failOn: map[string]bool{}}
}

func (f *fakeImages) Upload(_ context.Context, prefix, filename string, r io.Reader, _ int64, _ string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[filename] {
		return "", "", errors.New("upload refused")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", err
	}
	key := fmt.Sprintf("%s/%d-%s", prefix, len(f.uploads)+1, filename)
	f.uploads[key] = data
	return key, "https://cdn.test/" + key, nil
}

func (f *fakeImages) DeleteAll(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.uploads, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

type fakeComplaints struct {
	mu         sync.Mutex
	complaints map[int]types.Complaint
	createErr  error
}

func newFakeComplaints() *fakeComplaints {
	return &fakeComplaints{complaints: map[int]types.Complaint{}}
}

func (f *fakeComplaints) Create(_ context.Context, c types.Complaint) (types.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.Complaint{}, f.createErr
	}
	c.ID = len(f.complaints) + 1
	f.complaints[c.ID] = c
	return c, nil
}

func (f *fakeComplaints) Get(_ context.Context, id int) (types.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.complaints[id]
	if !ok {
		return types.Complaint{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeComplaints) ListByUser(_ context.Context, email string) ([]types.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Complaint, 0)
	for _, c := range f.complaints {
		if c.UserEmail == email {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComplaints) List(_ context.Context, status types.ComplaintStatus) ([]types.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Complaint, 0)
	for _, c := range f.complaints {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComplaints) UpdateStatus(_ context.Context, id int, update types.ComplaintStatusUpdate, resolvedAt *time.Time) (types.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.complaints[id]
	if !ok {
		return types.Complaint{}, store.ErrNotFound
	}
	c.Status = update.Status
	if update.AdminResponse != "" {
		c.AdminResponse = update.AdminResponse
	}
	c.AdminEmail = update.AdminEmail
	if resolvedAt != nil {
		c.ResolvedAt = resolvedAt
	}
	f.complaints[id] = c
	return c, nil
}
