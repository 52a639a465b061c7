package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/metrics"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
)

// AttendanceRepository defines persistence operations for check-ins.
type AttendanceRepository interface {
	AttendeeExists(ctx context.Context, eventID int, email string) (bool, error)
	InsertAttendee(ctx context.Context, eventID int, email string) (types.Attendee, error)
	InsertHistory(ctx context.Context, record types.AttendanceRecord) (bool, error)
	HistoryByUser(ctx context.Context, email string) ([]types.AttendanceRecord, error)
	HistoryByEvent(ctx context.Context, eventID int) ([]types.AttendanceRecord, error)
}

// EventLookup is the read side of the event repository.
type EventLookup interface {
	Get(ctx context.Context, id int) (types.Event, error)
	GetByCode(ctx context.Context, code string) (types.Event, error)
}

// CardLookup is the read side of the card repository.
type CardLookup interface {
	GetByEmail(ctx context.Context, email string) (types.Card, error)
}

// AttendanceNotifier announces successful check-ins.
type AttendanceNotifier interface {
	PublishAttendance(ctx context.Context, msg types.AttendanceMessage) error
}

// AttendanceService implements check-in and attendance reporting.
type AttendanceService struct {
	repo     AttendanceRepository
	events   EventLookup
	cards    CardLookup
	notifier AttendanceNotifier
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewAttendanceService constructs an AttendanceService. notifier and m may be nil.
func NewAttendanceService(
	repo AttendanceRepository,
	events EventLookup,
	cards CardLookup,
	notifier AttendanceNotifier,
	m *metrics.Metrics,
	log *logger.Logger,
) *AttendanceService {
	if log == nil {
		log = logger.Nop()
	}
	return &AttendanceService{
		repo:     repo,
		events:   events,
		cards:    cards,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// NormalizeCode accepts a typed code or a scanned QR payload
// (EVENT-{stamp}-{CODE}) and returns the upper-case code.
func NormalizeCode(input string) (string, error) {
	code := strings.TrimSpace(input)
	if idx := strings.LastIndex(code, "-"); idx >= 0 {
		code = code[idx+1:]
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != types.ConfirmationCodeLength {
		return "", ErrInvalidCode
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", ErrInvalidCode
		}
	}
	return code, nil
}

// RegisterByCode checks email in to the event identified by code.
// It returns false when no open event matches or the user already
// attended it.
func (s *AttendanceService) RegisterByCode(ctx context.Context, code, email string) (bool, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		s.metrics.ObserveCheckIn(metrics.CheckInNotFound)
		return false, err
	}

	card, err := s.requireCard(ctx, email)
	if err != nil {
		return false, err
	}

	event, err := s.events.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.ObserveCheckIn(metrics.CheckInNotFound)
			return false, nil
		}
		s.metrics.ObserveCheckIn(metrics.CheckInError)
		return false, err
	}
	if event.Suspended {
		s.metrics.ObserveCheckIn(metrics.CheckInNotFound)
		return false, nil
	}

	return s.checkIn(ctx, event, card)
}

// Register checks email in to eventID. A missing event is store.ErrNotFound.
func (s *AttendanceService) Register(ctx context.Context, eventID int, email string) (bool, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return false, err
	}
	if event.Suspended {
		s.metrics.ObserveCheckIn(metrics.CheckInNotFound)
		return false, nil
	}

	card, err := s.requireCard(ctx, email)
	if err != nil {
		return false, err
	}

	return s.checkIn(ctx, event, card)
}

func (s *AttendanceService) requireCard(ctx context.Context, email string) (types.Card, error) {
	card, err := s.cards.GetByEmail(ctx, types.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.ObserveCheckIn(metrics.CheckInNoCard)
			return types.Card{}, ErrCardRequired
		}
		s.metrics.ObserveCheckIn(metrics.CheckInError)
		return types.Card{}, err
	}
	return card, nil
}

func (s *AttendanceService) checkIn(ctx context.Context, event types.Event, card types.Card) (bool, error) {
	email := card.UserEmail
	ctx = s.log.WithField(ctx, "event_id", event.ID)

	exists, err := s.repo.AttendeeExists(ctx, event.ID, email)
	if err != nil {
		s.metrics.ObserveCheckIn(metrics.CheckInError)
		return false, err
	}
	if exists {
		s.metrics.ObserveCheckIn(metrics.CheckInDuplicate)
		return false, nil
	}

	attendee, err := s.repo.InsertAttendee(ctx, event.ID, email)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.metrics.ObserveCheckIn(metrics.CheckInDuplicate)
			return false, nil
		}
		s.metrics.ObserveCheckIn(metrics.CheckInError)
		return false, fmt.Errorf("insert attendee: %w", err)
	}

	record := types.NewAttendanceRecord(event, card)
	record.AttendedAt = attendee.RegisteredAt
	if _, err := s.repo.InsertHistory(ctx, record); err != nil {
		s.log.Error(ctx, "attendance history insert failed", err)
	}

	if s.notifier != nil {
		msg := types.AttendanceMessage{EventID: event.ID, UserEmail: email, At: attendee.RegisteredAt}
		if err := s.notifier.PublishAttendance(ctx, msg); err != nil {
			s.log.Warn(ctx, "attendance notification not published", err)
		}
	}

	s.metrics.ObserveCheckIn(metrics.CheckInRegistered)
	return true, nil
}

// History returns the attendance history of email, most recent first.
func (s *AttendanceService) History(ctx context.Context, email string) ([]types.AttendanceRecord, error) {
	return s.repo.HistoryByUser(ctx, types.NormalizeEmail(email))
}

// Stats summarises the attendance history of email relative to now.
func (s *AttendanceService) Stats(ctx context.Context, email string, now time.Time) (types.AttendanceStats, error) {
	records, err := s.repo.HistoryByUser(ctx, types.NormalizeEmail(email))
	if err != nil {
		return types.AttendanceStats{}, err
	}
	return ComputeStats(records, now), nil
}

// ComputeStats aggregates history rows.
func ComputeStats(records []types.AttendanceRecord, now time.Time) types.AttendanceStats {
	stats := types.AttendanceStats{TotalEvents: len(records)}
	unique := make(map[int]struct{}, len(records))
	last30 := now.AddDate(0, 0, -30)
	last7 := now.AddDate(0, 0, -7)

	for _, record := range records {
		unique[record.EventID] = struct{}{}
		at := record.AttendedAt
		if !at.Before(last30) {
			stats.EventsLast30Days++
		}
		if !at.Before(last7) {
			stats.EventsLast7Days++
		}
		if stats.FirstEvent == nil || at.Before(*stats.FirstEvent) {
			first := at
			stats.FirstEvent = &first
		}
		if stats.LastEvent == nil || at.After(*stats.LastEvent) {
			last := at
			stats.LastEvent = &last
		}
	}
	stats.UniqueEvents = len(unique)
	return stats
}

// EventAttendees returns the detailed attendee list of an event.
func (s *AttendanceService) EventAttendees(ctx context.Context, eventID int) ([]types.AttendanceRecord, error) {
	if _, err := s.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.HistoryByEvent(ctx, eventID)
}

// EnsureHistory backfills the history row of a published check-in when the
// request-path insert did not land. Messages for deleted events, users
// without a card or check-ins without an attendee row are dropped.
func (s *AttendanceService) EnsureHistory(ctx context.Context, msg types.AttendanceMessage) error {
	ctx = s.log.WithField(ctx, "event_id", msg.EventID)

	event, err := s.events.Get(ctx, msg.EventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	card, err := s.cards.GetByEmail(ctx, types.NormalizeEmail(msg.UserEmail))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	exists, err := s.repo.AttendeeExists(ctx, event.ID, card.UserEmail)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	record := types.NewAttendanceRecord(event, card)
	record.AttendedAt = msg.At
	inserted, err := s.repo.InsertHistory(ctx, record)
	if err != nil {
		return fmt.Errorf("backfill history: %w", err)
	}
	if inserted {
		s.metrics.IncHistoryRepair()
		s.log.Info(ctx, "attendance history backfilled")
	}
	return nil
}
