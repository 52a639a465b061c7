package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/types"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeCreateAttempts = 5
	defaultQRSize      = 256
	maxQRSize          = 1024
)

// EventRepository defines persistence operations for events.
type EventRepository interface {
	List(ctx context.Context, includeSuspended bool) ([]types.Event, error)
	Get(ctx context.Context, id int) (types.Event, error)
	GetByCode(ctx context.Context, code string) (types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	SetSuspended(ctx context.Context, id int, suspended bool) error
	CountAttendees(ctx context.Context, id int) (int, error)
	Delete(ctx context.Context, id int) error
}

// ImageStore uploads images and returns their key and public URL.
type ImageStore interface {
	Upload(ctx context.Context, prefix, filename string, r io.Reader, size int64, contentType string) (string, string, error)
}

// AttachmentStore uploads images and removes them on rollback.
type AttachmentStore interface {
	ImageStore
	DeleteAll(ctx context.Context, keys ...string) error
}

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// NewEvent is the input for creating an event.
type NewEvent struct {
	Title       string
	Date        string
	Location    string
	Description string
	CreatedBy   int
	Image       *Upload
}

// EventService encapsulates event use-cases.
type EventService struct {
	repo    EventRepository
	images  AttachmentStore
	log     *logger.Logger
	newCode func() (string, error)
	now     func() time.Time
}

// NewEventService constructs an EventService. images may be nil when
// object storage is disabled.
func NewEventService(repo EventRepository, images AttachmentStore, log *logger.Logger) *EventService {
	if log == nil {
		log = logger.Nop()
	}
	return &EventService{
		repo:    repo,
		images:  images,
		log:     log,
		newCode: GenerateConfirmationCode,
		now:     time.Now,
	}
}

// GenerateConfirmationCode returns a random upper-case base36 code.
func GenerateConfirmationCode() (string, error) {
	buf := make([]byte, types.ConfirmationCodeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// QRPayload builds the content encoded in an event's QR image.
func QRPayload(stamp time.Time, code string) string {
	return fmt.Sprintf("EVENT-%d-%s", stamp.UnixMilli(), code)
}

// Create stores a new event. An image that fails to upload is logged and
// the event is created without it; an uploaded image is removed again when
// the event cannot be stored.
func (s *EventService) Create(ctx context.Context, input NewEvent) (types.Event, error) {
	event := types.Event{
		Title:       strings.TrimSpace(input.Title),
		Date:        strings.TrimSpace(input.Date),
		Location:    types.ParseLocation(input.Location).String(),
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   input.CreatedBy,
	}
	if event.Title == "" {
		return types.Event{}, errors.New("event title is required")
	}

	var imageKey string
	if input.Image != nil && input.Image.Body != nil {
		imageKey, event.ImageURL = s.uploadImage(ctx, input.CreatedBy, input.Image)
	}

	created, err := s.insertWithCode(ctx, event)
	if err != nil {
		if imageKey != "" {
			if cleanupErr := s.images.DeleteAll(ctx, imageKey); cleanupErr != nil {
				s.log.Warn(ctx, "orphaned event image not removed", cleanupErr)
			}
		}
		return types.Event{}, err
	}
	return created, nil
}

func (s *EventService) insertWithCode(ctx context.Context, event types.Event) (types.Event, error) {
	var lastErr error
	for attempt := 0; attempt < codeCreateAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return types.Event{}, fmt.Errorf("generate confirmation code: %w", err)
		}
		event.ConfirmationCode = code
		event.QRCode = QRPayload(s.now(), code)

		created, err := s.repo.Create(ctx, event)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return types.Event{}, err
		}
		lastErr = err
	}
	return types.Event{}, fmt.Errorf("allocate confirmation code: %w", lastErr)
}

func (s *EventService) uploadImage(ctx context.Context, userID int, image *Upload) (string, string) {
	if s.images == nil {
		s.log.Warn(ctx, "event image dropped: object storage disabled", nil)
		return "", ""
	}
	key, url, err := s.images.Upload(ctx, strconv.Itoa(userID), image.Filename, image.Body, image.Size, image.ContentType)
	if err != nil {
		s.log.Error(ctx, "event image upload failed", err)
		return "", ""
	}
	return key, url
}

// List returns events visible to viewer; only admins see suspended events.
func (s *EventService) List(ctx context.Context, viewer types.User) ([]types.Event, error) {
	return s.repo.List(ctx, viewer.Role.IsAdmin())
}

// Get returns an event visible to viewer.
func (s *EventService) Get(ctx context.Context, viewer types.User, id int) (types.Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Event{}, err
	}
	if event.Suspended && !viewer.Role.IsAdmin() {
		return types.Event{}, store.ErrNotFound
	}
	return event, nil
}

// Delete removes an event that has no attendees.
func (s *EventService) Delete(ctx context.Context, id int) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountAttendees(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return &AttendeesError{Count: count}
	}
	return s.repo.Delete(ctx, id)
}

// Suspend hides an event from non-admins and closes it to check-in.
func (s *EventService) Suspend(ctx context.Context, id int, suspended bool) error {
	return s.repo.SetSuspended(ctx, id, suspended)
}

// QRCode renders the event's QR payload as a PNG.
func (s *EventService) QRCode(ctx context.Context, id, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(event.QRCode, qrcode.Medium, size)
}
