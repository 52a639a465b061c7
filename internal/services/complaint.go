package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/types"
)

// MaxComplaintImages caps the attachments of a single complaint.
const MaxComplaintImages = 5

// ComplaintRepository defines persistence operations for complaints.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint types.Complaint) (types.Complaint, error)
	Get(ctx context.Context, id int) (types.Complaint, error)
	ListByUser(ctx context.Context, email string) ([]types.Complaint, error)
	List(ctx context.Context, status types.ComplaintStatus) ([]types.Complaint, error)
	UpdateStatus(ctx context.Context, id int, update types.ComplaintStatusUpdate, resolvedAt *time.Time) (types.Complaint, error)
}

// NewComplaint is the input for submitting a complaint or suggestion.
type NewComplaint struct {
	Type    types.ComplaintType
	Subject string
	Message string
	Images  []Upload
}

// ComplaintService encapsulates complaint and suggestion use-cases.
type ComplaintService struct {
	repo   ComplaintRepository
	images AttachmentStore
	log    *logger.Logger
	now    func() time.Time
}

// NewComplaintService constructs a ComplaintService. images may be nil
// when object storage is disabled.
func NewComplaintService(repo ComplaintRepository, images AttachmentStore, log *logger.Logger) *ComplaintService {
	if log == nil {
		log = logger.Nop()
	}
	return &ComplaintService{repo: repo, images: images, log: log, now: time.Now}
}

// Submit stores a complaint from author. Images that fail to upload are skipped.
func (s *ComplaintService) Submit(ctx context.Context, author types.User, input NewComplaint) (types.Complaint, error) {
	subject := strings.TrimSpace(input.Subject)
	message := strings.TrimSpace(input.Message)
	if !input.Type.Valid() || subject == "" || message == "" {
		return types.Complaint{}, ErrInvalidComplaint
	}
	if len(input.Images) > MaxComplaintImages {
		return types.Complaint{}, fmt.Errorf("%w: at most %d images", ErrInvalidComplaint, MaxComplaintImages)
	}

	keys, urls := s.uploadImages(ctx, author.Email, input.Images)

	complaint, err := s.repo.Create(ctx, types.Complaint{
		UserEmail: author.Email,
		UserName:  author.Name,
		Type:      input.Type,
		Subject:   subject,
		Message:   message,
		Status:    types.ComplaintPendiente,
		Images:    urls,
	})
	if err != nil {
		if len(keys) > 0 {
			if cleanupErr := s.images.DeleteAll(ctx, keys...); cleanupErr != nil {
				s.log.Warn(ctx, "orphaned complaint images not removed", cleanupErr)
			}
		}
		return types.Complaint{}, err
	}
	return complaint, nil
}

func (s *ComplaintService) uploadImages(ctx context.Context, email string, uploads []Upload) ([]string, []string) {
	keys := make([]string, 0, len(uploads))
	urls := make([]string, 0, len(uploads))
	if len(uploads) == 0 {
		return keys, urls
	}
	if s.images == nil {
		s.log.Warn(ctx, "complaint images dropped: object storage disabled", nil)
		return keys, urls
	}
	prefix := strings.ReplaceAll(email, "@", "_at_")
	for _, upload := range uploads {
		if upload.Body == nil {
			continue
		}
		key, url, err := s.images.Upload(ctx, prefix, upload.Filename, upload.Body, upload.Size, upload.ContentType)
		if err != nil {
			s.log.Error(ctx, "complaint image upload failed", err)
			continue
		}
		keys = append(keys, key)
		urls = append(urls, url)
	}
	return keys, urls
}

// Mine lists the complaints submitted by email.
func (s *ComplaintService) Mine(ctx context.Context, email string) ([]types.Complaint, error) {
	return s.repo.ListByUser(ctx, types.NormalizeEmail(email))
}

// List returns all complaints, optionally filtered by status.
func (s *ComplaintService) List(ctx context.Context, status types.ComplaintStatus) ([]types.Complaint, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, status)
}

// UpdateStatus records an admin review. resolved_at is stamped when the
// complaint moves to resuelto.
func (s *ComplaintService) UpdateStatus(ctx context.Context, admin types.User, id int, status types.ComplaintStatus, response string) (types.Complaint, error) {
	if !admin.Role.IsAdmin() {
		return types.Complaint{}, ErrForbidden
	}
	if !status.Valid() {
		return types.Complaint{}, ErrInvalidStatus
	}
	var resolvedAt *time.Time
	if status == types.ComplaintResuelto {
		now := s.now()
		resolvedAt = &now
	}
	return s.repo.UpdateStatus(ctx, id, types.ComplaintStatusUpdate{
		Status:        status,
		AdminResponse: strings.TrimSpace(response),
		AdminEmail:    admin.Email,
	}, resolvedAt)
}
