package service

import (
	"context"
	"log/slog"

	"gatehouse/internal/contact/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// Store persists contact submissions.
type Store interface {
	Create(ctx context.Context, contact *models.Contact) error
	List(ctx context.Context, q models.Query) ([]*models.Contact, int, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Submit stores an already sanitized and validated request as a PENDING
// contact. sender is nil for anonymous submissions.
func (s *Service) Submit(ctx context.Context, req *models.SubmitRequest, sender *id.UserID) (*models.Contact, error) {
	contact := &models.Contact{
		ID:        id.NewContactID(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Subject:   req.Subject,
		Message:   req.Message,
		UserID:    sender,
		Status:    models.StatusPending,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, contact); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save contact")
	}
	s.logger.InfoContext(ctx, "contact_submitted",
		"contact_id", contact.ID.String(),
		"authenticated", sender != nil,
		"request_id", requestcontext.RequestID(ctx),
	)
	return contact, nil
}

func (s *Service) List(ctx context.Context, q models.Query) ([]*models.Contact, int, error) {
	contacts, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts")
	}
	return contacts, total, nil
}
