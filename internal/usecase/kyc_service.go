package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradedesk/internal/domain"
)

// KYCInput is a user's identity document submission
type KYCInput struct {
	FullName       string
	DocumentType   string
	DocumentNumber string
	DocumentURL    string
}

// KYCService records identity submissions and their review. There is no
// document verification: staff approve or reject by hand.
type KYCService struct {
	kycRepo  domain.KYCRepository
	userRepo domain.UserRepository
	notifier domain.NotificationService
	log      *zap.Logger
	now      func() time.Time
}

// NewKYCService creates a new KYCService. notifier may be nil.
func NewKYCService(kycRepo domain.KYCRepository, userRepo domain.UserRepository, notifier domain.NotificationService, log *zap.Logger) *KYCService {
	return &KYCService{
		kycRepo:  kycRepo,
		userRepo: userRepo,
		notifier: notifier,
		log:      log.Named("kyc"),
		now:      time.Now,
	}
}

func (in KYCInput) validate() error {
	if strings.TrimSpace(in.FullName) == "" {
		return domain.NewValidationError("full_name is required")
	}
	if !domain.ValidDocumentType(in.DocumentType) {
		return domain.NewValidationError("document_type must be passport, national_id or driver_license")
	}
	if strings.TrimSpace(in.DocumentNumber) == "" {
		return domain.NewValidationError("document_number is required")
	}
	u, err := url.Parse(in.DocumentURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.NewValidationError("document_url must be an http(s) URL")
	}
	return nil
}

// Submit stores a pending submission and marks the user's KYC as pending
func (ks *KYCService) Submit(ctx context.Context, user *domain.User, in KYCInput) (*domain.KYCSubmission, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	switch user.KYCStatus {
	case domain.KYCPending:
		return nil, domain.NewConflictError("a submission is already pending review")
	case domain.KYCApproved:
		return nil, domain.NewConflictError("identity already verified")
	}

	sub := &domain.KYCSubmission{
		ID:             uuid.New(),
		UserID:         user.ID,
		FullName:       strings.TrimSpace(in.FullName),
		DocumentType:   in.DocumentType,
		DocumentNumber: strings.TrimSpace(in.DocumentNumber),
		DocumentURL:    in.DocumentURL,
		Status:         domain.KYCPending,
		CreatedAt:      ks.now(),
	}

	if err := ks.kycRepo.Save(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewConflictError("a submission is already pending review")
		}
		return nil, domain.NewDependencyError("failed to save submission", err)
	}

	if err := ks.userRepo.UpdateKYCStatus(ctx, user.ID, domain.KYCPending); err != nil {
		ks.log.Error("Submission stored but user KYC status not updated",
			zap.String("submission_id", sub.ID.String()),
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}

	ks.log.Info("KYC submitted", zap.String("submission_id", sub.ID.String()), zap.String("user_id", user.ID.String()))

	if ks.notifier != nil {
		notifyAsync(ks.log, "kyc_submitted", func(ctx context.Context) error {
			return ks.notifier.SendKYCSubmitted(ctx, sub, user)
		})
	}

	return sub, nil
}

// ListOwn returns a user's submissions, newest first
func (ks *KYCService) ListOwn(ctx context.Context, userID uuid.UUID) ([]*domain.KYCSubmission, error) {
	subs, err := ks.kycRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list submissions", err)
	}
	return subs, nil
}

// ListByStatus returns submissions with status, oldest first
func (ks *KYCService) ListByStatus(ctx context.Context, status string, limit int) ([]*domain.KYCSubmission, error) {
	if status == "" {
		status = domain.KYCPending
	}
	switch status {
	case domain.KYCPending, domain.KYCApproved, domain.KYCRejected:
	default:
		return nil, domain.NewValidationError("status must be pending, approved or rejected")
	}

	subs, err := ks.kycRepo.GetByStatus(ctx, status, limit)
	if err != nil {
		return nil, domain.NewDependencyError("failed to list submissions", err)
	}
	return subs, nil
}

// Review approves or rejects a pending submission, once
func (ks *KYCService) Review(ctx context.Context, reviewerID, id uuid.UUID, approve bool, note string) (*domain.KYCSubmission, error) {
	sub, err := ks.kycRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("submission")
		}
		return nil, domain.NewDependencyError("failed to load submission", err)
	}
	if sub.Status != domain.KYCPending {
		return sub, domain.NewConflictError("submission already reviewed")
	}

	now := ks.now()
	sub.Status = domain.KYCRejected
	if approve {
		sub.Status = domain.KYCApproved
	}
	sub.ReviewNote = strings.TrimSpace(note)
	sub.ReviewedBy = &reviewerID
	sub.ReviewedAt = &now

	if err := ks.kycRepo.Review(ctx, sub); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			if current, getErr := ks.kycRepo.GetByID(ctx, id); getErr == nil {
				sub = current
			}
			return sub, domain.NewConflictError("submission already reviewed")
		}
		return nil, domain.NewDependencyError("failed to review submission", err)
	}

	if err := ks.userRepo.UpdateKYCStatus(ctx, sub.UserID, sub.Status); err != nil {
		ks.log.Error("Submission reviewed but user KYC status not updated",
			zap.String("submission_id", sub.ID.String()),
			zap.String("user_id", sub.UserID.String()),
			zap.Error(err),
		)
		return nil, domain.NewDependencyError("failed to update user KYC status", err)
	}

	ks.log.Info("KYC reviewed",
		zap.String("submission_id", sub.ID.String()),
		zap.String("status", sub.Status),
		zap.String("reviewer", reviewerID.String()),
	)
	return sub, nil
}
