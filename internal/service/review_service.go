package service

import (
	"context"
	"strings"

	"github.com/adiselav/CabanApp/internal/config"
	"github.com/adiselav/CabanApp/internal/domain"
	"github.com/adiselav/CabanApp/internal/events"
	"github.com/adiselav/CabanApp/internal/metrics"
	"github.com/adiselav/CabanApp/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ReviewService records guest reviews. The repository recomputes the cabin
// score average in the same transaction as every review mutation.
type ReviewService struct {
	reviews  domain.ReviewRepository
	catalog  domain.CatalogRepository
	eventBus domain.EventPublisher
	validate *validator.Validate
	cfg      config.ReviewsConfig
	logger   *zerolog.Logger
}

func NewReviewService(
	reviews domain.ReviewRepository,
	catalog domain.CatalogRepository,
	eventBus domain.EventPublisher,
	cfg config.ReviewsConfig,
	logger *zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		catalog:  catalog,
		eventBus: eventBus,
		validate: NewValidator(),
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *ReviewService) CreateReview(ctx context.Context, caller models.Identity, in domain.ReviewInput) (*models.Review, error) {
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	review := &models.Review{
		CabinID: in.CabinID,
		UserID:  caller.UserID,
		Score:   in.Score,
		Comment: strings.TrimSpace(in.Comment),
	}
	if err := s.reviews.CreateReview(ctx, review, s.cfg.OnePerUser); err != nil {
		return nil, err
	}

	s.changed(review, "created")
	return review, nil
}

func (s *ReviewService) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	return s.reviews.GetReview(ctx, id)
}

// UpdateReview is limited to the review author and administrators.
func (s *ReviewService) UpdateReview(
	ctx context.Context,
	caller models.Identity,
	id int64,
	in domain.ReviewUpdateInput,
) (*models.Review, error) {
	review, err := s.authoredReview(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	review.Score = in.Score
	review.Comment = strings.TrimSpace(in.Comment)
	if err := s.reviews.UpdateReview(ctx, review); err != nil {
		return nil, err
	}

	s.changed(review, "updated")
	return review, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, caller models.Identity, id int64) error {
	review, err := s.authoredReview(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.reviews.DeleteReview(ctx, id); err != nil {
		return err
	}

	s.changed(review, "deleted")
	return nil
}

func (s *ReviewService) ListCabinReviews(ctx context.Context, cabinID int64) ([]*models.Review, error) {
	if _, err := s.catalog.GetCabin(ctx, cabinID); err != nil {
		return nil, err
	}
	return s.reviews.ListCabinReviews(ctx, cabinID)
}

func (s *ReviewService) authoredReview(ctx context.Context, caller models.Identity, id int64) (*models.Review, error) {
	review, err := s.reviews.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(review.UserID) {
		return nil, domain.ErrForbidden
	}
	return review, nil
}

func (s *ReviewService) changed(review *models.Review, action string) {
	metrics.IncScoreRecompute()
	s.logger.Info().
		Int64("review_id", review.ID).
		Int64("cabin_id", review.CabinID).
		Str("action", action).
		Msg("Review changed")

	if s.eventBus == nil {
		return
	}
	payload := events.ReviewEventPayload{ReviewID: review.ID, CabinID: review.CabinID, Score: review.Score, Action: action}
	if err := s.eventBus.PublishJSON(events.EventReviewChanged, payload); err != nil {
		s.logger.Error().Err(err).Int64("review_id", review.ID).Msg("publish event error")
	}
}
