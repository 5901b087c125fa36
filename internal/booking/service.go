package booking

import (
	"context"

	"stagehand/internal/logger"
	"stagehand/pkg/metrics"
)

// Service owns the review transitions for pending proposals. Accept merges
// the proposal into the booking, reject discards it; both clear the unseen
// flag so the booking drops out of the review queue.
type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) AcceptProposal(ctx context.Context, id string) (*Booking, error) {
	b, err := s.repo.AcceptProposal(ctx, id)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to accept proposal",
			"booking_id", id,
			"error", err,
		)
		return nil, err
	}

	metrics.ReviewTransitionsTotal.WithLabelValues("accept").Inc()
	s.logger.InfowCtx(ctx, "Proposal accepted",
		"booking_id", id,
		"venue_name", b.VenueName,
	)

	return b, nil
}

func (s *Service) RejectProposal(ctx context.Context, id string) (*Booking, error) {
	b, err := s.repo.RejectProposal(ctx, id)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to reject proposal",
			"booking_id", id,
			"error", err,
		)
		return nil, err
	}

	metrics.ReviewTransitionsTotal.WithLabelValues("reject").Inc()
	s.logger.InfowCtx(ctx, "Proposal rejected", "booking_id", id)

	return b, nil
}

func (s *Service) Acknowledge(ctx context.Context, id string) error {
	if err := s.repo.Acknowledge(ctx, id); err != nil {
		return err
	}

	metrics.ReviewTransitionsTotal.WithLabelValues("acknowledge").Inc()
	s.logger.InfowCtx(ctx, "Booking update acknowledged", "booking_id", id)

	return nil
}
