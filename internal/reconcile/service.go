package reconcile

import (
	"context"
	"fmt"
	"time"

	"stagehand/internal/booking"
	"stagehand/internal/config"
	"stagehand/internal/constants"
	"stagehand/internal/extraction"
	"stagehand/internal/ingest"
	"stagehand/internal/logger"
	"stagehand/internal/matching"
	"stagehand/pkg/cel"
	pkgerrors "stagehand/pkg/errors"
	"stagehand/pkg/metrics"
)

type outcome int

const (
	outcomeFiltered outcome = iota
	outcomeProposal
	outcomeDraft
	outcomeNoop
)

// Service drives one reconciliation batch: pull unprocessed messages,
// filter, extract, match against the same calendar day, then either propose
// an update or create a Draft. Every message that enters the batch leaves it
// marked processed, success or not, so a poison message cannot wedge the
// pipeline.
type Service struct {
	messages ingest.Repository
	bookings booking.Repository
	adapter  extraction.Adapter
	filters  *cel.Evaluator
	notifier *Notifier
	lock     *RunLock
	cfg      config.Config
	logger   logger.Logger
}

func NewService(
	messages ingest.Repository,
	bookings booking.Repository,
	adapter extraction.Adapter,
	filters *cel.Evaluator,
	notifier *Notifier,
	lock *RunLock,
	cfg config.Config,
	log logger.Logger,
) *Service {
	return &Service{
		messages: messages,
		bookings: bookings,
		adapter:  adapter,
		filters:  filters,
		notifier: notifier,
		lock:     lock,
		cfg:      cfg,
		logger:   log,
	}
}

func (s *Service) Run(ctx context.Context) (*Summary, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("error").Inc()
		return nil, pkgerrors.ErrServiceUnavailable.WithCause(err).
			WithDetail("message", "failed to acquire run lock")
	}
	if !acquired {
		metrics.BatchRunsTotal.WithLabelValues("conflict").Inc()
		return nil, pkgerrors.ErrConflict.
			WithDetail("message", "a reconciliation run is already in progress")
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logger.WarnwCtx(ctx, "Failed to release run lock", "error", err)
		}
	}()

	start := time.Now()
	summary := &Summary{}

	// One snapshot per run: the same exemplars go to every extraction in
	// the batch, so results are comparable across the batch.
	contextBookings, err := s.bookings.QueryRecentConfirmed(ctx, s.contextLimit())
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to load context bookings, continuing without",
			"error", err,
		)
		contextBookings = nil
	}

	msgs, err := s.messages.ListUnprocessed(ctx, s.batchSize())
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to list unprocessed messages: %w", err)
	}

	for i := range msgs {
		if ctx.Err() != nil {
			metrics.BatchRunsTotal.WithLabelValues("cancelled").Inc()
			return summary, fmt.Errorf("batch run cancelled: %w", ctx.Err())
		}

		msg := msgs[i]
		result, err := s.processMessage(ctx, msg, contextBookings)
		if err != nil {
			summary.Failures++
			s.logger.ErrorwCtx(ctx, "Failed to process message",
				"message_id", msg.ID,
				"error", err,
			)
		} else {
			switch result {
			case outcomeFiltered:
				summary.FilteredCount++
			case outcomeProposal:
				summary.ProposalsWritten++
			case outcomeDraft:
				summary.DraftsCreated++
			}
		}

		// Processed means "the batch is done with it", not "it succeeded".
		if err := s.messages.MarkProcessed(ctx, msg.ID); err != nil {
			summary.Failures++
			s.logger.ErrorwCtx(ctx, "Failed to mark message processed",
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}
		summary.ProcessedCount++
	}

	metrics.BatchRunsTotal.WithLabelValues("ok").Inc()
	metrics.ObserveBatchDuration(time.Since(start))
	s.logger.InfowCtx(ctx, "Reconciliation batch completed",
		"processed", summary.ProcessedCount,
		"filtered", summary.FilteredCount,
		"drafts_created", summary.DraftsCreated,
		"proposals_written", summary.ProposalsWritten,
		"failures", summary.Failures,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return summary, nil
}

func (s *Service) processMessage(ctx context.Context, msg ingest.Message, contextBookings []booking.Booking) (result outcome, err error) {
	// A panic in extraction or matching fails this message, not the batch.
	defer func() {
		if rErr := pkgerrors.RecoverPanic(recover()); rErr != nil {
			result = outcomeNoop
			err = rErr
		}
	}()

	pass, err := s.passesFilters(ctx, msg)
	if err != nil {
		return outcomeNoop, err
	}
	if !pass {
		metrics.MessagesFilteredTotal.Inc()
		s.logger.DebugwCtx(ctx, "Message filtered out", "message_id", msg.ID)
		return outcomeFiltered, nil
	}

	res, err := s.adapter.Extract(ctx, msg, contextBookings)
	if err != nil {
		return outcomeNoop, fmt.Errorf("extraction failed: %w", err)
	}

	var candidates []booking.Booking
	if res.Date != nil {
		from, to := dayWindow(*res.Date)
		candidates, err = s.bookings.QueryDateRange(ctx, from, to)
		if err != nil {
			return outcomeNoop, fmt.Errorf("failed to query candidate bookings: %w", err)
		}
	}

	decision := matching.Match(res, msg, candidates)
	if decision.Matched {
		return s.writeProposal(ctx, msg, res, decision.Target)
	}

	return s.createDraft(ctx, msg, res, decision.Conflict)
}

// passesFilters evaluates every configured CEL expression against the
// message. Evaluation errors fall back per config: allow keeps the message
// in the pipeline, deny drops it like a filter miss.
func (s *Service) passesFilters(ctx context.Context, msg ingest.Message) (bool, error) {
	for _, expr := range s.cfg.Ingest.Filters {
		pass, err := s.filters.EvaluateFilter(ctx, expr, msg)
		if err != nil {
			action := s.cfg.Ingest.Fallback.OnError
			if action == "" {
				action = constants.FallbackAllow
			}
			metrics.FallbackUsageTotal.WithLabelValues("filter", action, "evaluation_error").Inc()
			s.logger.WarnwCtx(ctx, "Filter evaluation failed, applying fallback",
				"message_id", msg.ID,
				"expression", expr,
				"fallback", action,
				"error", err,
			)
			if action == constants.FallbackDeny {
				return false, nil
			}
			continue
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) writeProposal(ctx context.Context, msg ingest.Message, res *extraction.Result, target *booking.Booking) (outcome, error) {
	updates := BuildProposal(res, target)
	if len(updates) == 0 && res.Notes == "" {
		s.logger.DebugwCtx(ctx, "Extraction matched booking with nothing to propose",
			"message_id", msg.ID,
			"booking_id", target.ID,
		)
		return outcomeNoop, nil
	}

	note := proposalNote(res.Notes, time.Now())
	if err := s.bookings.AppendProposal(ctx, target.ID, updates, note); err != nil {
		return outcomeNoop, fmt.Errorf("failed to write proposal: %w", err)
	}

	metrics.ProposalsTotal.Inc()
	s.notifier.ProposalRaised(ctx, target.ID, msg.ID)
	s.logger.InfowCtx(ctx, "Update proposal written",
		"message_id", msg.ID,
		"booking_id", target.ID,
		"fields", len(updates),
	)

	return outcomeProposal, nil
}

func (s *Service) createDraft(ctx context.Context, msg ingest.Message, res *extraction.Result, conflict bool) (outcome, error) {
	draft := buildDraft(msg, res)

	now := time.Now()
	if res.Notes != "" {
		draft.Notes = append(draft.Notes, proposalNote(res.Notes, now))
	}
	if conflict {
		draft.Notes = append(draft.Notes, booking.NoteEntry{
			At:   now,
			Text: fmt.Sprintf("[%s] Warning: other bookings exist on this date but none matched this inquiry.", now.UTC().Format(time.RFC3339)),
		})
	}

	if err := s.bookings.Insert(ctx, &draft); err != nil {
		return outcomeNoop, fmt.Errorf("failed to create draft booking: %w", err)
	}

	metrics.DraftsCreatedTotal.Inc()
	s.notifier.DraftCreated(ctx, draft.ID, msg.ID)
	s.logger.InfowCtx(ctx, "Draft booking created",
		"message_id", msg.ID,
		"booking_id", draft.ID,
		"venue_name", draft.VenueName,
	)

	return outcomeDraft, nil
}

// buildDraft fills the gaps an extraction leaves with the message's sender
// identity and placeholder values. A dateless extraction falls back to the
// message's received date so the draft still lands near the inquiry on a
// calendar view.
func buildDraft(msg ingest.Message, res *extraction.Result) booking.Booking {
	draft := booking.Booking{
		VenueName:       res.VenueName,
		Location:        res.Location,
		Status:          booking.StatusDraft,
		ContactName:     res.ContactName,
		ContactEmail:    res.ContactEmail,
		StartTime:       res.StartTime,
		EndTime:         res.EndTime,
		SourceMessageID: msg.ID,
		HasUnseenUpdate: true,
	}

	confidence := res.Confidence
	draft.Confidence = &confidence

	if res.Date != nil {
		draft.Date = res.Date.UTC()
	} else {
		draft.Date = msg.ReceivedAt.UTC()
	}
	if res.Fee != nil {
		draft.Fee = *res.Fee
	}
	if draft.VenueName == "" {
		draft.VenueName = constants.PlaceholderVenue
	}
	if draft.Location == "" {
		draft.Location = constants.PlaceholderLocation
	}
	if draft.ContactName == "" {
		draft.ContactName = senderName(msg)
	}
	if draft.ContactEmail == "" {
		draft.ContactEmail = senderEmail(msg)
	}

	return draft
}

func (s *Service) batchSize() int {
	if s.cfg.Reconcile.BatchSize > 0 {
		return s.cfg.Reconcile.BatchSize
	}
	return constants.DefaultBatchSize
}

func (s *Service) contextLimit() int {
	if s.cfg.Reconcile.ContextBookings > 0 {
		return s.cfg.Reconcile.ContextBookings
	}
	return constants.DefaultContextBookings
}
