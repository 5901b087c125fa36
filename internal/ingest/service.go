package ingest

import (
	"context"
	"time"

	"stagehand/internal/config"
	"stagehand/internal/constants"
	"stagehand/internal/logger"
	"stagehand/internal/mail"
	"stagehand/pkg/metrics"
	"stagehand/pkg/tracing"
)

// Service pulls recent messages from the mailbox source into the store.
// Sync is safe to re-run: identity-keyed upserts never duplicate a message
// and never clear its processed flag.
type Service struct {
	source         mail.Source
	repo           Repository
	perFolderLimit int
	logger         logger.Logger
}

func NewService(source mail.Source, repo Repository, cfg config.MailboxConfig, log logger.Logger) *Service {
	limit := cfg.PerFolderLimit
	if limit <= 0 {
		limit = constants.DefaultPerFolderLimit
	}

	return &Service{
		source:         source,
		repo:           repo,
		perFolderLimit: limit,
		logger:         log,
	}
}

func (s *Service) Sync(ctx context.Context) (*SyncSummary, error) {
	ctx, span := tracing.GetTracer("ingest-service").Start(ctx, "ingest.sync")
	defer span.End()

	start := time.Now()

	folders, err := s.source.Folders(ctx)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("sync_failed").Inc()
		return nil, err
	}

	summary := &SyncSummary{Folders: mail.SelectFolders(folders)}

	for _, folder := range summary.Folders {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s.syncFolder(ctx, folder, summary)
	}

	metrics.MailSyncDuration.Observe(float64(time.Since(start).Milliseconds()))
	s.logger.InfowCtx(ctx, "Mailbox sync finished",
		"synced", summary.Synced,
		"skipped", summary.Skipped,
		"folders", summary.Folders,
	)

	return summary, nil
}

// syncFolder ingests the most recent messages of one folder. Folder-level
// failures are logged and skipped so one broken folder cannot stall the rest.
func (s *Service) syncFolder(ctx context.Context, folder string, summary *SyncSummary) {
	raws, err := s.source.Fetch(ctx, folder, s.perFolderLimit)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Could not sync folder",
			"folder", folder,
			"error", err,
		)
		return
	}

	for _, raw := range raws {
		msg, err := Normalize(raw)
		if err != nil {
			summary.Skipped++
			metrics.MailSyncedTotal.WithLabelValues("parse_failed").Inc()
			s.logger.WarnwCtx(ctx, "Failed to parse message",
				"folder", raw.Folder,
				"uid", raw.UID,
				"error", err,
			)
			continue
		}

		if err := s.repo.Upsert(ctx, &msg); err != nil {
			summary.Skipped++
			metrics.MailSyncedTotal.WithLabelValues("store_failed").Inc()
			s.logger.ErrorwCtx(ctx, "Failed to store message",
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}

		summary.Synced++
		metrics.MailSyncedTotal.WithLabelValues("synced").Inc()
	}
}
