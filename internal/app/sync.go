package app

import (
	"context"
	"log/slog"

	"github.com/streetlift/meet-engine/internal/config"
	"github.com/streetlift/meet-engine/internal/infrastructure/archive"
	"github.com/streetlift/meet-engine/internal/infrastructure/repository/sqlite"
	"github.com/streetlift/meet-engine/internal/usecase"
)

// RunSync uploads a finished meet to the remote archive. It opens both
// stores for the duration of the call only.
func RunSync(ctx context.Context, cfg config.Config, logger *slog.Logger, meetCode string, force bool) (usecase.SyncReport, error) {
	db, err := sqlite.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return usecase.SyncReport{}, err
	}
	defer func() { _ = db.Close() }()

	remote, err := archive.Open(ctx, cfg.ArchiveDBURL)
	if err != nil {
		return usecase.SyncReport{}, err
	}
	defer func() { _ = remote.Close() }()

	meetRepo := sqlite.NewMeetRepository(db)
	regRepo := sqlite.NewRegistrationRepository(db)
	attemptRepo := sqlite.NewAttemptRepository(db)
	athleteRepo := sqlite.NewAthleteRepository(db)
	categoryRepo := sqlite.NewCategoryRepository(db)
	groupingRepo := sqlite.NewGroupingRepository(db)

	ranking := usecase.NewRankingService(meetRepo, regRepo, attemptRepo, athleteRepo, categoryRepo, groupingRepo)
	sync := usecase.NewSyncService(meetRepo, regRepo, attemptRepo, athleteRepo, categoryRepo, ranking, remote, logger)

	return sync.Sync(ctx, meetCode, force)
}
