package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/category"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	"github.com/streetlift/meet-engine/internal/domain/record"
	"github.com/streetlift/meet-engine/internal/domain/registration"
)

const athleteUploadWorkers = 4

// ArchiveMeet is the meet row shipped to the archive, logical keys only.
type ArchiveMeet struct {
	Code       string
	Name       string
	Date       time.Time
	Level      string
	Regulation string
}

type ArchiveBest struct {
	LiftCode string
	BestKg   float64
}

// ArchiveResult is one athlete's final line, denormalized per-lift.
type ArchiveResult struct {
	MeetCode           string
	AthleteCF          string
	WeightCategoryName string
	AgeCategoryName    string
	BodyweightKg       float64
	TotalKg            float64
	Placement          int
	RIS                float64
	Bests              []ArchiveBest
}

// ArchiveTx is the unit-of-work surface inside the remote transaction.
type ArchiveTx interface {
	DeleteMeet(ctx context.Context, meetCode string) error
	InsertMeet(ctx context.Context, m ArchiveMeet) error
	Record(ctx context.Context, weightCatName, ageCatName, liftCode string) (record.Record, bool, error)
	PutRecord(ctx context.Context, r record.Record) error
	InsertResult(ctx context.Context, r ArchiveResult) error
}

// Archive is the remote gateway. Identity crosses only by CF, meet code and
// category name; autoincrement ids never leave their database.
type Archive interface {
	UpsertAthlete(ctx context.Context, a athlete.Athlete) error
	MeetExists(ctx context.Context, meetCode string) (bool, error)
	InTx(ctx context.Context, fn func(ctx context.Context, tx ArchiveTx) error) error
}

type SyncReport struct {
	MeetCode         string
	AthletesUploaded int
	ResultsInserted  int
	RecordsPromoted  int
}

// SyncService uploads a finished meet to the remote archive: athletes first
// (idempotent upserts), then one all-or-nothing transaction for the meet,
// record promotions and results.
type SyncService struct {
	meetRepo     meet.Repository
	regRepo      registration.Repository
	attemptRepo  attempt.Repository
	athleteRepo  athlete.Repository
	categoryRepo category.Repository
	ranking      *RankingService
	archive      Archive
	logger       *slog.Logger
	now          func() time.Time
}

func NewSyncService(
	meetRepo meet.Repository,
	regRepo registration.Repository,
	attemptRepo attempt.Repository,
	athleteRepo athlete.Repository,
	categoryRepo category.Repository,
	ranking *RankingService,
	archive Archive,
	logger *slog.Logger,
) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncService{
		meetRepo:     meetRepo,
		regRepo:      regRepo,
		attemptRepo:  attemptRepo,
		athleteRepo:  athleteRepo,
		categoryRepo: categoryRepo,
		ranking:      ranking,
		archive:      archive,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *SyncService) Sync(ctx context.Context, meetCode string, force bool) (SyncReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.Sync")
	defer span.End()

	m, exists, err := s.meetRepo.ByCode(ctx, meetCode)
	if err != nil {
		return SyncReport{}, fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return SyncReport{}, fmt.Errorf("%w: unknown meet %q", ErrNotFound, meetCode)
	}

	regs, err := s.regRepo.ForMeet(ctx, m.ID)
	if err != nil {
		return SyncReport{}, fmt.Errorf("list registrations: %w", err)
	}

	athleteIDs := make([]int64, 0, len(regs))
	for _, r := range regs {
		athleteIDs = append(athleteIDs, r.AthleteID)
	}
	athletes, err := s.athleteRepo.ByIDs(ctx, athleteIDs)
	if err != nil {
		return SyncReport{}, fmt.Errorf("load athletes: %w", err)
	}

	uploadPool := pool.New().WithMaxGoroutines(athleteUploadWorkers).WithContext(ctx).WithCancelOnError()
	for _, a := range athletes {
		uploadPool.Go(func(ctx context.Context) error {
			if err := s.archive.UpsertAthlete(ctx, a); err != nil {
				return fmt.Errorf("upsert athlete cf=%s: %w", a.CF, err)
			}
			return nil
		})
	}
	if err := uploadPool.Wait(); err != nil {
		return SyncReport{}, err
	}

	remoteExists, err := s.archive.MeetExists(ctx, meetCode)
	if err != nil {
		return SyncReport{}, fmt.Errorf("check remote meet: %w", err)
	}
	if remoteExists && !force {
		return SyncReport{}, fmt.Errorf("%w: meet %q", ErrAlreadySynced, meetCode)
	}

	rankings, err := s.ranking.Rankings(ctx, m.ID)
	if err != nil {
		return SyncReport{}, fmt.Errorf("compute rankings: %w", err)
	}

	lifts, err := s.meetRepo.Lifts(ctx, m.MeetTypeID)
	if err != nil {
		return SyncReport{}, fmt.Errorf("list lifts: %w", err)
	}
	liftCodes := make(map[int64]string, len(lifts))
	for _, l := range lifts {
		liftCodes[l.ID] = l.Code
	}

	regByID := make(map[int64]registration.Registration, len(regs))
	for _, r := range regs {
		regByID[r.ID] = r
	}

	report := SyncReport{MeetCode: meetCode}
	syncDate := s.now().UTC().Truncate(24 * time.Hour)

	err = s.archive.InTx(ctx, func(ctx context.Context, tx ArchiveTx) error {
		if remoteExists {
			if err := tx.DeleteMeet(ctx, meetCode); err != nil {
				return fmt.Errorf("delete stale meet: %w", err)
			}
		}

		if err := tx.InsertMeet(ctx, ArchiveMeet{
			Code:       m.Code,
			Name:       m.Name,
			Date:       m.Date,
			Level:      m.Level,
			Regulation: m.Regulation,
		}); err != nil {
			return fmt.Errorf("insert meet: %w", err)
		}

		promoted, err := s.promoteRecords(ctx, tx, rankings, regByID, liftCodes, meetCode, syncDate)
		if err != nil {
			return err
		}
		report.RecordsPromoted = promoted

		for _, cat := range rankings.Categories {
			for _, row := range cat.Athletes {
				result, err := s.buildResult(ctx, row, regByID[row.RegistrationID], liftCodes, meetCode)
				if err != nil {
					return err
				}
				if err := tx.InsertResult(ctx, result); err != nil {
					return fmt.Errorf("insert result cf=%s: %w", row.AthleteCF, err)
				}
				report.ResultsInserted++
			}
		}
		for _, row := range rankings.Absolute {
			if row.CategoryName != "" {
				continue
			}
			result, err := s.buildResult(ctx, row, regByID[row.RegistrationID], liftCodes, meetCode)
			if err != nil {
				return err
			}
			if err := tx.InsertResult(ctx, result); err != nil {
				return fmt.Errorf("insert result cf=%s: %w", row.AthleteCF, err)
			}
			report.ResultsInserted++
		}

		return nil
	})
	if err != nil {
		return SyncReport{}, err
	}

	report.AthletesUploaded = len(athletes)
	s.logger.InfoContext(ctx, "meet synced",
		"meet_code", meetCode,
		"athletes", report.AthletesUploaded,
		"results", report.ResultsInserted,
		"records_promoted", report.RecordsPromoted,
	)

	return report, nil
}

// promoteRecords updates each (weight cat, age cat, lift) record the meet
// strictly beat. Equal weight never promotes, whatever the bodyweight.
func (s *SyncService) promoteRecords(
	ctx context.Context,
	tx ArchiveTx,
	rankings RankingSet,
	regByID map[int64]registration.Registration,
	liftCodes map[int64]string,
	meetCode string,
	syncDate time.Time,
) (int, error) {
	type bestLift struct {
		kg   float64
		bw   float64
		cf   string
		wc   string
		ac   string
		lift string
	}
	bestByKey := make(map[string]bestLift)

	for _, cat := range rankings.Categories {
		for _, row := range cat.Athletes {
			reg := regByID[row.RegistrationID]
			wcName, acName, err := s.categoryNames(ctx, reg)
			if err != nil {
				return 0, err
			}
			for liftID, kg := range row.BestsByLift {
				if kg <= 0 {
					continue
				}
				key := fmt.Sprintf("%s|%s|%s", wcName, acName, liftCodes[liftID])
				if cur, ok := bestByKey[key]; !ok || kg > cur.kg {
					bestByKey[key] = bestLift{kg: kg, bw: row.BodyweightKg, cf: row.AthleteCF, wc: wcName, ac: acName, lift: liftCodes[liftID]}
				}
			}
		}
	}

	promoted := 0
	for key, best := range bestByKey {
		existing, ok, err := tx.Record(ctx, best.wc, best.ac, best.lift)
		if err != nil {
			return 0, fmt.Errorf("read record %s: %w", key, err)
		}
		if ok && best.kg <= existing.WeightKg {
			continue
		}
		if err := tx.PutRecord(ctx, record.Record{
			WeightCategoryName: best.wc,
			AgeCategoryName:    best.ac,
			LiftCode:           best.lift,
			WeightKg:           best.kg,
			BodyweightKg:       best.bw,
			AthleteCF:          best.cf,
			MeetCode:           meetCode,
			SetAt:              syncDate,
		}); err != nil {
			return 0, fmt.Errorf("put record %s: %w", key, err)
		}
		promoted++
	}

	return promoted, nil
}

func (s *SyncService) buildResult(
	ctx context.Context,
	row RankedAthlete,
	reg registration.Registration,
	liftCodes map[int64]string,
	meetCode string,
) (ArchiveResult, error) {
	wcName, acName, err := s.categoryNames(ctx, reg)
	if err != nil {
		return ArchiveResult{}, err
	}

	result := ArchiveResult{
		MeetCode:           meetCode,
		AthleteCF:          row.AthleteCF,
		WeightCategoryName: wcName,
		AgeCategoryName:    acName,
		BodyweightKg:       row.BodyweightKg,
		TotalKg:            row.TotalKg,
		Placement:          row.Placement,
		RIS:                row.RIS,
	}
	for liftID, kg := range row.BestsByLift {
		result.Bests = append(result.Bests, ArchiveBest{LiftCode: liftCodes[liftID], BestKg: kg})
	}

	return result, nil
}

func (s *SyncService) categoryNames(ctx context.Context, reg registration.Registration) (string, string, error) {
	wcName, acName := "OPEN", "OPEN"
	if reg.WeightCategoryID != nil {
		wc, ok, err := s.categoryRepo.WeightCategoryByID(ctx, *reg.WeightCategoryID)
		if err != nil {
			return "", "", fmt.Errorf("get weight category: %w", err)
		}
		if ok {
			wcName = wc.Name
		}
	}
	if reg.AgeCategoryID != nil {
		ac, ok, err := s.categoryRepo.AgeCategoryByID(ctx, *reg.AgeCategoryID)
		if err != nil {
			return "", "", fmt.Errorf("get age category: %w", err)
		}
		if ok {
			acName = ac.Name
		}
	}
	return wcName, acName, nil
}
