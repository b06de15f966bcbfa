package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/grouping"
	"github.com/streetlift/meet-engine/internal/domain/registration"
)

// OrderingService computes the next-up queue for (group, lift, round) from
// declared weights. The queue is recomputed on every call and never depends
// on earlier outcomes, so an athlete who just failed can legally reappear
// first if the declared weights put them there.
type OrderingService struct {
	groupingRepo grouping.Repository
	regRepo      registration.Repository
	attemptRepo  attempt.Repository
	athleteRepo  athlete.Repository
}

// QueueEntry is one remaining athlete in call order.
type QueueEntry struct {
	RegistrationID int64
	AthleteID      int64
	AthleteName    string
	DeclaredKg     float64
	BodyweightKg   float64
	StartOrd       int
}

func NewOrderingService(
	groupingRepo grouping.Repository,
	regRepo registration.Repository,
	attemptRepo attempt.Repository,
	athleteRepo athlete.Repository,
) *OrderingService {
	return &OrderingService{
		groupingRepo: groupingRepo,
		regRepo:      regRepo,
		attemptRepo:  attemptRepo,
		athleteRepo:  athleteRepo,
	}
}

// Queue returns the registrations still to attempt in the round, lightest
// declared weight first. Bars only go up, so the lowest call loads first;
// ties go to the heavier athlete (they concede points to bodyweight), then
// to nomination order.
func (s *OrderingService) Queue(ctx context.Context, groupID, liftID int64, round int) ([]QueueEntry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.OrderingService.Queue")
	defer span.End()

	if round < 1 || round > attempt.MaxNo {
		return nil, fmt.Errorf("%w: round %d", ErrInvalidInput, round)
	}

	entries, err := s.groupingRepo.EntriesForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	regIDs := make([]int64, 0, len(entries))
	for _, e := range entries {
		regIDs = append(regIDs, e.RegistrationID)
	}

	regs, err := s.regRepo.ByIDs(ctx, regIDs)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}

	roundAttempts, err := s.attemptRepo.ForRound(ctx, regIDs, liftID, round)
	if err != nil {
		return nil, fmt.Errorf("load round attempts: %w", err)
	}

	var openers map[int64]float64
	if round == 1 {
		openers, err = s.regRepo.OpenersByRegistrations(ctx, regIDs, liftID)
		if err != nil {
			return nil, fmt.Errorf("load openers: %w", err)
		}
	}

	queue := make([]QueueEntry, 0, len(entries))
	athleteIDs := make([]int64, 0, len(entries))
	for _, e := range entries {
		reg, ok := regs[e.RegistrationID]
		if !ok {
			continue
		}

		if a, ok := roundAttempts[e.RegistrationID]; ok && a.Status != attempt.StatusPending {
			continue
		}

		var declared float64
		if round == 1 {
			declared = openers[e.RegistrationID]
		} else if a, ok := roundAttempts[e.RegistrationID]; ok {
			declared = a.WeightKg
		}
		if declared <= 0 {
			// No declaration yet: deferred, not queued this pass.
			continue
		}

		queue = append(queue, QueueEntry{
			RegistrationID: e.RegistrationID,
			AthleteID:      reg.AthleteID,
			DeclaredKg:     declared,
			BodyweightKg:   reg.BodyweightKg,
			StartOrd:       e.StartOrd,
		})
		athleteIDs = append(athleteIDs, reg.AthleteID)
	}

	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].DeclaredKg != queue[j].DeclaredKg {
			return queue[i].DeclaredKg < queue[j].DeclaredKg
		}
		if queue[i].BodyweightKg != queue[j].BodyweightKg {
			return queue[i].BodyweightKg > queue[j].BodyweightKg
		}
		return queue[i].StartOrd < queue[j].StartOrd
	})

	if len(athleteIDs) > 0 {
		athletes, err := s.athleteRepo.ByIDs(ctx, athleteIDs)
		if err != nil {
			return nil, fmt.Errorf("load athletes: %w", err)
		}
		for i := range queue {
			if a, ok := athletes[queue[i].AthleteID]; ok {
				queue[i].AthleteName = a.FullName()
			}
		}
	}

	return queue, nil
}
