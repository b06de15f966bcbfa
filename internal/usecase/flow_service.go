package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/current"
	"github.com/streetlift/meet-engine/internal/domain/grouping"
	"github.com/streetlift/meet-engine/internal/domain/judging"
	"github.com/streetlift/meet-engine/internal/domain/live"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	"github.com/streetlift/meet-engine/internal/domain/registration"
	"github.com/streetlift/meet-engine/internal/platform/resilience"
)

// Publisher is the event sink the flow service pushes changes through.
// The realtime broker implements it; tests use an in-memory recorder.
type Publisher interface {
	Publish(ctx context.Context, ev live.Event)
}

// FlowService owns the CurrentState singleton and drives transitions on
// director commands and finalized ballots. All state-changing commands for
// one meet run under that meet's lock, so no two commands interleave.
type FlowService struct {
	currentRepo  current.Repository
	meetRepo     meet.Repository
	groupingRepo grouping.Repository
	regRepo      registration.Repository
	attemptRepo  attempt.Repository
	athleteRepo  athlete.Repository
	ordering     *OrderingService
	ranking      *RankingService
	tally        *TallyService
	pub          Publisher
	logger       *slog.Logger
	now          func() time.Time

	mu        sync.Mutex
	meetLocks map[int64]*sync.Mutex

	rankFlight resilience.SingleFlight[RankingSet]
}

func NewFlowService(
	currentRepo current.Repository,
	meetRepo meet.Repository,
	groupingRepo grouping.Repository,
	regRepo registration.Repository,
	attemptRepo attempt.Repository,
	athleteRepo athlete.Repository,
	ordering *OrderingService,
	ranking *RankingService,
	tally *TallyService,
	pub Publisher,
	logger *slog.Logger,
) *FlowService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FlowService{
		currentRepo:  currentRepo,
		meetRepo:     meetRepo,
		groupingRepo: groupingRepo,
		regRepo:      regRepo,
		attemptRepo:  attemptRepo,
		athleteRepo:  athleteRepo,
		ordering:     ordering,
		ranking:      ranking,
		tally:        tally,
		pub:          pub,
		logger:       logger,
		now:          time.Now,
		meetLocks:    make(map[int64]*sync.Mutex),
	}
}

func (s *FlowService) lockMeet(meetID int64) func() {
	s.mu.Lock()
	lock, ok := s.meetLocks[meetID]
	if !ok {
		lock = &sync.Mutex{}
		s.meetLocks[meetID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Initialize points the machine at the first athlete of the flight's first
// group, round 1, for the given lift.
func (s *FlowService) Initialize(ctx context.Context, meetID, flightID, liftID int64) (current.State, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.Initialize")
	defer span.End()

	unlock := s.lockMeet(meetID)
	defer unlock()

	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return current.State{}, fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return current.State{}, fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	flight, exists, err := s.groupingRepo.FlightByID(ctx, flightID)
	if err != nil {
		return current.State{}, fmt.Errorf("get flight: %w", err)
	}
	if !exists || flight.MeetID != meetID {
		return current.State{}, fmt.Errorf("%w: flight=%d", ErrNotFound, flightID)
	}

	groups, err := s.groupingRepo.GroupsForFlight(ctx, flightID)
	if err != nil {
		return current.State{}, fmt.Errorf("list groups: %w", err)
	}
	if len(groups) == 0 {
		return current.State{}, fmt.Errorf("%w: flight has no groups", ErrNotReady)
	}

	first := groups[0]
	queue, err := s.ordering.Queue(ctx, first.ID, liftID, 1)
	if err != nil {
		return current.State{}, err
	}
	if len(queue) == 0 {
		return current.State{}, fmt.Errorf("%w: first group has no entries with openers", ErrNotReady)
	}

	st := current.State{
		Phase:          current.PhaseActive,
		MeetID:         &meetID,
		FlightID:       &flightID,
		GroupID:        &first.ID,
		LiftID:         &liftID,
		Round:          1,
		RegistrationID: &queue[0].RegistrationID,
	}
	if err := s.currentRepo.Put(ctx, st); err != nil {
		return current.State{}, fmt.Errorf("persist current state: %w", err)
	}

	s.publishState(ctx, m, st)
	s.publishQueue(ctx, m, st, queue)

	return st, nil
}

// Next advances the current-athlete pointer: same round first, then the
// next round, then the next group (round 1, same lift), then the next lift
// (first group, round 1), and finally FINISHED. NEXT on a finished flight
// is a no-op so a director retry is always safe.
func (s *FlowService) Next(ctx context.Context, meetID int64) (current.State, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.Next")
	defer span.End()

	unlock := s.lockMeet(meetID)
	defer unlock()

	st, err := s.currentRepo.Get(ctx)
	if err != nil {
		return current.State{}, fmt.Errorf("get current state: %w", err)
	}
	if st.Phase == current.PhaseFinished {
		return st, nil
	}
	if !st.Active() || *st.MeetID != meetID {
		return current.State{}, fmt.Errorf("%w: NEXT without an active meet", ErrStateConflict)
	}

	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return current.State{}, fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return current.State{}, fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	groups, err := s.groupingRepo.GroupsForFlight(ctx, *st.FlightID)
	if err != nil {
		return current.State{}, fmt.Errorf("list groups: %w", err)
	}
	lifts, err := s.meetRepo.Lifts(ctx, m.MeetTypeID)
	if err != nil {
		return current.State{}, fmt.Errorf("list lifts: %w", err)
	}

	startGroupID := *st.GroupID
	startLiftID := *st.LiftID
	groupID := startGroupID
	liftID := startLiftID
	round := st.Round

	for {
		queue, err := s.ordering.Queue(ctx, groupID, liftID, round)
		if err != nil {
			return current.State{}, err
		}
		if len(queue) > 0 {
			if groupID != startGroupID || liftID != startLiftID {
				s.publishBetweenGroups(ctx, m, groupID, liftID)
			}
			st.Phase = current.PhaseActive
			st.GroupID = &groupID
			st.LiftID = &liftID
			st.Round = round
			st.RegistrationID = &queue[0].RegistrationID
			st.TimerStart = nil
			st.TimerDuration = 0
			if err := s.currentRepo.Put(ctx, st); err != nil {
				return current.State{}, fmt.Errorf("persist current state: %w", err)
			}
			s.publishState(ctx, m, st)
			s.publishQueue(ctx, m, st, queue)
			return st, nil
		}

		if round < attempt.MaxRounds {
			round++
			continue
		}

		if next, ok := nextGroup(groups, groupID); ok {
			groupID = next.ID
			round = 1
			continue
		}

		if next, ok := nextLift(lifts, liftID); ok {
			liftID = next.ID
			groupID = groups[0].ID
			round = 1
			continue
		}

		st.Phase = current.PhaseFinished
		st.TimerStart = nil
		st.TimerDuration = 0
		if err := s.currentRepo.Put(ctx, st); err != nil {
			return current.State{}, fmt.Errorf("persist current state: %w", err)
		}
		s.publish(ctx, m.Code, live.KindMeetFinished, live.MeetFinished{Reason: "flight complete"})
		return st, nil
	}
}

// DeclareWeight records an athlete's next call. Declarations for round r+1
// are expected while round r is live, so this never touches the pointer.
func (s *FlowService) DeclareWeight(ctx context.Context, meetID, regID, liftID int64, attemptNo int, kg float64) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.DeclareWeight")
	defer span.End()

	unlock := s.lockMeet(meetID)
	defer unlock()

	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	reg, exists, err := s.regRepo.ByID(ctx, regID)
	if err != nil {
		return fmt.Errorf("get registration: %w", err)
	}
	if !exists || reg.MeetID != meetID {
		return fmt.Errorf("%w: registration=%d", ErrNotFound, regID)
	}

	lift, exists, err := s.meetRepo.LiftByID(ctx, liftID)
	if err != nil {
		return fmt.Errorf("get lift: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: lift=%d", ErrNotFound, liftID)
	}

	prior, err := s.attemptRepo.For(ctx, regID, liftID)
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	if err := attempt.ValidateDeclare(prior, attemptNo, kg); err != nil {
		return mapDeclareError(err)
	}

	next := attempt.Attempt{
		RegistrationID: regID,
		LiftID:         liftID,
		No:             attemptNo,
		WeightKg:       kg,
		Status:         attempt.StatusPending,
	}
	for _, p := range prior {
		if p.No == attemptNo {
			next.ID = p.ID
			break
		}
	}
	if _, err := s.attemptRepo.Put(ctx, next); err != nil {
		return fmt.Errorf("store attempt: %w", err)
	}

	s.publish(ctx, m.Code, live.KindWeightUpdated, live.WeightUpdated{
		RegistrationID: regID,
		LiftCode:       lift.Code,
		AttemptNo:      attemptNo,
		WeightKg:       kg,
	})

	// A declaration can reshuffle the live queue.
	st, err := s.currentRepo.Get(ctx)
	if err == nil && st.Active() && *st.MeetID == meetID && *st.LiftID == liftID {
		if queue, qerr := s.ordering.Queue(ctx, *st.GroupID, liftID, st.Round); qerr == nil {
			s.publishQueue(ctx, m, st, queue)
		}
	}

	return nil
}

// FinalizeFromTally persists a completed ballot's outcome. Advancement is
// always a separate director NEXT.
func (s *FlowService) FinalizeFromTally(ctx context.Context, meetID, attemptID int64, outcome attempt.Status, ballot judging.Ballot) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.FinalizeFromTally")
	defer span.End()

	unlock := s.lockMeet(meetID)
	defer unlock()

	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	att, exists, err := s.attemptRepo.ByID(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("get attempt: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: attempt=%d", ErrNotFound, attemptID)
	}
	if err := attempt.ValidateFinalize(att, outcome); err != nil {
		return fmt.Errorf("%w: %v", ErrStateConflict, err)
	}

	att.Status = outcome
	if _, err := s.attemptRepo.Put(ctx, att); err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	s.tally.Clear(attemptID)

	votes := make(map[judging.Role]judging.Vote, len(ballot))
	for role, vote := range ballot {
		votes[role] = vote
	}
	s.publish(ctx, m.Code, live.KindAttemptResult, live.AttemptResult{
		AttemptID: attemptID,
		Outcome:   string(outcome),
		Votes:     votes,
	})

	s.publishRankings(ctx, m)

	return nil
}

// StartTimer arms the attempt clock. Clients render ticks locally from the
// start instant, so start/stop are the only broadcasts.
func (s *FlowService) StartTimer(ctx context.Context, meetID int64, duration time.Duration) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.StartTimer")
	defer span.End()

	unlock := s.lockMeet(meetID)
	defer unlock()

	m, st, err := s.activeState(ctx, meetID)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("%w: timer duration must be positive", ErrInvalidInput)
	}

	start := s.now().UTC()
	st.TimerStart = &start
	st.TimerDuration = duration
	if err := s.currentRepo.Put(ctx, st); err != nil {
		return fmt.Errorf("persist current state: %w", err)
	}

	s.publish(ctx, m.Code, live.KindTimerStarted, live.TimerStarted{
		StartTS:   start,
		DurationS: int(duration.Seconds()),
	})

	return nil
}

func (s *FlowService) StopTimer(ctx context.Context, meetID int64) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.StopTimer")
	defer span.End()

	unlock := s.lockMeet(meetID)
	defer unlock()

	m, st, err := s.activeState(ctx, meetID)
	if err != nil {
		return err
	}

	st.TimerStart = nil
	st.TimerDuration = 0
	if err := s.currentRepo.Put(ctx, st); err != nil {
		return fmt.Errorf("persist current state: %w", err)
	}

	s.publish(ctx, m.Code, live.KindTimerStopped, nil)

	return nil
}

// Reset returns the machine to IDLE for operator recovery.
func (s *FlowService) Reset(ctx context.Context, meetID int64) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.Reset")
	defer span.End()

	unlock := s.lockMeet(meetID)
	defer unlock()

	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	if err := s.currentRepo.Put(ctx, current.Idle()); err != nil {
		return fmt.Errorf("persist current state: %w", err)
	}
	s.tally.ClearAll()

	s.publish(ctx, m.Code, live.KindStateUpdate, live.StateUpdate{
		Phase:    string(current.PhaseIdle),
		MeetCode: m.Code,
	})

	return nil
}

// Snapshot builds the state payload a freshly joined session receives.
func (s *FlowService) Snapshot(ctx context.Context, meetID int64) (live.StateUpdate, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.FlowService.Snapshot")
	defer span.End()

	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return live.StateUpdate{}, fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return live.StateUpdate{}, fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	st, err := s.currentRepo.Get(ctx)
	if err != nil {
		return live.StateUpdate{}, fmt.Errorf("get current state: %w", err)
	}

	return s.stateUpdate(ctx, m, st), nil
}

func (s *FlowService) activeState(ctx context.Context, meetID int64) (meet.Meet, current.State, error) {
	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return meet.Meet{}, current.State{}, fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return meet.Meet{}, current.State{}, fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	st, err := s.currentRepo.Get(ctx)
	if err != nil {
		return meet.Meet{}, current.State{}, fmt.Errorf("get current state: %w", err)
	}
	if !st.Active() || *st.MeetID != meetID {
		return meet.Meet{}, current.State{}, fmt.Errorf("%w: meet is not active", ErrStateConflict)
	}

	return m, st, nil
}

func (s *FlowService) publish(ctx context.Context, meetCode string, kind live.Kind, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(ctx, live.Event{
		Kind:     kind,
		MeetCode: meetCode,
		Payload:  payload,
		At:       s.now().UTC(),
	})
}

func (s *FlowService) publishState(ctx context.Context, m meet.Meet, st current.State) {
	s.publish(ctx, m.Code, live.KindStateUpdate, s.stateUpdate(ctx, m, st))
}

// publishBetweenGroups announces the changeover when NEXT crosses a group
// or lift boundary, before the new group's first athlete is called. The
// transition is broadcast only, never persisted: a restart mid-changeover
// resumes with a re-issued NEXT from the previous active state.
func (s *FlowService) publishBetweenGroups(ctx context.Context, m meet.Meet, groupID, liftID int64) {
	out := live.StateUpdate{
		Phase:    string(current.PhaseBetweenGroups),
		MeetCode: m.Code,
	}
	if group, ok, err := s.groupingRepo.GroupByID(ctx, groupID); err == nil && ok {
		out.GroupName = group.Name
	}
	if lift, ok, err := s.meetRepo.LiftByID(ctx, liftID); err == nil && ok {
		out.LiftCode = lift.Code
	}
	s.publish(ctx, m.Code, live.KindStateUpdate, out)
}

func (s *FlowService) stateUpdate(ctx context.Context, m meet.Meet, st current.State) live.StateUpdate {
	out := live.StateUpdate{
		Phase:    string(st.Phase),
		MeetCode: m.Code,
		Round:    st.Round,
	}
	if !st.Active() {
		return out
	}

	out.RegistrationID = *st.RegistrationID

	if flight, ok, err := s.groupingRepo.FlightByID(ctx, *st.FlightID); err == nil && ok {
		out.FlightName = flight.Name
	}
	if group, ok, err := s.groupingRepo.GroupByID(ctx, *st.GroupID); err == nil && ok {
		out.GroupName = group.Name
	}
	if lift, ok, err := s.meetRepo.LiftByID(ctx, *st.LiftID); err == nil && ok {
		out.LiftCode = lift.Code
	}
	if reg, ok, err := s.regRepo.ByID(ctx, *st.RegistrationID); err == nil && ok {
		if a, ok, err := s.athleteRepo.ByID(ctx, reg.AthleteID); err == nil && ok {
			out.AthleteName = a.FullName()
		}
	}
	if atts, err := s.attemptRepo.ForRound(ctx, []int64{*st.RegistrationID}, *st.LiftID, st.Round); err == nil {
		if a, ok := atts[*st.RegistrationID]; ok {
			out.AttemptKg = a.WeightKg
		} else if st.Round == 1 {
			if openers, err := s.regRepo.Openers(ctx, *st.RegistrationID); err == nil {
				out.AttemptKg = openers[*st.LiftID]
			}
		}
	}

	return out
}

func (s *FlowService) publishQueue(ctx context.Context, m meet.Meet, st current.State, queue []QueueEntry) {
	payload := live.QueueUpdate{Round: st.Round}
	if group, ok, err := s.groupingRepo.GroupByID(ctx, *st.GroupID); err == nil && ok {
		payload.GroupName = group.Name
	}
	if lift, ok, err := s.meetRepo.LiftByID(ctx, *st.LiftID); err == nil && ok {
		payload.LiftCode = lift.Code
	}
	for _, q := range queue {
		payload.Items = append(payload.Items, live.QueueItem{
			RegistrationID: q.RegistrationID,
			AthleteName:    q.AthleteName,
			DeclaredKg:     q.DeclaredKg,
		})
	}
	s.publish(ctx, m.Code, live.KindQueueUpdate, payload)
}

func (s *FlowService) publishRankings(ctx context.Context, m meet.Meet) {
	key := fmt.Sprintf("rankings:%d", m.ID)
	rankings, err, _ := s.rankFlight.Do(key, func() (RankingSet, error) {
		return s.ranking.Rankings(ctx, m.ID)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "recompute rankings", "meet", m.Code, "error", err)
		return
	}

	payload := live.RankingUpdate{}
	for _, cat := range rankings.Categories {
		for _, row := range cat.Athletes {
			payload.Rows = append(payload.Rows, live.RankingRow{
				RegistrationID: row.RegistrationID,
				AthleteName:    row.AthleteName,
				Category:       row.CategoryName,
				Placement:      row.Placement,
				TotalKg:        row.TotalKg,
				RIS:            row.RIS,
			})
		}
	}
	for _, row := range rankings.Absolute {
		if row.CategoryName != "" {
			continue
		}
		payload.Rows = append(payload.Rows, live.RankingRow{
			RegistrationID: row.RegistrationID,
			AthleteName:    row.AthleteName,
			TotalKg:        row.TotalKg,
			RIS:            row.RIS,
		})
	}

	s.publish(ctx, m.Code, live.KindRankingUpdate, payload)
}

func mapDeclareError(err error) error {
	switch {
	case errors.Is(err, attempt.ErrOutOfRange), errors.Is(err, attempt.ErrBadWeight):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, attempt.ErrPredecessorPending), errors.Is(err, attempt.ErrAlreadyJudged):
		return fmt.Errorf("%w: %v", ErrStateConflict, err)
	default:
		return err
	}
}

func nextGroup(groups []grouping.Group, currentID int64) (grouping.Group, bool) {
	for i, g := range groups {
		if g.ID == currentID && i+1 < len(groups) {
			return groups[i+1], true
		}
	}
	return grouping.Group{}, false
}

func nextLift(lifts []meet.Lift, currentID int64) (meet.Lift, bool) {
	for i, l := range lifts {
		if l.ID == currentID && i+1 < len(lifts) {
			return lifts[i+1], true
		}
	}
	return meet.Lift{}, false
}
