package usecase

import (
	"fmt"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/judging"
)

// TallyService accumulates judge votes per attempt, in memory only. A
// restart loses in-flight ballots: finalized attempts are already persisted
// and a judge can simply re-submit.
type TallyService struct {
	mu      sync.Mutex
	ballots map[int64]judging.Ballot
}

// TallyResult reports the ballot after one vote lands.
type TallyResult struct {
	Complete bool
	Outcome  attempt.Status
	Snapshot judging.Ballot
}

func NewTallyService() *TallyService {
	return &TallyService{ballots: make(map[int64]judging.Ballot)}
}

// RegisterVote stores or overwrites one role's vote. The last writer wins,
// which doubles as the correction mechanism for a mis-tap.
func (s *TallyService) RegisterVote(attemptID int64, role judging.Role, vote judging.Vote) (TallyResult, error) {
	role, err := judging.ParseRole(string(role))
	if err != nil {
		return TallyResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	vote, err = judging.ParseVote(string(vote))
	if err != nil {
		return TallyResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if attemptID <= 0 {
		return TallyResult{}, fmt.Errorf("%w: attempt id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ballot, ok := s.ballots[attemptID]
	if !ok {
		ballot = make(judging.Ballot, 3)
		s.ballots[attemptID] = ballot
	}
	ballot[role] = vote

	result := TallyResult{Snapshot: ballot.Clone()}
	if outcome, done := ballot.Outcome(); done {
		result.Complete = true
		result.Outcome = outcome
	}

	return result, nil
}

func (s *TallyService) HasVoted(attemptID int64, role judging.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ballots[attemptID][role]
	return ok
}

func (s *TallyService) VoteCount(attemptID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ballots[attemptID])
}

func (s *TallyService) Clear(attemptID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ballots, attemptID)
}

func (s *TallyService) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ballots = make(map[int64]judging.Ballot)
}

// PendingAttempts lists attempts with a partial ballot, so the director UI
// can re-prompt judges after a restart or reconnect.
func (s *TallyService) PendingAttempts() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, 0, len(s.ballots))
	for id := range s.ballots {
		out = append(out, id)
	}
	return out
}
