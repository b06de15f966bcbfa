package live

import (
	"time"

	"github.com/streetlift/meet-engine/internal/domain/judging"
)

type Kind string

const (
	KindStateUpdate   Kind = "state.update"
	KindQueueUpdate   Kind = "queue.update"
	KindRankingUpdate Kind = "ranking.update"
	KindAttemptResult Kind = "attempt.result"
	KindWeightUpdated Kind = "weight.updated"
	KindTimerStarted  Kind = "timer.started"
	KindTimerStopped  Kind = "timer.stopped"
	KindMeetFinished  Kind = "meet.finished"
	KindVoteCount     Kind = "vote.count"
)

// Audience selects the channel set an event fans out to.
type Audience string

const (
	AudienceMeet     Audience = "meet"     // every session of the meet
	AudienceDirector Audience = "director" // director sessions only
	AudienceJudges   Audience = "judges"   // judge sessions only
	AudienceViewers  Audience = "viewers"  // viewer sessions only
)

// Event is one realtime notification. MeetCode scopes delivery; the broker
// picks channels from Kind's audience set.
type Event struct {
	Kind     Kind     `json:"kind"`
	MeetCode string   `json:"meet_code"`
	Payload  any      `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// Audiences is the event/channel matrix. Vote counts stay away from judges
// so a pending ballot cannot influence the panel.
func (e Event) Audiences() []Audience {
	switch e.Kind {
	case KindQueueUpdate:
		return []Audience{AudienceDirector}
	case KindVoteCount:
		return []Audience{AudienceDirector, AudienceViewers}
	default:
		return []Audience{AudienceMeet}
	}
}

// StateUpdate mirrors the CurrentState singleton for clients.
type StateUpdate struct {
	Phase          string `json:"phase"`
	MeetCode       string `json:"meet_code"`
	FlightName     string `json:"flight,omitempty"`
	GroupName      string `json:"group,omitempty"`
	LiftCode       string `json:"lift,omitempty"`
	Round          int    `json:"round,omitempty"`
	RegistrationID int64  `json:"registration_id,omitempty"`
	AthleteName    string `json:"athlete,omitempty"`
	AttemptKg      float64 `json:"attempt_kg,omitempty"`
}

type QueueItem struct {
	RegistrationID int64   `json:"registration_id"`
	AthleteName    string  `json:"athlete"`
	DeclaredKg     float64 `json:"declared_kg"`
}

type QueueUpdate struct {
	GroupName string      `json:"group"`
	LiftCode  string      `json:"lift"`
	Round     int         `json:"round"`
	Items     []QueueItem `json:"items"`
}

type WeightUpdated struct {
	RegistrationID int64   `json:"registration_id"`
	LiftCode       string  `json:"lift"`
	AttemptNo      int     `json:"attempt_no"`
	WeightKg       float64 `json:"weight_kg"`
}

type AttemptResult struct {
	AttemptID int64                         `json:"attempt_id"`
	Outcome   string                        `json:"outcome"`
	Votes     map[judging.Role]judging.Vote `json:"votes"`
}

type VoteCount struct {
	AttemptID int64 `json:"attempt_id"`
	Count     int   `json:"count"`
}

type TimerStarted struct {
	StartTS   time.Time `json:"start_ts"`
	DurationS int       `json:"duration_s"`
}

type RankingRow struct {
	RegistrationID int64   `json:"registration_id"`
	AthleteName    string  `json:"athlete"`
	Category       string  `json:"category,omitempty"`
	Placement      int     `json:"placement,omitempty"`
	TotalKg        float64 `json:"total_kg"`
	RIS            float64 `json:"ris"`
}

type RankingUpdate struct {
	Rows []RankingRow `json:"rankings"`
}

type MeetFinished struct {
	Reason string `json:"reason"`
}
