package current

import "time"

type Phase string

const (
	PhaseIdle          Phase = "IDLE"
	PhaseActive        Phase = "ACTIVE"
	PhaseBetweenGroups Phase = "BETWEEN_GROUPS"
	PhaseFinished      Phase = "FINISHED"
)

// State is the process-wide singleton naming what is happening on the
// platform right now. The meet, flight, group, lift and registration pointers
// are nil together when idle and set together when active; FINISHED keeps the
// last position. TimerStart is set only by the timer commands.
type State struct {
	Phase          Phase
	MeetID         *int64
	FlightID       *int64
	GroupID        *int64
	LiftID         *int64
	Round          int
	RegistrationID *int64
	TimerStart     *time.Time
	TimerDuration  time.Duration
}

func Idle() State {
	return State{Phase: PhaseIdle}
}

func (s State) Active() bool {
	return s.Phase == PhaseActive &&
		s.MeetID != nil && s.FlightID != nil && s.GroupID != nil &&
		s.LiftID != nil && s.RegistrationID != nil && s.Round >= 1
}
