package realtime

import (
	"time"

	"github.com/streetlift/meet-engine/internal/domain/live"
)

// Inbound command frames. Type selects the payload shape; the validator
// tags mirror what the director console and judge tablets send.

type commandFrame struct {
	Type    string          `json:"type" validate:"required"`
	Vote    *voteCommand    `json:"vote,omitempty"`
	Declare *declareCommand `json:"declare,omitempty"`
	Timer   *timerCommand   `json:"timer,omitempty"`
	Init    *initCommand    `json:"init,omitempty"`
}

const (
	cmdVote    = "judge.vote"
	cmdNext    = "director.next"
	cmdDeclare = "director.declare"
	cmdTimer   = "director.timer"
	cmdInit    = "director.init"
	cmdReset   = "director.reset"
)

type initCommand struct {
	FlightID int64 `json:"flight_id" validate:"required,gt=0"`
	LiftID   int64 `json:"lift_id" validate:"required,gt=0"`
}

type voteCommand struct {
	AttemptID int64  `json:"attempt_id" validate:"required,gt=0"`
	Vote      string `json:"vote" validate:"required,oneof=WHITE RED"`
}

type declareCommand struct {
	RegistrationID int64   `json:"reg_id" validate:"required,gt=0"`
	LiftID         int64   `json:"lift_id" validate:"required,gt=0"`
	AttemptNo      int     `json:"attempt_no" validate:"required,min=1,max=4"`
	WeightKg       float64 `json:"kg" validate:"required,gt=0"`
}

type timerCommand struct {
	Action    string `json:"action" validate:"required,oneof=start stop"`
	DurationS int    `json:"duration_s" validate:"omitempty,gt=0"`
}

// ackFrame answers every inbound command on the originating session only.
type ackFrame struct {
	Type      string `json:"type"`
	Command   string `json:"command"`
	OK        bool   `json:"ok"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

const frameTypeAck = "ack"

// eventFrame is the outbound envelope for broker broadcasts.
type eventFrame struct {
	Type     live.Kind `json:"type"`
	MeetCode string    `json:"meet_code"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}
