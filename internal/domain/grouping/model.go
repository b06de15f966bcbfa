package grouping

import "fmt"

// Flight is an ordered partition of a meet (e.g. morning/afternoon).
type Flight struct {
	ID     int64
	MeetID int64
	Name   string
	Ord    int
}

// Group is an ordered partition of a flight, typically by weight class.
type Group struct {
	ID       int64
	FlightID int64
	Name     string
	Ord      int
}

// Entry pins a registration to a group with its nomination order.
// StartOrd is only used as the last-resort tiebreak.
type Entry struct {
	ID             int64
	GroupID        int64
	RegistrationID int64
	StartOrd       int
}

func (e Entry) Validate() error {
	if e.GroupID <= 0 || e.RegistrationID <= 0 {
		return fmt.Errorf("group entry requires group and registration")
	}
	if e.StartOrd < 0 {
		return fmt.Errorf("group entry start order cannot be negative")
	}

	return nil
}
