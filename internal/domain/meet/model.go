package meet

import (
	"fmt"
	"strings"
	"time"
)

const (
	LevelRegional = "regional"
	LevelNational = "national"
)

// Meet is a single competition, identified across databases by Code.
type Meet struct {
	ID         int64
	Code       string
	Name       string
	Date       time.Time
	Level      string
	Regulation string
	MeetTypeID int64
}

func (m Meet) Validate() error {
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("meet code is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("meet name is required")
	}
	if m.Date.IsZero() {
		return fmt.Errorf("meet date is required")
	}
	if m.MeetTypeID <= 0 {
		return fmt.Errorf("meet type is required")
	}

	return nil
}

// MeetType is a named, ordered sequence of lifts defining a format.
type MeetType struct {
	ID   int64
	Name string
}

// Lift is one discipline within a meet type (SQ, PU, DIP, MU, MP).
type Lift struct {
	ID         int64
	MeetTypeID int64
	Code       string
	Ord        int
}
