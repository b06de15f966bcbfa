package judging

import (
	"fmt"
	"strings"

	"github.com/streetlift/meet-engine/internal/domain/attempt"
)

type Role string

const (
	RoleHead  Role = "HEAD"
	RoleLeft  Role = "LEFT"
	RoleRight Role = "RIGHT"
)

type Vote string

const (
	VoteWhite Vote = "WHITE"
	VoteRed   Vote = "RED"
)

const panelSize = 3

func ParseRole(v string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(v))) {
	case RoleHead:
		return RoleHead, nil
	case RoleLeft:
		return RoleLeft, nil
	case RoleRight:
		return RoleRight, nil
	default:
		return "", fmt.Errorf("invalid judge role %q", v)
	}
}

func ParseVote(v string) (Vote, error) {
	switch Vote(strings.ToUpper(strings.TrimSpace(v))) {
	case VoteWhite:
		return VoteWhite, nil
	case VoteRed:
		return VoteRed, nil
	default:
		return "", fmt.Errorf("invalid vote %q", v)
	}
}

// Ballot holds the per-role votes cast for one attempt.
type Ballot map[Role]Vote

func (b Ballot) Complete() bool {
	return len(b) == panelSize
}

// Outcome returns the majority decision. With three roles this is total:
// at least two whites means VALID, otherwise at least two reds means INVALID.
func (b Ballot) Outcome() (attempt.Status, bool) {
	if !b.Complete() {
		return "", false
	}

	whites := 0
	for _, v := range b {
		if v == VoteWhite {
			whites++
		}
	}
	if whites >= 2 {
		return attempt.StatusValid, true
	}
	return attempt.StatusInvalid, true
}

// Clone returns an independent copy, safe to hand to broadcast payloads.
func (b Ballot) Clone() Ballot {
	out := make(Ballot, len(b))
	for role, vote := range b {
		out[role] = vote
	}
	return out
}
