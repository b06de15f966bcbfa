package judging

import (
	"testing"

	"github.com/streetlift/meet-engine/internal/domain/attempt"
)

func TestBallotOutcome_Majority(t *testing.T) {
	cases := []struct {
		name   string
		ballot Ballot
		want   attempt.Status
	}{
		{"all white", Ballot{RoleHead: VoteWhite, RoleLeft: VoteWhite, RoleRight: VoteWhite}, attempt.StatusValid},
		{"two whites", Ballot{RoleHead: VoteWhite, RoleLeft: VoteWhite, RoleRight: VoteRed}, attempt.StatusValid},
		{"two reds", Ballot{RoleHead: VoteRed, RoleLeft: VoteWhite, RoleRight: VoteRed}, attempt.StatusInvalid},
		{"all red", Ballot{RoleHead: VoteRed, RoleLeft: VoteRed, RoleRight: VoteRed}, attempt.StatusInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.ballot.Outcome()
			if !ok {
				t.Fatal("expected complete ballot")
			}
			if got != tc.want {
				t.Fatalf("outcome = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestBallotOutcome_Incomplete(t *testing.T) {
	b := Ballot{RoleHead: VoteWhite, RoleLeft: VoteWhite}
	if _, ok := b.Outcome(); ok {
		t.Fatal("two votes must not produce an outcome")
	}
}

func TestParseRole(t *testing.T) {
	if _, err := ParseRole("head"); err != nil {
		t.Fatalf("parse role: %v", err)
	}
	if _, err := ParseRole("CENTER"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
