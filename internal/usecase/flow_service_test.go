package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/current"
	"github.com/streetlift/meet-engine/internal/domain/judging"
	"github.com/streetlift/meet-engine/internal/domain/live"
	"github.com/streetlift/meet-engine/internal/domain/registration"
	"github.com/streetlift/meet-engine/internal/usecase"
)

func TestFlowService_SingleAthleteCompletes(t *testing.T) {
	f := newFixture(t, "SL-2026-SOLO")
	mu := f.addLift("MU", 1)
	group := f.addGroup("M-75", 1)
	solo := f.addLifter(group, "Solo", athlete.SexMale, 74, map[int64]float64{mu.ID: 80})

	pub := &recordingPublisher{}
	flow := f.flow(pub)
	ctx := context.Background()

	st, err := flow.Initialize(ctx, f.meet.ID, f.flight.ID, mu.ID)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !st.Active() || *st.RegistrationID != solo.ID || st.Round != 1 {
		t.Fatalf("unexpected state after initialize: %+v", st)
	}

	// Attempt 1 row exists from weigh-in declaration.
	if err := flow.DeclareWeight(ctx, f.meet.ID, solo.ID, mu.ID, 1, 80); err != nil {
		t.Fatalf("declare attempt 1: %v", err)
	}

	weights := []float64{80, 85, 90}
	for round := 1; round <= 3; round++ {
		finalizeCurrent(t, flow, f, solo, mu.ID, round)

		if round < 3 {
			if err := flow.DeclareWeight(ctx, f.meet.ID, solo.ID, mu.ID, round+1, weights[round]); err != nil {
				t.Fatalf("declare attempt %d: %v", round+1, err)
			}
		}

		st, err = flow.Next(ctx, f.meet.ID)
		if err != nil {
			t.Fatalf("next after round %d: %v", round, err)
		}
		if round < 3 {
			if st.Phase != current.PhaseActive || st.Round != round+1 {
				t.Fatalf("after round %d: phase=%s round=%d, want ACTIVE round %d", round, st.Phase, st.Round, round+1)
			}
		}
	}

	if st.Phase != current.PhaseFinished {
		t.Fatalf("final phase = %s, want FINISHED", st.Phase)
	}
	if _, ok := pub.last(live.KindMeetFinished); !ok {
		t.Fatal("meet.finished was not published")
	}

	// A retried NEXT on a finished flight is a harmless no-op.
	if _, err := flow.Next(ctx, f.meet.ID); err != nil {
		t.Fatalf("next on finished flight: %v", err)
	}
}

func TestFlowService_GroupTransition(t *testing.T) {
	f := newFixture(t, "SL-2026-GROUPS")
	mu := f.addLift("MU", 1)
	g1 := f.addGroup("G1", 1)
	g2 := f.addGroup("G2", 2)

	var g1Regs []registration.Registration
	for _, spec := range []struct {
		name   string
		bw     float64
		opener float64
	}{{"Anna", 57, 40}, {"Bice", 63, 45}, {"Carla", 69, 50}} {
		reg := f.addLifter(g1, spec.name, athlete.SexFemale, spec.bw, map[int64]float64{mu.ID: spec.opener})
		g1Regs = append(g1Regs, reg)
	}

	dora := f.addLifter(g2, "Dora", athlete.SexFemale, 72, map[int64]float64{mu.ID: 42})
	f.addLifter(g2, "Elsa", athlete.SexFemale, 75, map[int64]float64{mu.ID: 48})
	f.addLifter(g2, "Febe", athlete.SexFemale, 78, map[int64]float64{mu.ID: 55})

	// G1 has fully completed its three rounds.
	for round := 1; round <= 3; round++ {
		for _, reg := range g1Regs {
			putAttempt(t, f, reg, mu.ID, round, 40+float64(round), attempt.StatusValid)
		}
	}

	last := g1Regs[len(g1Regs)-1]
	state := current.State{
		Phase:          current.PhaseActive,
		MeetID:         &f.meet.ID,
		FlightID:       &f.flight.ID,
		GroupID:        &g1.ID,
		LiftID:         &mu.ID,
		Round:          3,
		RegistrationID: &last.ID,
	}
	if err := f.currentRepo.Put(context.Background(), state); err != nil {
		t.Fatalf("seed current state: %v", err)
	}

	pub := &recordingPublisher{}
	flow := f.flow(pub)

	st, err := flow.Next(context.Background(), f.meet.ID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if *st.GroupID != g2.ID || st.Round != 1 || *st.LiftID != mu.ID {
		t.Fatalf("state after transition = group %d round %d lift %d, want group %d round 1 lift %d",
			*st.GroupID, st.Round, *st.LiftID, g2.ID, mu.ID)
	}
	if *st.RegistrationID != dora.ID {
		t.Fatalf("first of G2 = reg %d, want reg %d (lowest opener)", *st.RegistrationID, dora.ID)
	}

	// The changeover is announced before the new group's first athlete.
	transitional, active := stateUpdatePhases(t, pub)
	if transitional != 1 {
		t.Fatalf("got %d BETWEEN_GROUPS updates, want 1", transitional)
	}
	if active == 0 {
		t.Fatal("no ACTIVE state.update after the transition")
	}
	for i, ev := range pub.events {
		payload, ok := ev.Payload.(live.StateUpdate)
		if !ok {
			continue
		}
		if payload.Phase == string(current.PhaseBetweenGroups) {
			if payload.GroupName != "G2" {
				t.Fatalf("transition names group %q, want G2", payload.GroupName)
			}
			break
		}
		if payload.Phase == string(current.PhaseActive) {
			t.Fatalf("ACTIVE update at index %d arrived before the transition", i)
		}
	}
}

func stateUpdatePhases(t *testing.T, pub *recordingPublisher) (transitional, active int) {
	t.Helper()

	pub.mu.Lock()
	defer pub.mu.Unlock()

	for _, ev := range pub.events {
		payload, ok := ev.Payload.(live.StateUpdate)
		if !ok {
			continue
		}
		switch payload.Phase {
		case string(current.PhaseBetweenGroups):
			transitional++
		case string(current.PhaseActive):
			active++
		}
	}
	return transitional, active
}

func TestFlowService_LiftTransitionResetsToFirstGroup(t *testing.T) {
	f := newFixture(t, "SL-2026-LIFTS")
	mu := f.addLift("MU", 1)
	dip := f.addLift("DIP", 2)
	group := f.addGroup("G1", 1)

	reg := f.addLifter(group, "Gino", athlete.SexMale, 80, map[int64]float64{mu.ID: 80, dip.ID: 50})

	for round := 1; round <= 3; round++ {
		putAttempt(t, f, reg, mu.ID, round, 80, attempt.StatusValid)
	}

	state := current.State{
		Phase:          current.PhaseActive,
		MeetID:         &f.meet.ID,
		FlightID:       &f.flight.ID,
		GroupID:        &group.ID,
		LiftID:         &mu.ID,
		Round:          3,
		RegistrationID: &reg.ID,
	}
	if err := f.currentRepo.Put(context.Background(), state); err != nil {
		t.Fatalf("seed current state: %v", err)
	}

	pub := &recordingPublisher{}
	flow := f.flow(pub)
	st, err := flow.Next(context.Background(), f.meet.ID)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if *st.LiftID != dip.ID || st.Round != 1 || *st.GroupID != group.ID {
		t.Fatalf("state after lift change = lift %d group %d round %d, want lift %d group %d round 1",
			*st.LiftID, *st.GroupID, st.Round, dip.ID, group.ID)
	}

	transitional, _ := stateUpdatePhases(t, pub)
	if transitional != 1 {
		t.Fatalf("got %d BETWEEN_GROUPS updates on a lift change, want 1", transitional)
	}
}

func TestFlowService_NextWithoutActiveMeet(t *testing.T) {
	f := newFixture(t, "SL-2026-IDLE")
	f.addLift("MU", 1)

	flow := f.flow(&recordingPublisher{})
	if _, err := flow.Next(context.Background(), f.meet.ID); !errors.Is(err, usecase.ErrStateConflict) {
		t.Fatalf("expected usecase.ErrStateConflict, got %v", err)
	}
}

func TestFlowService_DeclareGuards(t *testing.T) {
	f := newFixture(t, "SL-2026-DECL")
	mu := f.addLift("MU", 1)
	group := f.addGroup("M-75", 1)
	reg := f.addLifter(group, "Mario", athlete.SexMale, 74, map[int64]float64{mu.ID: 80})

	flow := f.flow(&recordingPublisher{})
	ctx := context.Background()

	if err := flow.DeclareWeight(ctx, f.meet.ID, reg.ID, mu.ID, 1, 80.3); !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected usecase.ErrInvalidInput for bad quantization, got %v", err)
	}
	if err := flow.DeclareWeight(ctx, f.meet.ID, reg.ID, mu.ID, 5, 80); !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected usecase.ErrInvalidInput for attempt 5, got %v", err)
	}
	if err := flow.DeclareWeight(ctx, f.meet.ID, reg.ID, mu.ID, 2, 85); !errors.Is(err, usecase.ErrStateConflict) {
		t.Fatalf("expected usecase.ErrStateConflict declaring 2 before 1 is judged, got %v", err)
	}

	if err := flow.DeclareWeight(ctx, f.meet.ID, reg.ID, mu.ID, 1, 80); err != nil {
		t.Fatalf("declare attempt 1: %v", err)
	}

	putAttempt(t, f, reg, mu.ID, 1, 80, attempt.StatusValid)
	if err := flow.DeclareWeight(ctx, f.meet.ID, reg.ID, mu.ID, 1, 82); !errors.Is(err, usecase.ErrStateConflict) {
		t.Fatalf("expected usecase.ErrStateConflict declaring into judged attempt, got %v", err)
	}
}

func TestFlowService_EventOrderPerCommand(t *testing.T) {
	f := newFixture(t, "SL-2026-EVT")
	mu := f.addLift("MU", 1)
	group := f.addGroup("M-75", 1)
	f.addLifter(group, "Mario", athlete.SexMale, 74, map[int64]float64{mu.ID: 80})

	pub := &recordingPublisher{}
	flow := f.flow(pub)

	if _, err := flow.Initialize(context.Background(), f.meet.ID, f.flight.ID, mu.ID); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	kinds := pub.kinds()
	if len(kinds) < 2 || kinds[0] != live.KindStateUpdate || kinds[1] != live.KindQueueUpdate {
		t.Fatalf("event order = %v, want state.update then queue.update", kinds)
	}
}

func TestFlowService_FinalizePublishesResultAndRankings(t *testing.T) {
	f := newFixture(t, "SL-2026-FIN")
	mu := f.addLift("MU", 1)
	group := f.addGroup("M-75", 1)
	reg := f.addLifter(group, "Mario", athlete.SexMale, 74, map[int64]float64{mu.ID: 80})

	pub := &recordingPublisher{}
	flow := f.flow(pub)
	ctx := context.Background()

	if err := flow.DeclareWeight(ctx, f.meet.ID, reg.ID, mu.ID, 1, 80); err != nil {
		t.Fatalf("declare: %v", err)
	}
	atts, err := f.attempts.For(ctx, reg.ID, mu.ID)
	if err != nil || len(atts) != 1 {
		t.Fatalf("attempt row missing: %v %v", atts, err)
	}

	ballot := judging.Ballot{
		judging.RoleHead:  judging.VoteWhite,
		judging.RoleLeft:  judging.VoteWhite,
		judging.RoleRight: judging.VoteRed,
	}
	if err := flow.FinalizeFromTally(ctx, f.meet.ID, atts[0].ID, attempt.StatusValid, ballot); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	ev, ok := pub.last(live.KindAttemptResult)
	if !ok {
		t.Fatal("attempt.result was not published")
	}
	result := ev.Payload.(live.AttemptResult)
	if result.Outcome != string(attempt.StatusValid) || len(result.Votes) != 3 {
		t.Fatalf("attempt.result payload = %+v", result)
	}
	if _, ok := pub.last(live.KindRankingUpdate); !ok {
		t.Fatal("ranking.update was not published after finalize")
	}

	// Second finalize on the same attempt conflicts.
	if err := flow.FinalizeFromTally(ctx, f.meet.ID, atts[0].ID, attempt.StatusInvalid, ballot); !errors.Is(err, usecase.ErrStateConflict) {
		t.Fatalf("expected usecase.ErrStateConflict on double finalize, got %v", err)
	}
}

func finalizeCurrent(t *testing.T, flow *usecase.FlowService, f *fixture, reg registration.Registration, liftID int64, round int) {
	t.Helper()

	ctx := context.Background()
	atts, err := f.attempts.For(ctx, reg.ID, liftID)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	for _, a := range atts {
		if a.No == round && a.Status == attempt.StatusPending {
			ballot := judging.Ballot{
				judging.RoleHead:  judging.VoteWhite,
				judging.RoleLeft:  judging.VoteWhite,
				judging.RoleRight: judging.VoteWhite,
			}
			if err := flow.FinalizeFromTally(ctx, f.meet.ID, a.ID, attempt.StatusValid, ballot); err != nil {
				t.Fatalf("finalize round %d: %v", round, err)
			}
			return
		}
	}
	t.Fatalf("no pending attempt %d for reg %d", round, reg.ID)
}
