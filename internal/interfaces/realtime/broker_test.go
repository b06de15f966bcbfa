package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/current"
	"github.com/streetlift/meet-engine/internal/domain/judging"
	"github.com/streetlift/meet-engine/internal/domain/live"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	"github.com/streetlift/meet-engine/internal/infrastructure/repository/memory"
	"github.com/streetlift/meet-engine/internal/platform/id"
	"github.com/streetlift/meet-engine/internal/platform/logging"
	"github.com/streetlift/meet-engine/internal/platform/token"
	"github.com/streetlift/meet-engine/internal/usecase"
)

type fakeFlow struct {
	nextCalls     int
	declared      []declareCommand
	finalized     []int64
	timerStarts   int
	timerStops    int
	finalizeError error
}

func (f *fakeFlow) Initialize(context.Context, int64, int64, int64) (current.State, error) {
	return current.State{Phase: current.PhaseActive}, nil
}

func (f *fakeFlow) Next(context.Context, int64) (current.State, error) {
	f.nextCalls++
	return current.State{Phase: current.PhaseActive}, nil
}

func (f *fakeFlow) Reset(context.Context, int64) error {
	return nil
}

func (f *fakeFlow) DeclareWeight(_ context.Context, _ int64, regID, liftID int64, no int, kg float64) error {
	f.declared = append(f.declared, declareCommand{RegistrationID: regID, LiftID: liftID, AttemptNo: no, WeightKg: kg})
	return nil
}

func (f *fakeFlow) FinalizeFromTally(_ context.Context, _ int64, attemptID int64, _ attempt.Status, _ judging.Ballot) error {
	if f.finalizeError != nil {
		return f.finalizeError
	}
	f.finalized = append(f.finalized, attemptID)
	return nil
}

func (f *fakeFlow) StartTimer(context.Context, int64, time.Duration) error {
	f.timerStarts++
	return nil
}

func (f *fakeFlow) StopTimer(context.Context, int64) error {
	f.timerStops++
	return nil
}

func (f *fakeFlow) Snapshot(context.Context, int64) (live.StateUpdate, error) {
	return live.StateUpdate{Phase: string(current.PhaseActive)}, nil
}

type staticVerifier struct {
	claims token.JudgeClaims
	err    error
}

func (v staticVerifier) Verify(string) (token.JudgeClaims, error) {
	return v.claims, v.err
}

func newTestBroker(t *testing.T, flow CommandPort) (*Broker, *meet.Meet) {
	t.Helper()

	meets := memory.NewMeetRepository()
	m := meets.AddMeet(meet.Meet{Code: "SL-2026-WS", Name: "WS Meet", Date: time.Now(), MeetTypeID: 1})

	broker, err := NewBroker(flow, usecase.NewTallyService(), meets, staticVerifier{}, id.NewRandomGenerator(), logging.NewNop())
	if err != nil {
		t.Fatalf("new broker: %v", err)
	}
	t.Cleanup(broker.Shutdown)

	return broker, &m
}

func addSession(t *testing.T, b *Broker, meetID int64, role Role, judgeRole judging.Role) *Session {
	t.Helper()

	gen := id.NewRandomGenerator()
	sid, err := gen.NewID()
	if err != nil {
		t.Fatalf("session id: %v", err)
	}

	sess := newSession(sid, role, "SL-2026-WS", nil)
	sess.JudgeRole = judgeRole
	b.register(meetID, sess)
	return sess
}

func drain(t *testing.T, sess *Session, wait time.Duration) [][]byte {
	t.Helper()

	var out [][]byte
	deadline := time.After(wait)
	for {
		select {
		case msg := <-sess.send:
			out = append(out, msg)
		case <-deadline:
			return out
		}
	}
}

func TestBroker_RejectsDirectorCommandsFromJudges(t *testing.T) {
	flow := &fakeFlow{}
	broker, m := newTestBroker(t, flow)
	judge := addSession(t, broker, m.ID, RoleJudge, judging.RoleHead)

	err := broker.dispatch(context.Background(), m.ID, judge, commandFrame{Type: cmdNext})
	if !errors.Is(err, usecase.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if flow.nextCalls != 0 {
		t.Fatal("judge NEXT reached the flow engine")
	}

	viewer := addSession(t, broker, m.ID, RoleViewer, "")
	err = broker.dispatch(context.Background(), m.ID, viewer, commandFrame{
		Type:    cmdDeclare,
		Declare: &declareCommand{RegistrationID: 1, LiftID: 1, AttemptNo: 2, WeightKg: 90},
	})
	if !errors.Is(err, usecase.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for viewer declare, got %v", err)
	}
}

func TestBroker_DirectorCommandsReachFlow(t *testing.T) {
	flow := &fakeFlow{}
	broker, m := newTestBroker(t, flow)
	director := addSession(t, broker, m.ID, RoleDirector, "")

	ctx := context.Background()
	if err := broker.dispatch(ctx, m.ID, director, commandFrame{Type: cmdNext}); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := broker.dispatch(ctx, m.ID, director, commandFrame{
		Type:    cmdDeclare,
		Declare: &declareCommand{RegistrationID: 7, LiftID: 2, AttemptNo: 2, WeightKg: 92.5},
	}); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := broker.dispatch(ctx, m.ID, director, commandFrame{
		Type:  cmdTimer,
		Timer: &timerCommand{Action: "start", DurationS: 60},
	}); err != nil {
		t.Fatalf("timer start: %v", err)
	}

	if flow.nextCalls != 1 || len(flow.declared) != 1 || flow.timerStarts != 1 {
		t.Fatalf("flow calls = %+v", flow)
	}
	if flow.declared[0].WeightKg != 92.5 {
		t.Fatalf("declared kg = %v", flow.declared[0].WeightKg)
	}
}

func TestBroker_VoteFlowAndTallyCompletion(t *testing.T) {
	flow := &fakeFlow{}
	broker, m := newTestBroker(t, flow)

	head := addSession(t, broker, m.ID, RoleJudge, judging.RoleHead)
	left := addSession(t, broker, m.ID, RoleJudge, judging.RoleLeft)
	right := addSession(t, broker, m.ID, RoleJudge, judging.RoleRight)
	director := addSession(t, broker, m.ID, RoleDirector, "")

	ctx := context.Background()
	vote := func(sess *Session, v string) error {
		return broker.dispatch(ctx, m.ID, sess, commandFrame{
			Type: cmdVote,
			Vote: &voteCommand{AttemptID: 42, Vote: v},
		})
	}

	if err := vote(head, "WHITE"); err != nil {
		t.Fatalf("head vote: %v", err)
	}
	if err := vote(left, "WHITE"); err != nil {
		t.Fatalf("left vote: %v", err)
	}
	if len(flow.finalized) != 0 {
		t.Fatal("two votes must not finalize")
	}

	if err := vote(right, "RED"); err != nil {
		t.Fatalf("right vote: %v", err)
	}
	if len(flow.finalized) != 1 || flow.finalized[0] != 42 {
		t.Fatalf("finalized = %v, want [42]", flow.finalized)
	}

	// The running count reaches the director but never another judge.
	directorMsgs := drain(t, director, 50*time.Millisecond)
	if len(directorMsgs) == 0 {
		t.Fatal("director received no vote.count events")
	}
	judgeMsgs := drain(t, head, 50*time.Millisecond)
	for _, raw := range judgeMsgs {
		var frame eventFrame
		if err := sonic.Unmarshal(raw, &frame); err == nil && frame.Type == live.KindVoteCount {
			t.Fatal("a judge saw the running vote count")
		}
	}
}

func TestBroker_PublishRouting(t *testing.T) {
	flow := &fakeFlow{}
	broker, m := newTestBroker(t, flow)

	judge := addSession(t, broker, m.ID, RoleJudge, judging.RoleHead)
	director := addSession(t, broker, m.ID, RoleDirector, "")
	viewer := addSession(t, broker, m.ID, RoleViewer, "")

	ctx := context.Background()
	broker.Publish(ctx, live.Event{Kind: live.KindQueueUpdate, MeetCode: "SL-2026-WS", At: time.Now()})
	broker.Publish(ctx, live.Event{Kind: live.KindStateUpdate, MeetCode: "SL-2026-WS", At: time.Now()})

	directorMsgs := drain(t, director, 100*time.Millisecond)
	if len(directorMsgs) != 2 {
		t.Fatalf("director got %d events, want queue+state", len(directorMsgs))
	}
	judgeMsgs := drain(t, judge, 100*time.Millisecond)
	if len(judgeMsgs) != 1 {
		t.Fatalf("judge got %d events, want state only", len(judgeMsgs))
	}
	viewerMsgs := drain(t, viewer, 100*time.Millisecond)
	if len(viewerMsgs) != 1 {
		t.Fatalf("viewer got %d events, want state only", len(viewerMsgs))
	}
}

func TestBroker_UnregisterIsIdempotent(t *testing.T) {
	flow := &fakeFlow{}
	broker, m := newTestBroker(t, flow)
	sess := addSession(t, broker, m.ID, RoleViewer, "")

	broker.Unregister(sess)
	broker.Unregister(sess)

	broker.Publish(context.Background(), live.Event{Kind: live.KindStateUpdate, MeetCode: "SL-2026-WS", At: time.Now()})
	if msgs := drain(t, sess, 50*time.Millisecond); len(msgs) != 0 {
		t.Fatalf("closed session received %d events", len(msgs))
	}
}

func TestBroker_BackpressureClosesOnCriticalEvents(t *testing.T) {
	flow := &fakeFlow{}
	broker, m := newTestBroker(t, flow)
	sess := addSession(t, broker, m.ID, RoleViewer, "")

	// Fill the queue; nothing drains because there is no write pump.
	for i := 0; i < sendQueueSize; i++ {
		if closed := sess.enqueue([]byte("{}"), true); closed {
			t.Fatalf("queue closed early at %d", i)
		}
	}

	if closed := sess.enqueue([]byte("{}"), false); closed {
		t.Fatal("informational event must drop, not close")
	}
	if closed := sess.enqueue([]byte("{}"), true); !closed {
		t.Fatal("critical event on a full queue must request close")
	}
}

func TestBroker_AdmitJudgeChecksMeetBinding(t *testing.T) {
	meets := memory.NewMeetRepository()
	meets.AddMeet(meet.Meet{Code: "SL-2026-WS", Name: "WS Meet", Date: time.Now(), MeetTypeID: 1})

	verifier := staticVerifier{claims: token.JudgeClaims{JudgeID: "j1", MeetCode: "OTHER", Role: "HEAD"}}
	broker, err := NewBroker(&fakeFlow{}, usecase.NewTallyService(), meets, verifier, id.NewRandomGenerator(), logging.NewNop())
	if err != nil {
		t.Fatalf("new broker: %v", err)
	}
	defer broker.Shutdown()

	if _, err := broker.admit("SL-2026-WS", RoleJudge, "signed"); err == nil {
		t.Fatal("token bound to another meet must be rejected")
	}

	verifier.claims.MeetCode = "SL-2026-WS"
	broker.verifier = verifier
	sess, err := broker.admit("SL-2026-WS", RoleJudge, "signed")
	if err != nil {
		t.Fatalf("admit judge: %v", err)
	}
	if sess.JudgeRole != judging.RoleHead {
		t.Fatalf("judge role = %s", sess.JudgeRole)
	}
}
