package realtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/current"
	"github.com/streetlift/meet-engine/internal/domain/judging"
	"github.com/streetlift/meet-engine/internal/domain/live"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	"github.com/streetlift/meet-engine/internal/platform/id"
	"github.com/streetlift/meet-engine/internal/platform/logging"
	"github.com/streetlift/meet-engine/internal/platform/token"
	"github.com/streetlift/meet-engine/internal/usecase"
)

const fanoutWorkers = 32

// CommandPort is everything the broker may ask of the flow engine.
// Dependency flows one way: the broker knows this port and the flow engine
// knows a Publisher; neither imports the other's package.
type CommandPort interface {
	Initialize(ctx context.Context, meetID, flightID, liftID int64) (current.State, error)
	Next(ctx context.Context, meetID int64) (current.State, error)
	Reset(ctx context.Context, meetID int64) error
	DeclareWeight(ctx context.Context, meetID, regID, liftID int64, attemptNo int, kg float64) error
	FinalizeFromTally(ctx context.Context, meetID, attemptID int64, outcome attempt.Status, ballot judging.Ballot) error
	StartTimer(ctx context.Context, meetID int64, duration time.Duration) error
	StopTimer(ctx context.Context, meetID int64) error
	Snapshot(ctx context.Context, meetID int64) (live.StateUpdate, error)
}

// TallyPort is the vote accumulator surface the broker feeds.
type TallyPort interface {
	RegisterVote(attemptID int64, role judging.Role, vote judging.Vote) (usecase.TallyResult, error)
	VoteCount(attemptID int64) int
}

// TokenVerifier admits judge sessions.
type TokenVerifier interface {
	Verify(raw string) (token.JudgeClaims, error)
}

type hub struct {
	meetID   int64
	sessions map[string]*Session
}

// Broker owns the realtime sessions of every meet and routes events per the
// audience matrix. It implements usecase.Publisher.
type Broker struct {
	flow     CommandPort
	tally    TallyPort
	meets    meet.Repository
	verifier TokenVerifier
	ids      id.Generator
	logger   *logging.Logger
	validate *validator.Validate
	pool     *ants.Pool

	upgrader websocket.Upgrader

	mu   sync.RWMutex
	hubs map[string]*hub
}

func NewBroker(
	flow CommandPort,
	tally TallyPort,
	meets meet.Repository,
	verifier TokenVerifier,
	ids id.Generator,
	logger *logging.Logger,
) (*Broker, error) {
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := ants.NewPool(fanoutWorkers)
	if err != nil {
		return nil, fmt.Errorf("create fanout pool: %w", err)
	}

	return &Broker{
		flow:     flow,
		tally:    tally,
		meets:    meets,
		verifier: verifier,
		ids:      ids,
		logger:   logger,
		validate: validator.New(),
		pool:     pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		hubs: make(map[string]*hub),
	}, nil
}

// Shutdown closes every session and stops the fanout pool.
func (b *Broker) Shutdown() {
	b.mu.Lock()
	for _, h := range b.hubs {
		for _, sess := range h.sessions {
			sess.close()
		}
	}
	b.hubs = make(map[string]*hub)
	b.mu.Unlock()

	b.pool.Release()
}

// HandleWS upgrades a session.join request. Query parameters: meet (code),
// role (judge|director|viewer), token (judges only).
func (b *Broker) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	meetCode := strings.TrimSpace(r.URL.Query().Get("meet"))
	role := Role(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))))

	m, exists, err := b.meets.ByCode(ctx, meetCode)
	if err != nil {
		http.Error(w, "meet lookup failed", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "unknown meet", http.StatusNotFound)
		return
	}

	sess, err := b.admit(meetCode, role, r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	sess.conn = conn

	b.register(m.ID, sess)
	defer b.Unregister(sess)

	go sess.writePump()

	// Late joiners converge from a state snapshot instead of waiting for
	// the next command.
	if snapshot, err := b.flow.Snapshot(ctx, m.ID); err == nil {
		if msg, err := encodeEvent(live.Event{
			Kind:     live.KindStateUpdate,
			MeetCode: meetCode,
			Payload:  snapshot,
			At:       time.Now().UTC(),
		}); err == nil {
			sess.enqueue(msg, false)
		}
	}

	b.readPump(ctx, m.ID, sess)
}

func (b *Broker) admit(meetCode string, role Role, rawToken string) (*Session, error) {
	sessionID, err := b.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("allocate session id: %w", err)
	}

	sess := newSession(sessionID, role, meetCode, nil)
	switch role {
	case RoleDirector, RoleViewer:
		return sess, nil
	case RoleJudge:
		claims, err := b.verifier.Verify(rawToken)
		if err != nil {
			return nil, fmt.Errorf("judge token rejected: %w", err)
		}
		if claims.MeetCode != meetCode {
			return nil, fmt.Errorf("judge token is for another meet")
		}
		judgeRole, err := judging.ParseRole(claims.Role)
		if err != nil {
			return nil, err
		}
		sess.JudgeID = claims.JudgeID
		sess.JudgeRole = judgeRole
		return sess, nil
	default:
		return nil, fmt.Errorf("unknown session role %q", role)
	}
}

func (b *Broker) register(meetID int64, sess *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.hubs[sess.MeetCode]
	if !ok {
		h = &hub{meetID: meetID, sessions: make(map[string]*Session)}
		b.hubs[sess.MeetCode] = h
	}
	h.sessions[sess.ID] = sess
}

// Unregister removes a session from its meet; safe to call twice.
func (b *Broker) Unregister(sess *Session) {
	b.mu.Lock()
	if h, ok := b.hubs[sess.MeetCode]; ok {
		delete(h.sessions, sess.ID)
		if len(h.sessions) == 0 {
			delete(b.hubs, sess.MeetCode)
		}
	}
	b.mu.Unlock()

	sess.close()
}

func (b *Broker) readPump(ctx context.Context, meetID int64, sess *Session) {
	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame commandFrame
		if err := sonic.Unmarshal(raw, &frame); err != nil {
			b.ack(sess, "", fmt.Errorf("%w: malformed frame: %v", usecase.ErrInvalidInput, err))
			continue
		}

		// Commands from a session closed mid-flight still apply; the ack
		// simply goes nowhere.
		b.ack(sess, frame.Type, b.dispatch(ctx, meetID, sess, frame))
	}
}

// dispatch enforces role authority and forwards to the command port.
func (b *Broker) dispatch(ctx context.Context, meetID int64, sess *Session, frame commandFrame) error {
	switch frame.Type {
	case cmdVote:
		if sess.Role != RoleJudge {
			return fmt.Errorf("%w: only judges vote", usecase.ErrUnauthorized)
		}
		if frame.Vote == nil {
			return fmt.Errorf("%w: vote payload is required", usecase.ErrInvalidInput)
		}
		if err := b.validate.StructCtx(ctx, frame.Vote); err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
		}
		return b.handleVote(ctx, meetID, sess, *frame.Vote)

	case cmdNext:
		if sess.Role != RoleDirector {
			return fmt.Errorf("%w: only the director advances the meet", usecase.ErrUnauthorized)
		}
		_, err := b.flow.Next(ctx, meetID)
		return err

	case cmdInit:
		if sess.Role != RoleDirector {
			return fmt.Errorf("%w: only the director initializes the meet", usecase.ErrUnauthorized)
		}
		if frame.Init == nil {
			return fmt.Errorf("%w: init payload is required", usecase.ErrInvalidInput)
		}
		if err := b.validate.StructCtx(ctx, frame.Init); err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
		}
		_, err := b.flow.Initialize(ctx, meetID, frame.Init.FlightID, frame.Init.LiftID)
		return err

	case cmdReset:
		if sess.Role != RoleDirector {
			return fmt.Errorf("%w: only the director resets the meet", usecase.ErrUnauthorized)
		}
		return b.flow.Reset(ctx, meetID)

	case cmdDeclare:
		if sess.Role != RoleDirector {
			return fmt.Errorf("%w: only the director declares weights", usecase.ErrUnauthorized)
		}
		if frame.Declare == nil {
			return fmt.Errorf("%w: declare payload is required", usecase.ErrInvalidInput)
		}
		if err := b.validate.StructCtx(ctx, frame.Declare); err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
		}
		return b.flow.DeclareWeight(ctx, meetID, frame.Declare.RegistrationID, frame.Declare.LiftID, frame.Declare.AttemptNo, frame.Declare.WeightKg)

	case cmdTimer:
		if sess.Role != RoleDirector {
			return fmt.Errorf("%w: only the director controls the timer", usecase.ErrUnauthorized)
		}
		if frame.Timer == nil {
			return fmt.Errorf("%w: timer payload is required", usecase.ErrInvalidInput)
		}
		if err := b.validate.StructCtx(ctx, frame.Timer); err != nil {
			return fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
		}
		if frame.Timer.Action == "start" {
			return b.flow.StartTimer(ctx, meetID, time.Duration(frame.Timer.DurationS)*time.Second)
		}
		return b.flow.StopTimer(ctx, meetID)

	default:
		return fmt.Errorf("%w: unknown command %q", usecase.ErrInvalidInput, frame.Type)
	}
}

func (b *Broker) handleVote(ctx context.Context, meetID int64, sess *Session, cmd voteCommand) error {
	result, err := b.tally.RegisterVote(cmd.AttemptID, sess.JudgeRole, judging.Vote(cmd.Vote))
	if err != nil {
		return err
	}

	// The running count goes to director and viewers only; other judges
	// must not see a ballot in progress.
	b.Publish(ctx, live.Event{
		Kind:     live.KindVoteCount,
		MeetCode: sess.MeetCode,
		Payload:  live.VoteCount{AttemptID: cmd.AttemptID, Count: len(result.Snapshot)},
		At:       time.Now().UTC(),
	})

	if result.Complete {
		if err := b.flow.FinalizeFromTally(ctx, meetID, cmd.AttemptID, result.Outcome, result.Snapshot); err != nil {
			return err
		}
	}

	return nil
}

// ack answers the originating session only; broadcasts happen elsewhere and
// only on success.
func (b *Broker) ack(sess *Session, command string, err error) {
	frame := ackFrame{Type: frameTypeAck, Command: command, OK: err == nil}
	if err != nil {
		frame.ErrorKind = usecase.Kind(err)
		frame.Message = err.Error()
	}

	msg, encErr := sonic.Marshal(frame)
	if encErr != nil {
		b.logger.Error("encode ack", "error", encErr)
		return
	}
	if sess.enqueue(msg, true) {
		b.Unregister(sess)
	}
}

// Publish fans an event out to the sessions its audiences select. Delivery
// is concurrent per session; a slow viewer never blocks a judge.
func (b *Broker) Publish(ctx context.Context, ev live.Event) {
	msg, err := encodeEvent(ev)
	if err != nil {
		b.logger.ErrorContext(ctx, "encode event", "kind", string(ev.Kind), "error", err)
		return
	}

	targets := b.targets(ev)
	for _, sess := range targets {
		sess := sess
		critical := isCritical(ev.Kind)
		if err := b.pool.Submit(func() {
			if sess.enqueue(msg, critical) {
				b.logger.Warn("session cannot keep up, closing",
					"session_id", sess.ID, "meet", sess.MeetCode, "role", string(sess.Role))
				b.Unregister(sess)
			}
		}); err != nil {
			// Pool saturated: deliver inline rather than drop state.
			if sess.enqueue(msg, critical) {
				b.Unregister(sess)
			}
		}
	}
}

func (b *Broker) targets(ev live.Event) []*Session {
	b.mu.RLock()
	defer b.mu.RUnlock()

	h, ok := b.hubs[ev.MeetCode]
	if !ok {
		return nil
	}

	audiences := ev.Audiences()
	out := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		if audienceMatch(audiences, sess.Role) {
			out = append(out, sess)
		}
	}
	return out
}

func audienceMatch(audiences []live.Audience, role Role) bool {
	for _, a := range audiences {
		switch a {
		case live.AudienceMeet:
			return true
		case live.AudienceDirector:
			if role == RoleDirector {
				return true
			}
		case live.AudienceJudges:
			if role == RoleJudge {
				return true
			}
		case live.AudienceViewers:
			if role == RoleViewer {
				return true
			}
		}
	}
	return false
}

// isCritical separates state-bearing events (laggards are closed and must
// reconnect for a fresh snapshot) from informational timer events, the only
// ones a session may silently miss.
func isCritical(kind live.Kind) bool {
	switch kind {
	case live.KindTimerStarted, live.KindTimerStopped:
		return false
	default:
		return true
	}
}

// encodeEvent marshals through a pooled buffer: fanout encodes once per
// event, not once per session.
func encodeEvent(ev live.Event) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(eventFrame{
		Type:     ev.Kind,
		MeetCode: ev.MeetCode,
		Payload:  ev.Payload,
		At:       ev.At,
	}); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
