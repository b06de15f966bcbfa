package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/grouping"
	"github.com/streetlift/meet-engine/internal/domain/live"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	"github.com/streetlift/meet-engine/internal/domain/registration"
	"github.com/streetlift/meet-engine/internal/infrastructure/repository/memory"
	"github.com/streetlift/meet-engine/internal/usecase"
)

// fixture assembles an in-memory meet for service tests.
type fixture struct {
	t *testing.T

	athletes      *memory.AthleteRepository
	meets         *memory.MeetRepository
	categories    *memory.CategoryRepository
	registrations *memory.RegistrationRepository
	grouping      *memory.GroupingRepository
	attempts      *memory.AttemptRepository
	currentRepo   *memory.CurrentRepository

	meet   meet.Meet
	flight grouping.Flight

	nextCF    int
	nextStart map[int64]int
}

func newFixture(t *testing.T, meetCode string) *fixture {
	t.Helper()

	regs := memory.NewRegistrationRepository()
	f := &fixture{
		t:             t,
		athletes:      memory.NewAthleteRepository(),
		meets:         memory.NewMeetRepository(),
		categories:    memory.NewCategoryRepository(),
		registrations: regs,
		grouping:      memory.NewGroupingRepository(),
		attempts:      memory.NewAttemptRepository(regs),
		currentRepo:   memory.NewCurrentRepository(),
		nextStart:     make(map[int64]int),
	}

	f.meet = f.meets.AddMeet(meet.Meet{
		Code:       meetCode,
		Name:       "Test Meet",
		Date:       time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		Level:      meet.LevelRegional,
		Regulation: "2026",
		MeetTypeID: 1,
	})
	f.flight = f.grouping.AddFlight(grouping.Flight{MeetID: f.meet.ID, Name: "Flight A", Ord: 1})

	return f
}

func (f *fixture) addLift(code string, ord int) meet.Lift {
	return f.meets.AddLift(meet.Lift{MeetTypeID: f.meet.MeetTypeID, Code: code, Ord: ord})
}

func (f *fixture) addGroup(name string, ord int) grouping.Group {
	return f.grouping.AddGroup(grouping.Group{FlightID: f.flight.ID, Name: name, Ord: ord})
}

// addLifter registers an athlete into a group with openers per lift.
func (f *fixture) addLifter(group grouping.Group, name string, sex athlete.Sex, bodyweight float64, openers map[int64]float64) registration.Registration {
	f.t.Helper()

	f.nextCF++
	a, err := f.athletes.Upsert(context.Background(), athlete.Athlete{
		CF:         name + "-CF",
		GivenName:  name,
		FamilyName: "Rossi",
		Sex:        sex,
		BirthDate:  time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		f.t.Fatalf("seed athlete: %v", err)
	}

	reg, err := f.registrations.Upsert(context.Background(), registration.Registration{
		MeetID:       f.meet.ID,
		AthleteID:    a.ID,
		BodyweightKg: bodyweight,
	})
	if err != nil {
		f.t.Fatalf("seed registration: %v", err)
	}

	f.nextStart[group.ID]++
	f.grouping.AddEntry(grouping.Entry{
		GroupID:        group.ID,
		RegistrationID: reg.ID,
		StartOrd:       f.nextStart[group.ID],
	})

	for liftID, kg := range openers {
		if err := f.registrations.PutOpener(context.Background(), registration.Opener{
			RegistrationID: reg.ID,
			LiftID:         liftID,
			WeightKg:       kg,
		}); err != nil {
			f.t.Fatalf("seed opener: %v", err)
		}
	}

	return reg
}

func (f *fixture) ordering() *usecase.OrderingService {
	return usecase.NewOrderingService(f.grouping, f.registrations, f.attempts, f.athletes)
}

func (f *fixture) ranking() *usecase.RankingService {
	return usecase.NewRankingService(f.meets, f.registrations, f.attempts, f.athletes, f.categories, f.grouping)
}

func (f *fixture) flow(pub usecase.Publisher) *usecase.FlowService {
	return usecase.NewFlowService(
		f.currentRepo,
		f.meets,
		f.grouping,
		f.registrations,
		f.attempts,
		f.athletes,
		f.ordering(),
		f.ranking(),
		usecase.NewTallyService(),
		pub,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []live.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev live.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) kinds() []live.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]live.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (p *recordingPublisher) last(kind live.Kind) (live.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Kind == kind {
			return p.events[i], true
		}
	}
	return live.Event{}, false
}
