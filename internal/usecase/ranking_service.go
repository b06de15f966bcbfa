package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/category"
	"github.com/streetlift/meet-engine/internal/domain/grouping"
	"github.com/streetlift/meet-engine/internal/domain/meet"
	"github.com/streetlift/meet-engine/internal/domain/registration"
)

// risParams are the logistic denominator constants of the absolute score.
type risParams struct {
	a, k, b, v, q float64
}

var risBySex = map[athlete.Sex]risParams{
	athlete.SexMale:   {a: 338, k: 549, b: 0.11354, v: 74.777, q: 0.53096},
	athlete.SexFemale: {a: 164, k: 270, b: 0.13776, v: 57.855, q: 0.37089},
}

// RIS is the bodyweight-normalized absolute score: total * 100 / d(bw, sex),
// rounded to two decimals; zero whenever total or bodyweight is zero.
func RIS(totalKg, bodyweightKg float64, sex athlete.Sex) float64 {
	if totalKg <= 0 || bodyweightKg <= 0 {
		return 0
	}
	p, ok := risBySex[sex]
	if !ok {
		return 0
	}

	d := p.a + (p.k-p.a)/(1+p.q*math.Exp(-p.b*(bodyweightKg-p.v)))
	return math.Round(totalKg*100/d*100) / 100
}

// RankedAthlete is one scored registration.
type RankedAthlete struct {
	RegistrationID int64
	AthleteID      int64
	AthleteCF      string
	AthleteName    string
	Sex            athlete.Sex
	BodyweightKg   float64
	StartOrd       int
	CategoryName   string
	BestsByLift    map[int64]float64
	TotalKg        float64
	Placement      int
	RIS            float64
}

// CategoryRanking is a placed category list; Key is "sex/weight/age" with
// OPEN standing in for an absent category.
type CategoryRanking struct {
	Key      string
	Athletes []RankedAthlete
}

type RankingSet struct {
	Categories []CategoryRanking
	// Absolute includes category-less athletes, sorted by RIS descending.
	Absolute []RankedAthlete
}

type RankingService struct {
	meetRepo     meet.Repository
	regRepo      registration.Repository
	attemptRepo  attempt.Repository
	athleteRepo  athlete.Repository
	categoryRepo category.Repository
	groupingRepo grouping.Repository
}

func NewRankingService(
	meetRepo meet.Repository,
	regRepo registration.Repository,
	attemptRepo attempt.Repository,
	athleteRepo athlete.Repository,
	categoryRepo category.Repository,
	groupingRepo grouping.Repository,
) *RankingService {
	return &RankingService{
		meetRepo:     meetRepo,
		regRepo:      regRepo,
		attemptRepo:  attemptRepo,
		athleteRepo:  athleteRepo,
		categoryRepo: categoryRepo,
		groupingRepo: groupingRepo,
	}
}

// Rankings aggregates best valid attempts into category placements and the
// absolute list for the whole meet.
func (s *RankingService) Rankings(ctx context.Context, meetID int64) (RankingSet, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RankingService.Rankings")
	defer span.End()

	m, exists, err := s.meetRepo.ByID(ctx, meetID)
	if err != nil {
		return RankingSet{}, fmt.Errorf("get meet: %w", err)
	}
	if !exists {
		return RankingSet{}, fmt.Errorf("%w: meet=%d", ErrNotFound, meetID)
	}

	lifts, err := s.meetRepo.Lifts(ctx, m.MeetTypeID)
	if err != nil {
		return RankingSet{}, fmt.Errorf("list lifts: %w", err)
	}

	regs, err := s.regRepo.ForMeet(ctx, meetID)
	if err != nil {
		return RankingSet{}, fmt.Errorf("list registrations: %w", err)
	}
	if len(regs) == 0 {
		return RankingSet{}, nil
	}

	attempts, err := s.attemptRepo.ForMeet(ctx, meetID)
	if err != nil {
		return RankingSet{}, fmt.Errorf("list attempts: %w", err)
	}

	entries, err := s.groupingRepo.EntriesForMeet(ctx, meetID)
	if err != nil {
		return RankingSet{}, fmt.Errorf("list group entries: %w", err)
	}
	startOrd := make(map[int64]int, len(entries))
	for _, e := range entries {
		startOrd[e.RegistrationID] = e.StartOrd
	}

	athleteIDs := make([]int64, 0, len(regs))
	for _, r := range regs {
		athleteIDs = append(athleteIDs, r.AthleteID)
	}
	athletes, err := s.athleteRepo.ByIDs(ctx, athleteIDs)
	if err != nil {
		return RankingSet{}, fmt.Errorf("load athletes: %w", err)
	}

	bests := bestValidByRegistration(attempts)

	rows := make([]RankedAthlete, 0, len(regs))
	for _, reg := range regs {
		a, ok := athletes[reg.AthleteID]
		if !ok {
			continue
		}

		row := RankedAthlete{
			RegistrationID: reg.ID,
			AthleteID:      a.ID,
			AthleteCF:      a.CF,
			AthleteName:    a.FullName(),
			Sex:            a.Sex,
			BodyweightKg:   reg.BodyweightKg,
			StartOrd:       startOrd[reg.ID],
			BestsByLift:    map[int64]float64{},
		}
		for _, l := range lifts {
			best := bests[reg.ID][l.ID]
			row.BestsByLift[l.ID] = best
			row.TotalKg += best
		}
		row.RIS = RIS(row.TotalKg, row.BodyweightKg, row.Sex)
		row.CategoryName, err = s.categoryLabel(ctx, reg)
		if err != nil {
			return RankingSet{}, err
		}
		rows = append(rows, row)
	}

	set := RankingSet{Absolute: make([]RankedAthlete, len(rows))}
	copy(set.Absolute, rows)
	sort.SliceStable(set.Absolute, func(i, j int) bool {
		return set.Absolute[i].RIS > set.Absolute[j].RIS
	})

	byCategory := make(map[string][]RankedAthlete)
	keys := make([]string, 0)
	for _, row := range rows {
		reg := regByID(regs, row.RegistrationID)
		if reg.WeightCategoryID == nil && reg.AgeCategoryID == nil {
			// Category-less athletes rank only in the absolute list.
			continue
		}
		key := categoryKey(row.Sex, reg.WeightCategoryID, reg.AgeCategoryID)
		if _, ok := byCategory[key]; !ok {
			keys = append(keys, key)
		}
		byCategory[key] = append(byCategory[key], row)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := byCategory[key]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].TotalKg != group[j].TotalKg {
				return group[i].TotalKg > group[j].TotalKg
			}
			if group[i].BodyweightKg != group[j].BodyweightKg {
				return group[i].BodyweightKg < group[j].BodyweightKg
			}
			return group[i].StartOrd < group[j].StartOrd
		})
		for i := range group {
			group[i].Placement = i + 1
		}
		set.Categories = append(set.Categories, CategoryRanking{Key: key, Athletes: group})
	}

	return set, nil
}

func (s *RankingService) categoryLabel(ctx context.Context, reg registration.Registration) (string, error) {
	label := ""
	if reg.WeightCategoryID != nil {
		wc, ok, err := s.categoryRepo.WeightCategoryByID(ctx, *reg.WeightCategoryID)
		if err != nil {
			return "", fmt.Errorf("get weight category: %w", err)
		}
		if ok {
			label = wc.Name
		}
	}
	if reg.AgeCategoryID != nil {
		ac, ok, err := s.categoryRepo.AgeCategoryByID(ctx, *reg.AgeCategoryID)
		if err != nil {
			return "", fmt.Errorf("get age category: %w", err)
		}
		if ok {
			if label != "" {
				label += " "
			}
			label += ac.Name
		}
	}
	return label, nil
}

func bestValidByRegistration(attempts []attempt.Attempt) map[int64]map[int64]float64 {
	out := make(map[int64]map[int64]float64)
	for _, a := range attempts {
		if a.Status != attempt.StatusValid {
			continue
		}
		perLift, ok := out[a.RegistrationID]
		if !ok {
			perLift = make(map[int64]float64)
			out[a.RegistrationID] = perLift
		}
		if a.WeightKg > perLift[a.LiftID] {
			perLift[a.LiftID] = a.WeightKg
		}
	}
	return out
}

func regByID(regs []registration.Registration, id int64) registration.Registration {
	for _, r := range regs {
		if r.ID == id {
			return r
		}
	}
	return registration.Registration{}
}

func categoryKey(sex athlete.Sex, weightCatID, ageCatID *int64) string {
	wc, ac := "OPEN", "OPEN"
	if weightCatID != nil {
		wc = fmt.Sprintf("w%d", *weightCatID)
	}
	if ageCatID != nil {
		ac = fmt.Sprintf("a%d", *ageCatID)
	}
	return fmt.Sprintf("%s/%s/%s", sex, wc, ac)
}
