package usecase_test

import (
	"context"
	"math"
	"testing"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/category"
	"github.com/streetlift/meet-engine/internal/domain/registration"
	"github.com/streetlift/meet-engine/internal/usecase"
)

func TestRIS_KnownValues(t *testing.T) {
	cases := []struct {
		total float64
		bw    float64
		sex   athlete.Sex
		want  float64
	}{
		{100, 75, athlete.SexMale, 20.96},
		{60, 60, athlete.SexFemale, 24.28},
	}

	for _, tc := range cases {
		got := usecase.RIS(tc.total, tc.bw, tc.sex)
		if math.Abs(got-tc.want) > 0.5 {
			t.Fatalf("usecase.RIS(%v, %v, %s) = %v, want ~%v", tc.total, tc.bw, tc.sex, got, tc.want)
		}
	}
}

func TestRIS_ZeroInputs(t *testing.T) {
	if got := usecase.RIS(0, 75, athlete.SexMale); got != 0 {
		t.Fatalf("usecase.RIS with zero total = %v, want 0", got)
	}
	if got := usecase.RIS(100, 0, athlete.SexMale); got != 0 {
		t.Fatalf("usecase.RIS with zero bodyweight = %v, want 0", got)
	}
}

func TestRankingService_PlacementsAndTotals(t *testing.T) {
	f := newFixture(t, "SL-2026-RANK")
	mu := f.addLift("MU", 1)
	dip := f.addLift("DIP", 2)
	group := f.addGroup("M-75", 1)

	wc := f.categories.AddWeightCategory(category.WeightCategory{Name: "-75", Sex: athlete.SexMale, MinKg: 0, MaxKg: 75})

	heavy := f.addLifter(group, "Heavy", athlete.SexMale, 75, nil)
	light := f.addLifter(group, "Light", athlete.SexMale, 70, nil)

	heavy.WeightCategoryID = &wc.ID
	light.WeightCategoryID = &wc.ID
	mustUpsertReg(t, f, heavy)
	mustUpsertReg(t, f, light)

	// Both total 150; the lighter athlete places first.
	putAttempt(t, f, heavy, mu.ID, 1, 90, attempt.StatusValid)
	putAttempt(t, f, heavy, dip.ID, 1, 60, attempt.StatusValid)
	putAttempt(t, f, light, mu.ID, 1, 80, attempt.StatusValid)
	putAttempt(t, f, light, dip.ID, 1, 70, attempt.StatusValid)
	// Invalid attempts never count toward the best.
	putAttempt(t, f, light, mu.ID, 2, 95, attempt.StatusInvalid)

	set, err := f.ranking().Rankings(context.Background(), f.meet.ID)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if len(set.Categories) != 1 {
		t.Fatalf("category count = %d, want 1", len(set.Categories))
	}

	placed := set.Categories[0].Athletes
	if len(placed) != 2 {
		t.Fatalf("placed count = %d, want 2", len(placed))
	}
	if placed[0].RegistrationID != light.ID || placed[0].Placement != 1 {
		t.Fatalf("first place = reg %d (placement %d), want reg %d", placed[0].RegistrationID, placed[0].Placement, light.ID)
	}
	if placed[0].TotalKg != 150 || placed[1].TotalKg != 150 {
		t.Fatalf("totals = %v/%v, want 150/150", placed[0].TotalKg, placed[1].TotalKg)
	}
	if placed[1].Placement != 2 {
		t.Fatalf("second placement = %d, want 2", placed[1].Placement)
	}
}

func TestRankingService_CategoryLessOnlyAbsolute(t *testing.T) {
	f := newFixture(t, "SL-2026-RANK2")
	mu := f.addLift("MU", 1)
	group := f.addGroup("Open", 1)

	open := f.addLifter(group, "Nocat", athlete.SexMale, 80, nil)
	putAttempt(t, f, open, mu.ID, 1, 100, attempt.StatusValid)

	set, err := f.ranking().Rankings(context.Background(), f.meet.ID)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if len(set.Categories) != 0 {
		t.Fatalf("category-less athlete leaked into %d categories", len(set.Categories))
	}
	if len(set.Absolute) != 1 || set.Absolute[0].RegistrationID != open.ID {
		t.Fatalf("absolute list = %+v, want the single athlete", set.Absolute)
	}
	if set.Absolute[0].RIS <= 0 {
		t.Fatalf("absolute RIS = %v, want > 0", set.Absolute[0].RIS)
	}
}

func mustUpsertReg(t *testing.T, f *fixture, reg registration.Registration) {
	t.Helper()

	if _, err := f.registrations.Upsert(context.Background(), reg); err != nil {
		t.Fatalf("upsert registration: %v", err)
	}
}
