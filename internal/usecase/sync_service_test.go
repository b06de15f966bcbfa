package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/attempt"
	"github.com/streetlift/meet-engine/internal/domain/category"
	"github.com/streetlift/meet-engine/internal/domain/record"
	"github.com/streetlift/meet-engine/internal/infrastructure/repository/memory"
	"github.com/streetlift/meet-engine/internal/usecase"
)

func newSyncService(f *fixture, archive *memory.Archive) *usecase.SyncService {
	svc := usecase.NewSyncService(
		f.meets,
		f.registrations,
		f.attempts,
		f.athletes,
		f.categories,
		f.ranking(),
		archive,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	svc.now = func() time.Time { return time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestSyncService_RecordPromotion(t *testing.T) {
	f := newFixture(t, "SL-2026-SYNC")
	pu := f.addLift("PU", 1)
	group := f.addGroup("M-82", 1)

	wc := f.categories.AddWeightCategory(category.WeightCategory{Name: "-82", Sex: athlete.SexMale, MaxKg: 82})
	ac := f.categories.AddAgeCategory(category.AgeCategory{Name: "SR", MinAge: 24, MaxAge: 39})

	fabio := f.addLifter(group, "Fabio", athlete.SexMale, 80, map[int64]float64{pu.ID: 90})
	fabio.WeightCategoryID = &wc.ID
	fabio.AgeCategoryID = &ac.ID
	mustUpsertReg(t, f, fabio)

	putAttempt(t, f, fabio, pu.ID, 1, 100, attempt.StatusValid)

	archive := memory.NewArchive()
	archive.SetRecord(record.Record{
		WeightCategoryName: "-82",
		AgeCategoryName:    "SR",
		LiftCode:           "PU",
		WeightKg:           95,
		BodyweightKg:       79,
		AthleteCF:          "Old-CF",
		MeetCode:           "SL-2025-OLD",
	})

	svc := newSyncService(f, archive)
	report, err := svc.Sync(context.Background(), "SL-2026-SYNC", false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if report.RecordsPromoted != 1 {
		t.Fatalf("records promoted = %d, want 1", report.RecordsPromoted)
	}
	if report.ResultsInserted != 1 {
		t.Fatalf("results inserted = %d, want 1", report.ResultsInserted)
	}

	rec, ok := archive.RecordFor("-82", "SR", "PU")
	if !ok {
		t.Fatal("record missing after sync")
	}
	if rec.WeightKg != 100 || rec.BodyweightKg != 80 || rec.MeetCode != "SL-2026-SYNC" {
		t.Fatalf("record = %+v, want 100kg at 80bw from SL-2026-SYNC", rec)
	}
	if rec.AthleteCF != "Fabio-CF" {
		t.Fatalf("record cf = %s, want Fabio-CF", rec.AthleteCF)
	}

	results := archive.ResultsFor("SL-2026-SYNC")
	if len(results) != 1 || results[0].Placement != 1 {
		t.Fatalf("results = %+v, want sole athlete placed first", results)
	}
}

func TestSyncService_EqualRecordDoesNotPromote(t *testing.T) {
	f := newFixture(t, "SL-2026-SYNC2")
	pu := f.addLift("PU", 1)
	group := f.addGroup("M-82", 1)

	wc := f.categories.AddWeightCategory(category.WeightCategory{Name: "-82", Sex: athlete.SexMale, MaxKg: 82})
	reg := f.addLifter(group, "Paolo", athlete.SexMale, 78, nil)
	reg.WeightCategoryID = &wc.ID
	mustUpsertReg(t, f, reg)

	putAttempt(t, f, reg, pu.ID, 1, 95, attempt.StatusValid)

	archive := memory.NewArchive()
	archive.SetRecord(record.Record{
		WeightCategoryName: "-82",
		AgeCategoryName:    "OPEN",
		LiftCode:           "PU",
		WeightKg:           95,
		BodyweightKg:       81,
		AthleteCF:          "Old-CF",
	})

	report, err := newSyncService(f, archive).Sync(context.Background(), "SL-2026-SYNC2", false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.RecordsPromoted != 0 {
		t.Fatalf("equal weight promoted a record: %+v", report)
	}

	rec, _ := archive.RecordFor("-82", "OPEN", "PU")
	if rec.AthleteCF != "Old-CF" {
		t.Fatalf("record holder changed to %s on a tie", rec.AthleteCF)
	}
}

func TestSyncService_SecondSyncIsRejected(t *testing.T) {
	f := newFixture(t, "SL-2026-SYNC3")
	pu := f.addLift("PU", 1)
	group := f.addGroup("M-82", 1)
	reg := f.addLifter(group, "Remo", athlete.SexMale, 78, nil)
	putAttempt(t, f, reg, pu.ID, 1, 90, attempt.StatusValid)

	archive := memory.NewArchive()
	svc := newSyncService(f, archive)

	if _, err := svc.Sync(context.Background(), "SL-2026-SYNC3", false); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	before := archive.ResultsFor("SL-2026-SYNC3")

	_, err := svc.Sync(context.Background(), "SL-2026-SYNC3", false)
	if !errors.Is(err, usecase.ErrAlreadySynced) {
		t.Fatalf("expected usecase.ErrAlreadySynced, got %v", err)
	}
	after := archive.ResultsFor("SL-2026-SYNC3")
	if len(after) != len(before) {
		t.Fatalf("result rows changed on rejected sync: %d -> %d", len(before), len(after))
	}

	// Force re-runs the upload without duplicating rows.
	if _, err := svc.Sync(context.Background(), "SL-2026-SYNC3", true); err != nil {
		t.Fatalf("forced sync: %v", err)
	}
	if got := archive.ResultsFor("SL-2026-SYNC3"); len(got) != len(before) {
		t.Fatalf("forced sync duplicated rows: %d -> %d", len(before), len(got))
	}
}

func TestSyncService_UnknownMeet(t *testing.T) {
	f := newFixture(t, "SL-2026-SYNC4")

	_, err := newSyncService(f, memory.NewArchive()).Sync(context.Background(), "NO-SUCH-MEET", false)
	if !errors.Is(err, usecase.ErrNotFound) {
		t.Fatalf("expected usecase.ErrNotFound, got %v", err)
	}
}
