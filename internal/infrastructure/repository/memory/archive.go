package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/record"
	"github.com/streetlift/meet-engine/internal/usecase"
)

type recordKey struct {
	weightCat string
	ageCat    string
	liftCode  string
}

// Archive is the in-memory stand-in for the remote archive. InTx snapshots
// state and restores it when the callback fails, mirroring the rollback
// guarantee of the real transaction.
type Archive struct {
	mu       sync.Mutex
	athletes map[string]athlete.Athlete
	meets    map[string]usecase.ArchiveMeet
	records  map[recordKey]record.Record
	results  map[string][]usecase.ArchiveResult
}

func NewArchive() *Archive {
	return &Archive{
		athletes: make(map[string]athlete.Athlete),
		meets:    make(map[string]usecase.ArchiveMeet),
		records:  make(map[recordKey]record.Record),
		results:  make(map[string][]usecase.ArchiveResult),
	}
}

func (a *Archive) UpsertAthlete(_ context.Context, ath athlete.Athlete) error {
	if err := ath.Validate(); err != nil {
		return fmt.Errorf("invalid athlete: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.athletes[ath.CF] = ath
	return nil
}

func (a *Archive) MeetExists(_ context.Context, meetCode string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.meets[meetCode]
	return ok, nil
}

func (a *Archive) InTx(ctx context.Context, fn func(ctx context.Context, tx usecase.ArchiveTx) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	backupMeets := make(map[string]usecase.ArchiveMeet, len(a.meets))
	for k, v := range a.meets {
		backupMeets[k] = v
	}
	backupRecords := make(map[recordKey]record.Record, len(a.records))
	for k, v := range a.records {
		backupRecords[k] = v
	}
	backupResults := make(map[string][]usecase.ArchiveResult, len(a.results))
	for k, v := range a.results {
		backupResults[k] = append([]usecase.ArchiveResult(nil), v...)
	}

	if err := fn(ctx, &archiveTx{archive: a}); err != nil {
		a.meets = backupMeets
		a.records = backupRecords
		a.results = backupResults
		return err
	}
	return nil
}

// AthleteCount and friends support test assertions.
func (a *Archive) AthleteCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.athletes)
}

func (a *Archive) ResultsFor(meetCode string) []usecase.ArchiveResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]usecase.ArchiveResult(nil), a.results[meetCode]...)
}

func (a *Archive) RecordFor(weightCat, ageCat, liftCode string) (record.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[recordKey{weightCat, ageCat, liftCode}]
	return r, ok
}

func (a *Archive) SetRecord(r record.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[recordKey{r.WeightCategoryName, r.AgeCategoryName, r.LiftCode}] = r
}

type archiveTx struct {
	archive *Archive
}

func (t *archiveTx) DeleteMeet(_ context.Context, meetCode string) error {
	delete(t.archive.meets, meetCode)
	delete(t.archive.results, meetCode)
	return nil
}

func (t *archiveTx) InsertMeet(_ context.Context, m usecase.ArchiveMeet) error {
	if _, ok := t.archive.meets[m.Code]; ok {
		return fmt.Errorf("meet %q already archived", m.Code)
	}
	t.archive.meets[m.Code] = m
	return nil
}

func (t *archiveTx) Record(_ context.Context, weightCatName, ageCatName, liftCode string) (record.Record, bool, error) {
	r, ok := t.archive.records[recordKey{weightCatName, ageCatName, liftCode}]
	return r, ok, nil
}

func (t *archiveTx) PutRecord(_ context.Context, r record.Record) error {
	t.archive.records[recordKey{r.WeightCategoryName, r.AgeCategoryName, r.LiftCode}] = r
	return nil
}

func (t *archiveTx) InsertResult(_ context.Context, r usecase.ArchiveResult) error {
	t.archive.results[r.MeetCode] = append(t.archive.results[r.MeetCode], r)
	return nil
}
