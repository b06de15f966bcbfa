package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
	"github.com/streetlift/meet-engine/internal/domain/record"
	"github.com/streetlift/meet-engine/internal/usecase"
)

func TestArchive_InTxRollsBackOnError(t *testing.T) {
	archive := NewArchive()
	archive.SetRecord(record.Record{
		WeightCategoryName: "-82",
		AgeCategoryName:    "SR",
		LiftCode:           "PU",
		WeightKg:           95,
		AthleteCF:          "Old-CF",
	})

	boom := errors.New("mid-transaction failure")
	err := archive.InTx(context.Background(), func(ctx context.Context, tx usecase.ArchiveTx) error {
		require.NoError(t, tx.InsertMeet(ctx, usecase.ArchiveMeet{Code: "SL-2026-TX", Name: "TX", Date: time.Now()}))
		require.NoError(t, tx.PutRecord(ctx, record.Record{
			WeightCategoryName: "-82",
			AgeCategoryName:    "SR",
			LiftCode:           "PU",
			WeightKg:           120,
			AthleteCF:          "New-CF",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := archive.MeetExists(context.Background(), "SL-2026-TX")
	require.NoError(t, err)
	require.False(t, exists, "failed transaction must not leave the meet behind")

	rec, ok := archive.RecordFor("-82", "SR", "PU")
	require.True(t, ok)
	require.Equal(t, "Old-CF", rec.AthleteCF, "failed transaction must not promote records")
	require.Equal(t, 95.0, rec.WeightKg)
}

func TestArchive_UpsertAthleteIsIdempotent(t *testing.T) {
	archive := NewArchive()
	a := athlete.Athlete{
		CF:         "RSSMRC95C14H501X",
		GivenName:  "Marco",
		FamilyName: "Rossi",
		Sex:        athlete.SexMale,
		BirthDate:  time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, archive.UpsertAthlete(context.Background(), a))
	require.NoError(t, archive.UpsertAthlete(context.Background(), a))
	require.Equal(t, 1, archive.AthleteCount())
}

func TestArchive_InTxCommitsOnSuccess(t *testing.T) {
	archive := NewArchive()

	err := archive.InTx(context.Background(), func(ctx context.Context, tx usecase.ArchiveTx) error {
		return tx.InsertMeet(ctx, usecase.ArchiveMeet{Code: "SL-2026-OK", Name: "OK", Date: time.Now()})
	})
	require.NoError(t, err)

	exists, err := archive.MeetExists(context.Background(), "SL-2026-OK")
	require.NoError(t, err)
	require.True(t, exists)
}
