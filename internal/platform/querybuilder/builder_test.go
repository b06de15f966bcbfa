package querybuilder

import (
	"reflect"
	"testing"
)

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("id", "cf").
		From("athletes").
		Where(Eq("cf", "ABC123"), IsNull("deleted_at")).
		OrderBy("id").
		Limit(1).
		ToSQL()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}

	want := "SELECT id, cf FROM athletes WHERE cf = $1 AND deleted_at IS NULL ORDER BY id LIMIT 1"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"ABC123"}) {
		t.Fatalf("args = %v", args)
	}
}

func TestSelectBuilder_InCondition(t *testing.T) {
	query, args, err := Select("*").
		From("attempts").
		Where(In("registration_id", []any{int64(1), int64(2)}), Eq("lift_id", int64(9))).
		ToSQL()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}

	want := "SELECT * FROM attempts WHERE registration_id IN ($1, $2) AND lift_id = $3"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
}

func TestSelectBuilder_EmptyInNeverMatches(t *testing.T) {
	query, _, err := Select("*").From("attempts").Where(In("id", nil)).ToSQL()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}
	if query != "SELECT * FROM attempts WHERE 1=0" {
		t.Fatalf("query = %q", query)
	}
}

func TestInsertBuilder_WithConflictSuffix(t *testing.T) {
	query, args, err := InsertInto("openers").
		Columns("registration_id", "lift_id", "weight_kg").
		Values(int64(3), int64(9), 85.0).
		Suffix("ON CONFLICT (registration_id, lift_id) DO UPDATE SET weight_kg = ?", 85.0).
		ToSQL()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}

	want := "INSERT INTO openers (registration_id, lift_id, weight_kg) VALUES ($1, $2, $3) ON CONFLICT (registration_id, lift_id) DO UPDATE SET weight_kg = $4"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %v", args)
	}
}

func TestUpdateBuilder(t *testing.T) {
	query, args, err := Update("attempts").
		Set("status", "VALID").
		Where(Eq("id", int64(42))).
		ToSQL()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}

	want := "UPDATE attempts SET status = $1 WHERE id = $2"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if !reflect.DeepEqual(args, []any{"VALID", int64(42)}) {
		t.Fatalf("args = %v", args)
	}
}

func TestDeleteBuilder_RequiresWhere(t *testing.T) {
	if _, _, err := DeleteFrom("meets").ToSQL(); err == nil {
		t.Fatal("expected error for delete without where")
	}

	query, _, err := DeleteFrom("meets").Where(Eq("code", "SL-2026")).ToSQL()
	if err != nil {
		t.Fatalf("to sql: %v", err)
	}
	if query != "DELETE FROM meets WHERE code = $1" {
		t.Fatalf("query = %q", query)
	}
}
