package vehicle

import (
	"context"
	"testing"
	"time"

	commondb "github.com/CredencialAcceso/CredencialAcceso/internal/common/db"
	"github.com/CredencialAcceso/CredencialAcceso/internal/testutil"
	"github.com/google/uuid"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	return NewRepo(testutil.OpenTestDB(t, &Vehicle{}))
}

func TestNormalizePPU(t *testing.T) {
	if got := NormalizePPU(" ab12cd "); got != "AB12CD" {
		t.Fatalf("NormalizePPU = %q", got)
	}
	// idempotent
	if NormalizePPU(NormalizePPU("ab12cd")) != NormalizePPU("ab12cd") {
		t.Fatalf("NormalizePPU not idempotent")
	}
}

func TestCreateBatchAndListOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	personnelID := uuid.NewString()

	batch := []Vehicle{
		{ID: uuid.NewString(), PersonnelID: personnelID, PPU: "XY12AB"},
		{ID: uuid.NewString(), PersonnelID: personnelID, PPU: "ZT99QQ"},
	}
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	vs, err := repo.ListByPersonnel(ctx, personnelID)
	if err != nil {
		t.Fatalf("ListByPersonnel: %v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(vs))
	}
	if vs[0].PPU != "XY12AB" || vs[1].PPU != "ZT99QQ" {
		t.Fatalf("expected insertion order, got %s, %s", vs[0].PPU, vs[1].PPU)
	}
	if vs[0].Seq >= vs[1].Seq {
		t.Fatalf("seq not strictly increasing: %d, %d", vs[0].Seq, vs[1].Seq)
	}
}

// Rows from one batch share a created_at value, so that column cannot
// order them. The seq column must keep the slice order even then.
func TestBatchOrderSurvivesTimestampTies(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	personnelID := uuid.NewString()

	now := time.Now()
	batch := []Vehicle{
		{ID: uuid.NewString(), PersonnelID: personnelID, PPU: "ZZ99ZZ", CreatedAt: now},
		{ID: uuid.NewString(), PersonnelID: personnelID, PPU: "AA11AA", CreatedAt: now},
		{ID: uuid.NewString(), PersonnelID: personnelID, PPU: "MM55MM", CreatedAt: now},
	}
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	vs, err := repo.ListByPersonnel(ctx, personnelID)
	if err != nil {
		t.Fatalf("ListByPersonnel: %v", err)
	}
	want := []string{"ZZ99ZZ", "AA11AA", "MM55MM"}
	for i := range want {
		if vs[i].PPU != want[i] {
			t.Fatalf("position %d = %s, want %s", i, vs[i].PPU, want[i])
		}
	}

	grouped, err := repo.ListByPersonnelIDs(ctx, []string{personnelID})
	if err != nil {
		t.Fatalf("ListByPersonnelIDs: %v", err)
	}
	for i := range want {
		if grouped[personnelID][i].PPU != want[i] {
			t.Fatalf("grouped position %d = %s, want %s", i, grouped[personnelID][i].PPU, want[i])
		}
	}
}

func TestListByPersonnelIDsGrouping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, b := uuid.NewString(), uuid.NewString()
	rows := []Vehicle{
		{ID: uuid.NewString(), PersonnelID: a, PPU: "AB1234"},
		{ID: uuid.NewString(), PersonnelID: b, PPU: "CD5678"},
		{ID: uuid.NewString(), PersonnelID: a, PPU: "EF9012"},
	}
	if err := repo.CreateBatch(ctx, rows); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	grouped, err := repo.ListByPersonnelIDs(ctx, []string{a, b, uuid.NewString()})
	if err != nil {
		t.Fatalf("ListByPersonnelIDs: %v", err)
	}
	if len(grouped[a]) != 2 || len(grouped[b]) != 1 {
		t.Fatalf("unexpected grouping: a=%d b=%d", len(grouped[a]), len(grouped[b]))
	}

	empty, err := repo.ListByPersonnelIDs(ctx, nil)
	if err != nil {
		t.Fatalf("ListByPersonnelIDs(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty map for no ids")
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	personnelID := uuid.NewString()

	v := &Vehicle{ID: uuid.NewString(), PersonnelID: personnelID, PPU: "AB1234"}
	if err := repo.Create(ctx, v); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Delete(ctx, v.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, v.ID); !commondb.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestDeleteByPersonnel(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	personnelID := uuid.NewString()

	for _, ppu := range []string{"AB1234", "CD5678", "EF9012"} {
		if err := repo.Create(ctx, &Vehicle{ID: uuid.NewString(), PersonnelID: personnelID, PPU: ppu}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if err := repo.DeleteByPersonnel(ctx, personnelID); err != nil {
		t.Fatalf("DeleteByPersonnel: %v", err)
	}
	total, err := repo.CountByPersonnel(ctx, personnelID)
	if err != nil {
		t.Fatalf("CountByPersonnel: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 vehicles after cascade, got %d", total)
	}

	// deleting for a person with no vehicles is not an error
	if err := repo.DeleteByPersonnel(ctx, uuid.NewString()); err != nil {
		t.Fatalf("DeleteByPersonnel(empty): %v", err)
	}
}
