package progress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/identity"
)

func newTestStore(t *testing.T) (*Store, *identity.Registry, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := identity.NewRegistry(store, &cfg.Social, logger)
	return NewStore(store, &cfg.Social, logger), registry, store
}

func newTestRecord(t *testing.T, s *Store, r *identity.Registry) string {
	t.Helper()
	ctx := context.Background()
	owner, err := r.Create(ctx, "Player")
	if err != nil {
		t.Fatalf("creating owner: %v", err)
	}
	recordID, err := s.CreateRecord(ctx, owner.ID, "main save")
	if err != nil {
		t.Fatalf("creating record: %v", err)
	}
	return recordID
}

func TestCreateRecord(t *testing.T) {
	s, r, store := newTestStore(t)
	ctx := context.Background()

	owner, err := r.Create(ctx, "Player")
	if err != nil {
		t.Fatalf("creating owner: %v", err)
	}

	recordID, err := s.CreateRecord(ctx, owner.ID, "main save")
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if recordID == "" {
		t.Fatal("CreateRecord() returned empty id")
	}

	meta, err := s.Meta(ctx, recordID)
	if err != nil {
		t.Fatalf("Meta() error = %v", err)
	}
	if meta.OwnerID != owner.ID {
		t.Errorf("Meta().OwnerID = %q, want %q", meta.OwnerID, owner.ID)
	}
	if meta.DisplayName != "main save" {
		t.Errorf("Meta().DisplayName = %q, want %q", meta.DisplayName, "main save")
	}

	// The ranking field starts at zero and is ranked.
	score, err := s.GetField(ctx, recordID, "score")
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	if score.Kind != domain.KindNumber || score.Number != 0 {
		t.Errorf("initial score = %+v, want number 0", score)
	}
	ranked, err := store.RangeLast(ctx, docstore.RankIndex("score"), 0)
	if err != nil {
		t.Fatalf("RangeLast() error = %v", err)
	}
	if len(ranked) != 1 || ranked[0].Member != recordID {
		t.Errorf("rank index = %v, want new record at 0", ranked)
	}

	// The record is linked into the owner's index.
	owned, err := s.ListOwned(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListOwned() error = %v", err)
	}
	if owned[recordID] != "main save" {
		t.Errorf("ListOwned() = %v, want link to %s", owned, recordID)
	}
}

func TestCreateRecordUnknownOwner(t *testing.T) {
	s, _, _ := newTestStore(t)

	if _, err := s.CreateRecord(context.Background(), "nobody", "save"); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Errorf("CreateRecord(unknown owner) error = %v, want ErrIdentityNotFound", err)
	}
}

func TestSetAndGetField(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	tests := []struct {
		name  string
		value domain.Value
	}{
		{"lives", domain.NumberValue(3)},
		{"guild", domain.StringValue("crimson")},
		{"tutorial_done", domain.BoolValue(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SetField(ctx, recordID, tt.name, tt.value); err != nil {
				t.Fatalf("SetField() error = %v", err)
			}
			got, err := s.GetField(ctx, recordID, tt.name)
			if err != nil {
				t.Fatalf("GetField() error = %v", err)
			}
			if got != tt.value {
				t.Errorf("GetField() = %+v, want %+v", got, tt.value)
			}
		})
	}
}

func TestSetFieldValidation(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	if err := s.SetField(ctx, recordID, "  ", domain.NumberValue(1)); !errors.Is(err, domain.ErrEmptyFieldName) {
		t.Errorf("SetField(blank name) error = %v, want ErrEmptyFieldName", err)
	}
	if err := s.SetField(ctx, "missing", "score", domain.NumberValue(1)); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("SetField(missing record) error = %v, want ErrRecordNotFound", err)
	}
}

func TestFieldMayChangeKind(t *testing.T) {
	s, r, store := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	if err := s.SetField(ctx, recordID, "score", domain.NumberValue(42)); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if err := s.SetField(ctx, recordID, "score", domain.StringValue("forty-two")); err != nil {
		t.Fatalf("SetField(string over number) error = %v", err)
	}

	got, err := s.GetField(ctx, recordID, "score")
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	if got.Kind != domain.KindString || got.Str != "forty-two" {
		t.Errorf("GetField() = %+v, want string forty-two", got)
	}

	// A non-numeric value drops the record from that field's ranking.
	ranked, err := store.RangeLast(ctx, docstore.RankIndex("score"), 0)
	if err != nil {
		t.Fatalf("RangeLast() error = %v", err)
	}
	for _, entry := range ranked {
		if entry.Member == recordID {
			t.Error("record still ranked after non-numeric overwrite")
		}
	}
}

func TestGetFieldNotFound(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	if _, err := s.GetField(ctx, recordID, "nope"); !errors.Is(err, domain.ErrFieldNotFound) {
		t.Errorf("GetField(missing field) error = %v, want ErrFieldNotFound", err)
	}
	if _, err := s.GetField(ctx, "missing", "nope"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("GetField(missing record) error = %v, want ErrRecordNotFound", err)
	}
}

func TestGetRecord(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	if err := s.SetField(ctx, recordID, "level", domain.NumberValue(7)); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}

	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if len(record) != 2 { // seeded score + level
		t.Errorf("GetRecord() = %v, want 2 fields", record)
	}
	if record["level"] != domain.NumberValue(7) {
		t.Errorf("GetRecord()[level] = %+v, want number 7", record["level"])
	}

	if _, err := s.GetRecord(ctx, "missing"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("GetRecord(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestRenameField(t *testing.T) {
	s, r, store := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	if err := s.SetField(ctx, recordID, "score", domain.NumberValue(10)); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if err := s.RenameField(ctx, recordID, "score", "mainScore"); err != nil {
		t.Fatalf("RenameField() error = %v", err)
	}

	got, err := s.GetField(ctx, recordID, "mainScore")
	if err != nil {
		t.Fatalf("GetField(mainScore) error = %v", err)
	}
	if got != domain.NumberValue(10) {
		t.Errorf("GetField(mainScore) = %+v, want number 10", got)
	}
	if _, err := s.GetField(ctx, recordID, "score"); !errors.Is(err, domain.ErrFieldNotFound) {
		t.Errorf("GetField(score) after rename error = %v, want ErrFieldNotFound", err)
	}

	// The ranking moved with the value.
	oldRank, err := store.RangeLast(ctx, docstore.RankIndex("score"), 0)
	if err != nil {
		t.Fatalf("RangeLast(score) error = %v", err)
	}
	if len(oldRank) != 0 {
		t.Errorf("rank/score = %v, want empty after rename", oldRank)
	}
	newRank, err := store.RangeLast(ctx, docstore.RankIndex("mainScore"), 0)
	if err != nil {
		t.Fatalf("RangeLast(mainScore) error = %v", err)
	}
	if len(newRank) != 1 || newRank[0].Score != 10 {
		t.Errorf("rank/mainScore = %v, want record at 10", newRank)
	}
}

func TestRenameFieldToSameName(t *testing.T) {
	s, r, store := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	if err := s.SetField(ctx, recordID, "score", domain.NumberValue(10)); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if err := s.RenameField(ctx, recordID, "score", "score"); err != nil {
		t.Fatalf("RenameField(same name) error = %v", err)
	}

	got, err := s.GetField(ctx, recordID, "score")
	if err != nil {
		t.Fatalf("GetField() after same-name rename error = %v", err)
	}
	if got != domain.NumberValue(10) {
		t.Errorf("GetField() = %+v, want number 10", got)
	}

	ranked, err := store.RangeLast(ctx, docstore.RankIndex("score"), 0)
	if err != nil {
		t.Fatalf("RangeLast() error = %v", err)
	}
	if len(ranked) != 1 || ranked[0].Member != recordID || ranked[0].Score != 10 {
		t.Errorf("rank/score = %v, want record still at 10", ranked)
	}

	// A renamed missing field is still NotFound even when names match.
	if err := s.RenameField(ctx, recordID, "ghost", "ghost"); !errors.Is(err, domain.ErrFieldNotFound) {
		t.Errorf("RenameField(missing same name) error = %v, want ErrFieldNotFound", err)
	}
}

func TestRenameFieldOverwritesDestination(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	if err := s.SetField(ctx, recordID, "old", domain.NumberValue(1)); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if err := s.SetField(ctx, recordID, "new", domain.NumberValue(2)); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if err := s.RenameField(ctx, recordID, "old", "new"); err != nil {
		t.Fatalf("RenameField() error = %v", err)
	}

	got, err := s.GetField(ctx, recordID, "new")
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	if got != domain.NumberValue(1) {
		t.Errorf("GetField(new) = %+v, want last-write-wins value 1", got)
	}
}

func TestRenameMissingFieldLeavesRecordUnchanged(t *testing.T) {
	s, r, _ := newTestStore(t)
	ctx := context.Background()
	recordID := newTestRecord(t, s, r)

	before, err := s.GetRecord(ctx, recordID)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}

	if err := s.RenameField(ctx, recordID, "ghost", "shell"); !errors.Is(err, domain.ErrFieldNotFound) {
		t.Fatalf("RenameField(missing) error = %v, want ErrFieldNotFound", err)
	}
	if err := s.RenameField(ctx, "missing", "a", "b"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("RenameField(missing record) error = %v, want ErrRecordNotFound", err)
	}

	after, err := s.GetRecord(ctx, recordID)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("record changed by failed rename: before %v, after %v", before, after)
	}
}
