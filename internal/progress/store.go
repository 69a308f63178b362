// Package progress owns per-player game state. A progress record is a
// schema-less map of scalar fields held separately from the identity and
// linked to its owner, so one player can keep several game profiles.
// Fields come into existence on first write and may change type freely.
//
// Every numeric field is mirrored into a rank index named after the
// field, maintained inside the same atomic update as the field write.
// The leaderboard projector ranges over those indexes; a record whose
// field is absent or non-numeric is simply not in the index.
package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
)

// Store owns the progress collection.
type Store struct {
	store  docstore.Client
	cfg    *config.SocialConfig
	logger *slog.Logger

	// Overridable for tests
	newID func() string
	now   func() time.Time
}

// NewStore creates a progress store backed by the given document store.
func NewStore(store docstore.Client, cfg *config.SocialConfig, logger *slog.Logger) *Store {
	return &Store{
		store:  store,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// CreateRecord creates a progress record owned by an existing identity.
// The configured ranking field starts at zero so new records appear on
// the leaderboard immediately. Returns the fresh record id.
func (s *Store) CreateRecord(ctx context.Context, ownerID, displayName string) (string, error) {
	if ownerID == "" {
		return "", domain.ErrMissingID
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "", domain.ErrEmptyDisplayName
	}

	_, ok, err := s.store.GetField(ctx, docstore.UserDoc(ownerID), "name")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrIdentityNotFound
	}

	id := s.newID()
	meta := docstore.RecordMetaDoc(id)

	var u docstore.Update
	u.Set(meta, "id", id)
	u.Set(meta, "owner", ownerID)
	u.Set(meta, "name", name)
	u.Set(meta, "created_at", s.now().UTC().Format(time.RFC3339Nano))
	u.Set(docstore.RecordFieldsDoc(id), s.cfg.RankingField, "0")
	u.Set(docstore.OwnedRecordsDoc(ownerID), id, name)
	u.IndexSet(docstore.RankIndex(s.cfg.RankingField), id, 0)
	if err := s.store.Apply(ctx, u); err != nil {
		return "", err
	}

	s.logger.Info("progress record created", "record_id", id, "owner", ownerID)
	return id, nil
}

// Meta returns a record's fixed attributes.
func (s *Store) Meta(ctx context.Context, recordID string) (domain.RecordMeta, error) {
	if recordID == "" {
		return domain.RecordMeta{}, domain.ErrMissingID
	}

	doc, err := s.store.GetDoc(ctx, docstore.RecordMetaDoc(recordID))
	if err != nil {
		return domain.RecordMeta{}, err
	}
	if len(doc) == 0 {
		return domain.RecordMeta{}, domain.ErrRecordNotFound
	}

	created, _ := time.Parse(time.RFC3339Nano, doc["created_at"])
	return domain.RecordMeta{
		ID:          recordID,
		OwnerID:     doc["owner"],
		DisplayName: doc["name"],
		CreatedAt:   created,
	}, nil
}

// ListOwned returns the ids and names of a user's progress records.
func (s *Store) ListOwned(ctx context.Context, ownerID string) (map[string]string, error) {
	if ownerID == "" {
		return nil, domain.ErrMissingID
	}
	return s.store.GetDoc(ctx, docstore.OwnedRecordsDoc(ownerID))
}

// GetField reads a single progress field.
func (s *Store) GetField(ctx context.Context, recordID, field string) (domain.Value, error) {
	if recordID == "" {
		return domain.Value{}, domain.ErrMissingID
	}

	raw, ok, err := s.store.GetField(ctx, docstore.RecordFieldsDoc(recordID), field)
	if err != nil {
		return domain.Value{}, err
	}
	if !ok {
		// Distinguish a missing record from a missing field.
		if _, err := s.Meta(ctx, recordID); err != nil {
			return domain.Value{}, err
		}
		return domain.Value{}, domain.ErrFieldNotFound
	}
	return decodeValue(raw)
}

// GetRecord reads a record's whole field map. A record that exists but
// has no fields yet reads as an empty map, not as NotFound.
func (s *Store) GetRecord(ctx context.Context, recordID string) (domain.ProgressRecord, error) {
	if _, err := s.Meta(ctx, recordID); err != nil {
		return nil, err
	}

	doc, err := s.store.GetDoc(ctx, docstore.RecordFieldsDoc(recordID))
	if err != nil {
		return nil, err
	}

	record := make(domain.ProgressRecord, len(doc))
	for field, raw := range doc {
		v, err := decodeValue(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable progress field",
				"record_id", recordID,
				"field", field,
			)
			continue
		}
		record[field] = v
	}
	return record, nil
}

// SetField writes one progress field, creating it when absent. There is
// no type check against a prior value; a field may change kind across
// writes. The field write and its rank-index upkeep go out as one
// atomic update.
func (s *Store) SetField(ctx context.Context, recordID, field string, value domain.Value) error {
	if recordID == "" {
		return domain.ErrMissingID
	}
	name := strings.TrimSpace(field)
	if name == "" {
		return domain.ErrEmptyFieldName
	}
	raw, err := encodeValue(value)
	if err != nil {
		return err
	}
	if _, err := s.Meta(ctx, recordID); err != nil {
		return err
	}

	var u docstore.Update
	u.Set(docstore.RecordFieldsDoc(recordID), name, raw)
	if value.Kind == domain.KindNumber {
		u.IndexSet(docstore.RankIndex(name), recordID, value.Number)
	} else {
		u.IndexDel(docstore.RankIndex(name), recordID)
	}
	return s.store.Apply(ctx, u)
}

// RenameField moves a field's current value to a new name in one atomic
// update. An existing value under the new name is overwritten,
// last-write-wins.
func (s *Store) RenameField(ctx context.Context, recordID, oldName, newName string) error {
	if recordID == "" {
		return domain.ErrMissingID
	}
	from := strings.TrimSpace(oldName)
	to := strings.TrimSpace(newName)
	if from == "" || to == "" {
		return domain.ErrEmptyFieldName
	}

	raw, ok, err := s.store.GetField(ctx, docstore.RecordFieldsDoc(recordID), from)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.Meta(ctx, recordID); err != nil {
			return err
		}
		return domain.ErrFieldNotFound
	}
	value, err := decodeValue(raw)
	if err != nil {
		return err
	}
	// Renaming onto itself is already the requested end state; queueing
	// set-then-delete on the same key would delete the field.
	if from == to {
		return nil
	}

	var u docstore.Update
	u.Set(docstore.RecordFieldsDoc(recordID), to, raw)
	u.Del(docstore.RecordFieldsDoc(recordID), from)
	u.IndexDel(docstore.RankIndex(from), recordID)
	if value.Kind == domain.KindNumber {
		u.IndexSet(docstore.RankIndex(to), recordID, value.Number)
	} else {
		// The destination may have ranked under a prior numeric value.
		u.IndexDel(docstore.RankIndex(to), recordID)
	}
	return s.store.Apply(ctx, u)
}

func encodeValue(v domain.Value) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", domain.ErrInvalidFieldValue
	}
	return string(data), nil
}

func decodeValue(raw string) (domain.Value, error) {
	var v domain.Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return domain.Value{}, domain.ErrInvalidFieldValue
	}
	return v, nil
}
