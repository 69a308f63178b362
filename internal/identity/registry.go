// Package identity creates and resolves player identities. Identity is
// id-based: display names are mutable and deliberately not unique, so
// two players may share a name and keep distinct accounts.
package identity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
)

// Registry owns the users collection.
type Registry struct {
	store  docstore.Client
	cfg    *config.SocialConfig
	logger *slog.Logger

	// Overridable for tests
	newID func() string
	now   func() time.Time
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store docstore.Client, cfg *config.SocialConfig, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Create registers a new identity with a fresh id, an empty profile,
// and empty relationship sets. Duplicate display names are allowed.
func (r *Registry) Create(ctx context.Context, displayName string) (domain.IdentitySummary, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return domain.IdentitySummary{}, domain.ErrEmptyDisplayName
	}

	id := r.newID()
	doc := docstore.UserDoc(id)

	var u docstore.Update
	u.Set(doc, "id", id)
	u.Set(doc, "name", name)
	u.Set(doc, "created_at", r.now().UTC().Format(time.RFC3339Nano))
	u.Set(docstore.UserDirectory, id, name)
	if err := r.store.Apply(ctx, u); err != nil {
		return domain.IdentitySummary{}, err
	}

	r.logger.Info("identity created", "user_id", id)
	return domain.IdentitySummary{ID: id, DisplayName: name}, nil
}

// FindOrCreate returns the first identity whose display name exactly
// matches, creating one when no match exists. With duplicate names the
// match order is unspecified; first match wins. This backs the
// passwordless login flow.
func (r *Registry) FindOrCreate(ctx context.Context, displayName string) (domain.IdentitySummary, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return domain.IdentitySummary{}, domain.ErrEmptyDisplayName
	}

	dir, err := r.store.GetDoc(ctx, docstore.UserDirectory)
	if err != nil {
		return domain.IdentitySummary{}, err
	}
	for id, entry := range dir {
		if entry == name {
			return domain.IdentitySummary{ID: id, DisplayName: name}, nil
		}
	}

	return r.Create(ctx, name)
}

// Get returns an identity's public projection.
func (r *Registry) Get(ctx context.Context, id string) (domain.IdentitySummary, error) {
	if id == "" {
		return domain.IdentitySummary{}, domain.ErrMissingID
	}

	name, ok, err := r.store.GetField(ctx, docstore.UserDoc(id), "name")
	if err != nil {
		return domain.IdentitySummary{}, err
	}
	if !ok {
		return domain.IdentitySummary{}, domain.ErrIdentityNotFound
	}
	return domain.IdentitySummary{ID: id, DisplayName: name}, nil
}

// Describe returns an identity's full record, profile included.
func (r *Registry) Describe(ctx context.Context, id string) (domain.Identity, error) {
	if id == "" {
		return domain.Identity{}, domain.ErrMissingID
	}

	doc, err := r.store.GetDoc(ctx, docstore.UserDoc(id))
	if err != nil {
		return domain.Identity{}, err
	}
	if len(doc) == 0 {
		return domain.Identity{}, domain.ErrIdentityNotFound
	}

	created, _ := time.Parse(time.RFC3339Nano, doc["created_at"])
	return domain.Identity{
		ID:          id,
		DisplayName: doc["name"],
		Profile: domain.Profile{
			Bio:    doc["bio"],
			Avatar: doc["avatar"],
			Status: doc["status"],
		},
		CreatedAt: created,
	}, nil
}

// List returns every identity. A directory entry whose stored name is
// absent reads as the configured placeholder rather than failing.
func (r *Registry) List(ctx context.Context) ([]domain.IdentitySummary, error) {
	dir, err := r.store.GetDoc(ctx, docstore.UserDirectory)
	if err != nil {
		return nil, err
	}

	out := make([]domain.IdentitySummary, 0, len(dir))
	for id, name := range dir {
		if name == "" {
			name = r.cfg.PlaceholderName
		}
		out = append(out, domain.IdentitySummary{ID: id, DisplayName: name})
	}
	return out, nil
}

// SetDisplayName changes an identity's display name. The identity
// record and the directory entry are updated together.
func (r *Registry) SetDisplayName(ctx context.Context, id, displayName string) error {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return domain.ErrEmptyDisplayName
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	var u docstore.Update
	u.Set(docstore.UserDoc(id), "name", name)
	u.Set(docstore.UserDirectory, id, name)
	return r.store.Apply(ctx, u)
}

// SetProfile replaces an identity's free-form profile metadata.
func (r *Registry) SetProfile(ctx context.Context, id string, profile domain.Profile) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	doc := docstore.UserDoc(id)
	var u docstore.Update
	u.Set(doc, "bio", profile.Bio)
	u.Set(doc, "avatar", profile.Avatar)
	u.Set(doc, "status", profile.Status)
	return r.store.Apply(ctx, u)
}
