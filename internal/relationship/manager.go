// Package relationship owns the friend-request state machine. A pending
// request is mirrored on both endpoints (requester's sent set, target's
// received set) and both mirrors are always written or cleared in one
// atomic store update, so no reader ever observes one side without the
// other.
package relationship

import (
	"context"
	"log/slog"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
)

// Resolver maps an identity id to its public projection. Satisfied by
// identity.Registry.
type Resolver interface {
	Get(ctx context.Context, id string) (domain.IdentitySummary, error)
}

// Manager operates on the relationship sub-documents of a user.
type Manager struct {
	store    docstore.Client
	resolver Resolver
	logger   *slog.Logger
}

// NewManager creates a relationship manager.
func NewManager(store docstore.Client, resolver Resolver, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

const marker = "true"

// SendRequest records a pending request from one user to another.
// Repeating a request overwrites the same entries and is harmless.
// An existing reverse request or friendship is deliberately not
// checked; callers may create redundant pending state.
func (m *Manager) SendRequest(ctx context.Context, from, to string) error {
	if from == "" || to == "" {
		return domain.ErrMissingID
	}
	if from == to {
		return domain.ErrSelfRequest
	}

	var u docstore.Update
	u.Set(docstore.SentDoc(from), to, marker)
	u.Set(docstore.ReceivedDoc(to), from, marker)
	if err := m.store.Apply(ctx, u); err != nil {
		return err
	}

	m.logger.Info("friend request sent", "from", from, "to", to)
	return nil
}

// ListReceived returns the pending requests a user has received,
// resolved to requester summaries. Requesters that no longer resolve
// are silently dropped.
func (m *Manager) ListReceived(ctx context.Context, userID string) ([]domain.IdentitySummary, error) {
	if userID == "" {
		return nil, domain.ErrMissingID
	}
	return m.resolveSet(ctx, docstore.ReceivedDoc(userID))
}

// Accept turns a pending request into a friendship: both friendship
// entries are written and both pending mirrors cleared in one atomic
// update. Accepting a request that was never sent still writes the
// friendship; the pending clears are no-ops then.
func (m *Manager) Accept(ctx context.Context, userID, requesterID string) error {
	if userID == "" || requesterID == "" {
		return domain.ErrMissingID
	}
	if userID == requesterID {
		return domain.ErrSelfRequest
	}

	var u docstore.Update
	u.Set(docstore.FriendsDoc(userID), requesterID, marker)
	u.Set(docstore.FriendsDoc(requesterID), userID, marker)
	u.Del(docstore.ReceivedDoc(userID), requesterID)
	u.Del(docstore.SentDoc(requesterID), userID)
	if err := m.store.Apply(ctx, u); err != nil {
		return err
	}

	m.logger.Info("friend request accepted", "user", userID, "requester", requesterID)
	return nil
}

// Decline clears both pending mirrors without creating a friendship.
func (m *Manager) Decline(ctx context.Context, userID, requesterID string) error {
	if userID == "" || requesterID == "" {
		return domain.ErrMissingID
	}

	var u docstore.Update
	u.Del(docstore.ReceivedDoc(userID), requesterID)
	u.Del(docstore.SentDoc(requesterID), userID)
	if err := m.store.Apply(ctx, u); err != nil {
		return err
	}

	m.logger.Info("friend request declined", "user", userID, "requester", requesterID)
	return nil
}

// ListFriends returns a user's friends, resolved to summaries.
func (m *Manager) ListFriends(ctx context.Context, userID string) ([]domain.IdentitySummary, error) {
	if userID == "" {
		return nil, domain.ErrMissingID
	}
	return m.resolveSet(ctx, docstore.FriendsDoc(userID))
}

// resolveSet reads an id set document and resolves each key through the
// registry, dropping ids that no longer exist.
func (m *Manager) resolveSet(ctx context.Context, doc string) ([]domain.IdentitySummary, error) {
	set, err := m.store.GetDoc(ctx, doc)
	if err != nil {
		return nil, err
	}

	out := make([]domain.IdentitySummary, 0, len(set))
	for id := range set {
		summary, err := m.resolver.Get(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}
