package relationship

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/identity"
)

func newTestManager(t *testing.T) (*Manager, *identity.Registry, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := identity.NewRegistry(store, &cfg.Social, logger)
	return NewManager(store, registry, logger), registry, store
}

func mustCreate(t *testing.T, r *identity.Registry, name string) string {
	t.Helper()
	summary, err := r.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("creating %s: %v", name, err)
	}
	return summary.ID
}

func containsID(summaries []domain.IdentitySummary, id string) bool {
	for _, s := range summaries {
		if s.ID == id {
			return true
		}
	}
	return false
}

func TestRequestAcceptLifecycle(t *testing.T) {
	m, r, store := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, r, "Alice")
	b := mustCreate(t, r, "Bob")

	if err := m.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}

	received, err := m.ListReceived(ctx, b)
	if err != nil {
		t.Fatalf("ListReceived() error = %v", err)
	}
	if !containsID(received, a) {
		t.Fatalf("ListReceived(%s) = %v, want requester %s", b, received, a)
	}

	if err := m.Accept(ctx, b, a); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	for _, tc := range []struct {
		user, friend string
	}{
		{a, b},
		{b, a},
	} {
		friends, err := m.ListFriends(ctx, tc.user)
		if err != nil {
			t.Fatalf("ListFriends(%s) error = %v", tc.user, err)
		}
		if !containsID(friends, tc.friend) {
			t.Errorf("ListFriends(%s) = %v, want %s", tc.user, friends, tc.friend)
		}
	}

	// Both pending mirrors must be gone.
	received, err = m.ListReceived(ctx, b)
	if err != nil {
		t.Fatalf("ListReceived() error = %v", err)
	}
	if containsID(received, a) {
		t.Error("accepted request still pending in received set")
	}
	sent, err := store.GetDoc(ctx, docstore.SentDoc(a))
	if err != nil {
		t.Fatalf("GetDoc() error = %v", err)
	}
	if _, ok := sent[b]; ok {
		t.Error("accepted request still pending in sent set")
	}
}

func TestDeclineClearsPendingState(t *testing.T) {
	m, r, store := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, r, "Alice")
	b := mustCreate(t, r, "Bob")

	if err := m.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if err := m.Decline(ctx, b, a); err != nil {
		t.Fatalf("Decline() error = %v", err)
	}

	for _, doc := range []string{
		docstore.SentDoc(a),
		docstore.ReceivedDoc(b),
		docstore.FriendsDoc(a),
		docstore.FriendsDoc(b),
	} {
		entries, err := store.GetDoc(ctx, doc)
		if err != nil {
			t.Fatalf("GetDoc(%s) error = %v", doc, err)
		}
		if len(entries) != 0 {
			t.Errorf("%s = %v, want empty after decline", doc, entries)
		}
	}
}

func TestSendRequestValidation(t *testing.T) {
	m, r, _ := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, r, "Alice")

	tests := []struct {
		name     string
		from, to string
		want     error
	}{
		{"self request", a, a, domain.ErrSelfRequest},
		{"missing from", "", a, domain.ErrMissingID},
		{"missing to", a, "", domain.ErrMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.SendRequest(ctx, tt.from, tt.to); !errors.Is(err, tt.want) {
				t.Errorf("SendRequest(%q, %q) error = %v, want %v", tt.from, tt.to, err, tt.want)
			}
		})
	}
}

func TestSendRequestIsIdempotent(t *testing.T) {
	m, r, _ := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, r, "Alice")
	b := mustCreate(t, r, "Bob")

	if err := m.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if err := m.SendRequest(ctx, a, b); err != nil {
		t.Fatalf("repeated SendRequest() error = %v", err)
	}

	received, err := m.ListReceived(ctx, b)
	if err != nil {
		t.Fatalf("ListReceived() error = %v", err)
	}
	if len(received) != 1 {
		t.Errorf("ListReceived() = %v, want exactly one entry", received)
	}
}

func TestAcceptWithoutRequestStillBefriends(t *testing.T) {
	m, r, _ := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, r, "Alice")
	b := mustCreate(t, r, "Bob")

	// Permissive by design: the friendship is written and the pending
	// clears are no-ops.
	if err := m.Accept(ctx, b, a); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	friends, err := m.ListFriends(ctx, a)
	if err != nil {
		t.Fatalf("ListFriends() error = %v", err)
	}
	if !containsID(friends, b) {
		t.Errorf("ListFriends(%s) = %v, want %s", a, friends, b)
	}
}

func TestListDropsUnresolvableIDs(t *testing.T) {
	m, r, store := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, r, "Alice")

	// A request from an id that never resolved.
	var u docstore.Update
	u.Set(docstore.ReceivedDoc(a), "vanished", "true")
	if err := store.Apply(ctx, u); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	received, err := m.ListReceived(ctx, a)
	if err != nil {
		t.Fatalf("ListReceived() error = %v", err)
	}
	if len(received) != 0 {
		t.Errorf("ListReceived() = %v, want unresolvable requester dropped", received)
	}
}

func TestCrossingRequestsConverge(t *testing.T) {
	m, r, store := newTestManager(t)
	ctx := context.Background()

	a := mustCreate(t, r, "Alice")
	b := mustCreate(t, r, "Bob")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := m.SendRequest(ctx, a, b); err != nil {
			t.Errorf("SendRequest(a, b) error = %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := m.SendRequest(ctx, b, a); err != nil {
			t.Errorf("SendRequest(b, a) error = %v", err)
		}
	}()
	wg.Wait()

	if err := m.Accept(ctx, b, a); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if err := m.Accept(ctx, a, b); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	for _, tc := range []struct {
		user, friend string
	}{
		{a, b},
		{b, a},
	} {
		friends, err := m.ListFriends(ctx, tc.user)
		if err != nil {
			t.Fatalf("ListFriends(%s) error = %v", tc.user, err)
		}
		if !containsID(friends, tc.friend) {
			t.Errorf("ListFriends(%s) = %v, want %s", tc.user, friends, tc.friend)
		}
	}

	// No dangling pending entries for the pair in either direction.
	for _, doc := range []string{
		docstore.SentDoc(a), docstore.SentDoc(b),
		docstore.ReceivedDoc(a), docstore.ReceivedDoc(b),
	} {
		entries, err := store.GetDoc(ctx, doc)
		if err != nil {
			t.Fatalf("GetDoc(%s) error = %v", doc, err)
		}
		if len(entries) != 0 {
			t.Errorf("%s = %v, want no pending entries", doc, entries)
		}
	}
}
