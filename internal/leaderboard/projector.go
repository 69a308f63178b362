// Package leaderboard derives ranked views over progress records. There
// is no persisted ranking: every query re-reads the rank index and joins
// each entry against its record and owner at read time, so results may
// race with concurrent writers.
package leaderboard

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
)

// Projector computes leaderboards on demand.
type Projector struct {
	store  docstore.Client
	cfg    *config.SocialConfig
	logger *slog.Logger
}

// NewProjector creates a leaderboard projector.
func NewProjector(store docstore.Client, cfg *config.SocialConfig, logger *slog.Logger) *Projector {
	return &Projector{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Top returns up to limit entries ranked descending by the named field.
// An empty field selects the configured ranking field; limit is
// defaulted and clamped from config. Records without a current numeric
// value for the field are not in the index and therefore not ranked.
// Entries whose record or owner no longer resolves are dropped.
func (p *Projector) Top(ctx context.Context, field string, limit int) ([]domain.LeaderboardEntry, error) {
	if field == "" {
		field = p.cfg.RankingField
	}
	if limit <= 0 {
		limit = p.cfg.DefaultLimit
	}
	if limit > p.cfg.MaxLimit {
		limit = p.cfg.MaxLimit
	}

	// The index reads ascending with last-N semantics, so the limit is
	// applied before the reversal: this yields the true top N rather
	// than the top N of an already-truncated prefix.
	ranked, err := p.store.RangeLast(ctx, docstore.RankIndex(field), limit)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i := len(ranked) - 1; i >= 0; i-- {
		entry, ok, err := p.project(ctx, ranked[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		entry.Rank = int64(len(entries) + 1)
		entries = append(entries, entry)
	}
	return entries, nil
}

// Scores returns the raw ranked members of a field's index, ascending.
// Used by the snapshot worker, which does not need the identity join.
func (p *Projector) Scores(ctx context.Context, field string) ([]docstore.RankedEntry, error) {
	if field == "" {
		field = p.cfg.RankingField
	}
	return p.store.RangeLast(ctx, docstore.RankIndex(field), 0)
}

// project joins one ranked index member with its record and owner.
func (p *Projector) project(ctx context.Context, ranked docstore.RankedEntry) (domain.LeaderboardEntry, bool, error) {
	meta, err := p.store.GetDoc(ctx, docstore.RecordMetaDoc(ranked.Member))
	if err != nil {
		return domain.LeaderboardEntry{}, false, err
	}
	if len(meta) == 0 {
		return domain.LeaderboardEntry{}, false, nil
	}

	owner, err := p.store.GetDoc(ctx, docstore.UserDoc(meta["owner"]))
	if err != nil {
		return domain.LeaderboardEntry{}, false, err
	}
	if len(owner) == 0 {
		return domain.LeaderboardEntry{}, false, nil
	}

	fieldsDoc, err := p.store.GetDoc(ctx, docstore.RecordFieldsDoc(ranked.Member))
	if err != nil {
		return domain.LeaderboardEntry{}, false, err
	}
	fields := make(domain.ProgressRecord, len(fieldsDoc))
	for name, raw := range fieldsDoc {
		var v domain.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			p.logger.Warn("skipping undecodable progress field",
				"record_id", ranked.Member,
				"field", name,
			)
			continue
		}
		fields[name] = v
	}

	displayName := owner["name"]
	if displayName == "" {
		displayName = p.cfg.PlaceholderName
	}

	return domain.LeaderboardEntry{
		RecordID:    ranked.Member,
		OwnerID:     meta["owner"],
		DisplayName: displayName,
		Profile: domain.Profile{
			Bio:    owner["bio"],
			Avatar: owner["avatar"],
			Status: owner["status"],
		},
		Score:  ranked.Score,
		Fields: fields,
	}, true, nil
}
