// Package docstore is a thin client for the hierarchical document store
// that holds all durable state. Documents are flat field maps addressed
// by a slash-separated path; numeric indexes provide ordered range reads
// over a named field. The store is the only source of truth: there is no
// in-process cache, and all cross-document consistency rides on Apply
// being all-or-nothing.
package docstore

import "context"

// Op sets or deletes one field of one document.
type Op struct {
	Doc    string
	Field  string
	Value  string
	Delete bool
}

// IndexOp adds or removes one member of one numeric index.
type IndexOp struct {
	Index  string
	Member string
	Score  float64
	Delete bool
}

// Update is one atomic multi-path update. Every op in it is applied
// together or not at all; deleting an absent field is a no-op.
type Update struct {
	Ops     []Op
	Indexes []IndexOp
}

// Set appends a field write.
func (u *Update) Set(doc, field, value string) {
	u.Ops = append(u.Ops, Op{Doc: doc, Field: field, Value: value})
}

// Del appends a field delete.
func (u *Update) Del(doc, field string) {
	u.Ops = append(u.Ops, Op{Doc: doc, Field: field, Delete: true})
}

// IndexSet appends an index member write.
func (u *Update) IndexSet(index, member string, score float64) {
	u.Indexes = append(u.Indexes, IndexOp{Index: index, Member: member, Score: score})
}

// IndexDel appends an index member delete.
func (u *Update) IndexDel(index, member string) {
	u.Indexes = append(u.Indexes, IndexOp{Index: index, Member: member, Delete: true})
}

// RankedEntry is one member of a numeric index.
type RankedEntry struct {
	Member string
	Score  float64
}

// Client is the store interface the core components depend on.
// Implementations wrap infrastructure failures in
// domain.ErrStoreUnavailable; a missing document or field is not an
// error at this layer.
type Client interface {
	// GetField reads a single document field. The boolean reports
	// whether the field exists.
	GetField(ctx context.Context, doc, field string) (string, bool, error)

	// GetDoc reads a whole document. An absent document reads as an
	// empty map.
	GetDoc(ctx context.Context, doc string) (map[string]string, error)

	// RangeLast reads an index in ascending score order. When limit > 0
	// only the last limit entries (the highest scores) are returned,
	// still ascending; limit <= 0 returns everything.
	RangeLast(ctx context.Context, index string, limit int) ([]RankedEntry, error)

	// Apply performs one atomic multi-path update.
	Apply(ctx context.Context, u Update) error
}
