// Package reconcile merges row lists coming from independent delivery paths
// (initial fetch, periodic poll, realtime push, optimistic writes) into one
// de-duplicated, time-ordered view.
package reconcile

import (
	"slices"

	"stockton/pkg/protocol"
)

// Merge folds incoming rows into existing, keyed by id.
//
// Incoming fields overwrite existing ones; fields absent from an incoming row
// keep their existing value. Rows without an id are skipped. The result is
// stable-sorted by created_at ascending, with missing or unparsable timestamps
// first. Neither argument is modified.
func Merge(existing []protocol.Row, incoming ...protocol.Row) []protocol.Row {
	order := make([]string, 0, len(existing)+len(incoming))
	byID := make(map[string]protocol.Row, len(existing)+len(incoming))

	put := func(row protocol.Row) {
		id, ok := row.ID()
		if !ok {
			return
		}
		prev, seen := byID[id]
		if !seen {
			order = append(order, id)
			byID[id] = row.Clone()
			return
		}
		merged := prev.Clone()
		for k, v := range row {
			merged[k] = v
		}
		byID[id] = merged
	}

	for _, row := range existing {
		put(row)
	}
	for _, row := range incoming {
		put(row)
	}

	out := make([]protocol.Row, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	slices.SortStableFunc(out, func(a, b protocol.Row) int {
		return a.CreatedAt().Compare(b.CreatedAt())
	})
	return out
}

// Remove returns rows without the row whose id equals id.
func Remove(rows []protocol.Row, id string) []protocol.Row {
	out := make([]protocol.Row, 0, len(rows))
	for _, row := range rows {
		if rid, ok := row.ID(); ok && rid == id {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Apply folds a realtime change into rows. Inserts and updates merge the new
// record; deletes remove the old record's id. Unknown change types are ignored.
func Apply(rows []protocol.Row, change protocol.Change) []protocol.Row {
	switch change.Type {
	case protocol.ChangeInsert, protocol.ChangeUpdate:
		if change.Record == nil {
			return rows
		}
		return Merge(rows, change.Record)
	case protocol.ChangeDelete:
		if id, ok := change.OldRecord.ID(); ok {
			return Remove(rows, id)
		}
		return rows
	default:
		return rows
	}
}

// Index returns the position of the row with the given id, or -1.
func Index(rows []protocol.Row, id string) int {
	return slices.IndexFunc(rows, func(r protocol.Row) bool {
		rid, ok := r.ID()
		return ok && rid == id
	})
}
