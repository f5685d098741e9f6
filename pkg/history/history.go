package history

import (
	"slices"

	"github.com/harrisonrobin/estima/pkg/model"
)

// Source describes where a collection keeps its observed durations.
type Source struct {
	Name        string
	Description string
	// Actual lists the candidate ground-truth properties; the first positive one wins.
	Actual []string
	// Fallback is read when no actual duration is recorded.
	Fallback string
	// Group is a relation shared by comparable records. Empty disables grouping.
	Group string
}

// Builder holds every historical record of a collection.
type Builder struct {
	records []model.HistoricalRecord
}

// New projects records into historical records, skipping those without a
// positive duration.
func New(src Source, records []model.Record) *Builder {
	b := &Builder{}
	for _, r := range records {
		if h, ok := project(src, r); ok {
			b.records = append(b.records, h)
		}
	}
	return b
}

func project(src Source, r model.Record) (model.HistoricalRecord, bool) {
	duration, ok := actual(src, r)
	if !ok {
		return model.HistoricalRecord{}, false
	}
	h := model.HistoricalRecord{
		ID:          r.ID,
		Name:        r.TextOr(src.Name, "Sans nom"),
		Description: r.TextOr(src.Description, ""),
		Duration:    duration,
	}
	if src.Group != "" {
		h.Group = sorted(r.Get(src.Group).List)
	}
	return h, true
}

func actual(src Source, r model.Record) (float64, bool) {
	for _, name := range src.Actual {
		if n, ok := r.Get(name).Float(); ok && n > 0 {
			return n, true
		}
	}
	if src.Fallback != "" {
		if n, ok := r.Get(src.Fallback).Float(); ok && n > 0 {
			return n, true
		}
	}
	return 0, false
}

func sorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

// Len is the number of usable historical records.
func (b *Builder) Len() int { return len(b.records) }

// For returns at most limit comparanda for the record identified by id,
// excluding that record. A non-nil group keeps only records linked to the
// same set of group ids.
func (b *Builder) For(id string, group []string, limit int) []model.HistoricalRecord {
	if len(group) > 0 {
		group = sorted(group)
	}
	var out []model.HistoricalRecord
	for _, h := range b.records {
		if limit > 0 && len(out) == limit {
			break
		}
		if h.ID == id {
			continue
		}
		if group != nil && !slices.Equal(h.Group, group) {
			continue
		}
		out = append(out, h)
	}
	return out
}
