package source

import (
	"fmt"
	"strings"
)

// Registry is an ordered, id-indexed outlet table.
type Registry struct {
	order []string
	byID  map[string]Source
}

// NewRegistry validates sources and indexes them by lowercase id. Later
// entries with the same id replace earlier ones in place.
func NewRegistry(sources []Source) (*Registry, error) {
	r := &Registry{byID: make(map[string]Source, len(sources))}
	for _, s := range sources {
		s.ID = strings.ToLower(strings.TrimSpace(s.ID))
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, ok := r.byID[s.ID]; !ok {
			r.order = append(r.order, s.ID)
		}
		r.byID[s.ID] = s
	}
	if len(r.order) == 0 {
		return nil, fmt.Errorf("registry: at least one source is required")
	}
	return r, nil
}

// Merge overlays overrides on base by id. Fields left empty in an override
// keep the base value, so a config can replace just the feeds of an outlet.
func Merge(base, overrides []Source) []Source {
	out := make([]Source, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))
	for _, s := range base {
		index[strings.ToLower(s.ID)] = len(out)
		out = append(out, s)
	}
	for _, o := range overrides {
		id := strings.ToLower(strings.TrimSpace(o.ID))
		i, ok := index[id]
		if !ok {
			index[id] = len(out)
			out = append(out, o)
			continue
		}
		merged := out[i]
		if o.Name != "" {
			merged.Name = o.Name
		}
		if len(o.Feeds) > 0 {
			merged.Feeds = o.Feeds
		}
		if len(o.AltFeeds) > 0 {
			merged.AltFeeds = o.AltFeeds
		}
		if len(o.Selectors) > 0 {
			merged.Selectors = o.Selectors
		}
		if o.Search.URL != "" {
			merged.Search = o.Search
		}
		out[i] = merged
	}
	return out
}

// Lookup returns the source with the given id (case-insensitive).
func (r *Registry) Lookup(id string) (Source, bool) {
	s, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	return s, ok
}

// All returns every source in table order.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns every source id in table order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Resolve maps ids to sources in the caller's order, skipping duplicates.
// Ids not in the table are returned separately.
func (r *Registry) Resolve(ids []string) (found []Source, unknown []string) {
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		s, ok := r.byID[id]
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		found = append(found, s)
	}
	return found, unknown
}

// SelectorsFor returns the content selectors for tag (id or uppercase tag),
// falling back to GenericSelectors.
func (r *Registry) SelectorsFor(tag string) []string {
	if s, ok := r.Lookup(tag); ok && len(s.Selectors) > 0 {
		return s.Selectors
	}
	return GenericSelectors
}

// SelectorMap returns tag → selectors for every source that has its own list.
func (r *Registry) SelectorMap() map[string][]string {
	m := make(map[string][]string, len(r.order))
	for _, id := range r.order {
		if s := r.byID[id]; len(s.Selectors) > 0 {
			m[s.Tag()] = s.Selectors
		}
	}
	return m
}
