// Package dataset persists catalog records keyed by slug.
package dataset

import (
	"sort"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
)

// Dataset maps slugs to their latest record.
type Dataset map[string]catalog.Record

// Upsert stores rec under its slug, replacing any previous entry whole.
func (d Dataset) Upsert(rec catalog.Record) {
	d[rec.Slug] = rec
}

// Slugs returns every key in ascending order.
func (d Dataset) Slugs() []string {
	slugs := make([]string, 0, len(d))
	for slug := range d {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Sorted returns the records ordered by slug.
func (d Dataset) Sorted() []catalog.Record {
	out := make([]catalog.Record, 0, len(d))
	for _, slug := range d.Slugs() {
		out = append(out, d[slug])
	}
	return out
}
