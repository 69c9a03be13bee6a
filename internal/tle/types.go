package tle

import "time"

// Record is one orbital element set as read from a catalog snapshot.
// Angles are degrees, mean motion is revolutions per day.
type Record struct {
	CatalogID    int
	Name         string
	Epoch        time.Time // zero when absent or unparsable in the source
	MeanMotion   float64
	Eccentricity float64
	Inclination  float64
	RAAN         float64
	ArgPerigee   float64
	MeanAnomaly  float64
	BStar        float64

	// Line1 and Line2 hold the two-line form when the source carried one.
	Line1 string
	Line2 string

	// Partial is set by decoders when one or more discrete elements were
	// missing from the source.
	Partial bool
}

// HasLines reports whether both two-line strings are present.
func (r Record) HasLines() bool {
	return r.Line1 != "" && r.Line2 != ""
}

// EpochRange represents the minimum and maximum epoch times in a catalog.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Catalog is a complete snapshot of records from one source.
type Catalog struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Records    []Record
}

// NewCatalog builds a Catalog and computes its epoch range.
func NewCatalog(source string, fetchedAt time.Time, records []Record) *Catalog {
	c := &Catalog{
		Source:    source,
		FetchedAt: fetchedAt,
		Records:   records,
	}
	for _, r := range records {
		if r.Epoch.IsZero() {
			continue
		}
		if c.EpochRange.Min.IsZero() || r.Epoch.Before(c.EpochRange.Min) {
			c.EpochRange.Min = r.Epoch
		}
		if r.Epoch.After(c.EpochRange.Max) {
			c.EpochRange.Max = r.Epoch
		}
	}
	return c
}

// Find returns the first record with the given catalog ID.
func (c *Catalog) Find(id int) (Record, bool) {
	for _, r := range c.Records {
		if r.CatalogID == id {
			return r, true
		}
	}
	return Record{}, false
}
