package tle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// gpRecord is the CelesTrak / Space-Track general perturbations (OMM JSON)
// layout. Space-Track quotes every number, CelesTrak does not, so numeric
// fields accept both.
type gpRecord struct {
	NoradCatID      *flexFloat `json:"NORAD_CAT_ID"`
	ObjectName      string     `json:"OBJECT_NAME"`
	Epoch           string     `json:"EPOCH"`
	MeanMotion      *flexFloat `json:"MEAN_MOTION"`
	Eccentricity    *flexFloat `json:"ECCENTRICITY"`
	Inclination     *flexFloat `json:"INCLINATION"`
	RAAN            *flexFloat `json:"RA_OF_ASC_NODE"`
	ArgOfPericenter *flexFloat `json:"ARG_OF_PERICENTER"`
	MeanAnomaly     *flexFloat `json:"MEAN_ANOMALY"`
	BStar           *flexFloat `json:"BSTAR"`
	Line1           string     `json:"TLE_LINE1,omitempty"`
	Line2           string     `json:"TLE_LINE2,omitempty"`
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// epochLayouts lists the ISO-8601 forms seen in GP feeds. Values without a
// zone are UTC.
var epochLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseEpoch parses a GP epoch timestamp. A trailing Z is accepted.
func ParseEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("epoch is empty")
	}
	for _, layout := range epochLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized epoch %q", s)
}

// UnmarshalJSON decodes a Record from one GP JSON object. Missing discrete
// elements mark the record Partial; an absent or unparsable epoch leaves
// Epoch zero. Neither is an error here: whether the record is usable is
// decided when a propagatable state is built from it.
func (r *Record) UnmarshalJSON(b []byte) error {
	var gp gpRecord
	if err := json.Unmarshal(b, &gp); err != nil {
		return err
	}

	*r = Record{
		Name:  strings.TrimSpace(gp.ObjectName),
		Line1: strings.TrimSpace(gp.Line1),
		Line2: strings.TrimSpace(gp.Line2),
	}
	if gp.NoradCatID != nil {
		r.CatalogID = int(*gp.NoradCatID)
	}
	if t, err := ParseEpoch(gp.Epoch); err == nil {
		r.Epoch = t
	}

	elements := []struct {
		src *flexFloat
		dst *float64
	}{
		{gp.MeanMotion, &r.MeanMotion},
		{gp.Eccentricity, &r.Eccentricity},
		{gp.Inclination, &r.Inclination},
		{gp.RAAN, &r.RAAN},
		{gp.ArgOfPericenter, &r.ArgPerigee},
		{gp.MeanAnomaly, &r.MeanAnomaly},
		{gp.BStar, &r.BStar},
	}
	for _, e := range elements {
		if e.src == nil {
			r.Partial = true
			continue
		}
		*e.dst = float64(*e.src)
	}
	return nil
}

// MarshalJSON writes the record back in GP JSON layout.
func (r Record) MarshalJSON() ([]byte, error) {
	f := func(v float64) *flexFloat { x := flexFloat(v); return &x }
	gp := gpRecord{
		NoradCatID:      f(float64(r.CatalogID)),
		ObjectName:      r.Name,
		MeanMotion:      f(r.MeanMotion),
		Eccentricity:    f(r.Eccentricity),
		Inclination:     f(r.Inclination),
		RAAN:            f(r.RAAN),
		ArgOfPericenter: f(r.ArgPerigee),
		MeanAnomaly:     f(r.MeanAnomaly),
		BStar:           f(r.BStar),
		Line1:           r.Line1,
		Line2:           r.Line2,
	}
	if !r.Epoch.IsZero() {
		gp.Epoch = r.Epoch.UTC().Format("2006-01-02T15:04:05.000000Z")
	}
	return json.Marshal(gp)
}

// DecodeGP reads a JSON array of GP records.
func DecodeGP(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding GP JSON: %w", err)
	}
	return records, nil
}

// Decode detects the catalog format from the first non-blank byte and
// decodes either GP JSON or TLE text.
func Decode(data []byte, logger *slog.Logger) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		return DecodeGP(bytes.NewReader(trimmed))
	}
	return Parse(bytes.NewReader(trimmed), logger)
}
