package propagation

import (
	"errors"
	"fmt"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/tle"
	"github.com/DominicTanzillo/Panacea/internal/transform"
)

// ParseError reports that no propagatable state could be built from a record.
type ParseError struct {
	CatalogID int
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %d: %v", e.CatalogID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	errMissingEpoch    = errors.New("epoch missing or unparsable")
	errIncompleteElems = errors.New("neither a two-line form nor a complete element set is present")
)

// State is a propagatable orbit bound to its record's epoch.
type State struct {
	CatalogID int
	Name      string
	FromTLE   bool
	handle    Handle
}

// Epoch returns the epoch the state is bound to.
func (s *State) Epoch() time.Time { return s.handle.Epoch() }

// Evaluate returns the TEME position and velocity at t.
func (s *State) Evaluate(t time.Time) (transform.PositionTEME, error) {
	return s.handle.Evaluate(t)
}

// BuildState constructs a State from rec. A well-formed two-line form wins;
// otherwise the discrete elements are used. Every failure is a *ParseError.
func BuildState(c Capability, rec tle.Record) (*State, error) {
	st := &State{CatalogID: rec.CatalogID, Name: rec.Name}

	if rec.HasLines() && tle.ValidateLines(rec.Line1, rec.Line2) == nil {
		h, err := c.InitializeTLE(rec.Line1, rec.Line2)
		if err != nil {
			return nil, &ParseError{CatalogID: rec.CatalogID, Err: err}
		}
		st.handle = h
		st.FromTLE = true
		return st, nil
	}

	if rec.Epoch.IsZero() {
		return nil, &ParseError{CatalogID: rec.CatalogID, Err: errMissingEpoch}
	}
	if rec.Partial {
		return nil, &ParseError{CatalogID: rec.CatalogID, Err: errIncompleteElems}
	}

	h, err := c.Initialize(ElementsFromRecord(rec), rec.Epoch)
	if err != nil {
		return nil, &ParseError{CatalogID: rec.CatalogID, Err: err}
	}
	st.handle = h
	return st, nil
}

func elementsFromLines(line1, line2 string) (Elements, time.Time, error) {
	rec, err := tle.ParseLines(line1, line2)
	if err != nil {
		return Elements{}, time.Time{}, fmt.Errorf("invalid TLE: %w", err)
	}
	return ElementsFromRecord(rec), rec.Epoch, nil
}
